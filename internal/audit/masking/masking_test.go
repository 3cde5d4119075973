package masking

import "testing"

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"abc":              "****",
		"0f9c2e7a-session": "****sion",
	}
	for in, want := range cases {
		if got := MaskSecret(in); got != want {
			t.Fatalf("MaskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"ana@example.com":  "an****@example.com",
		"jo@example.com":   "****@example.com",
		"not-an-email":     "****mail",
		" luisa@mail.org ": "lu****@mail.org",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
