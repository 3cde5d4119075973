package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapHTTPClientPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	client := WrapHTTPClient(srv.Client())
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}

func TestWrapHTTPClientIsIdempotent(t *testing.T) {
	once := WrapHTTPClient(nil)
	twice := WrapHTTPClient(once)

	rt, ok := twice.Transport.(*roundTripper)
	require.True(t, ok)
	_, nested := rt.base.(*roundTripper)
	assert.False(t, nested)
}
