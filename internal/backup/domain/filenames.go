package domain

import (
	"fmt"
	"strings"
	"time"
)

const DefaultFilePrefix = "historial_consumo"

// Filenames names the remote objects of a user. The in-progress file of a day
// is rewritten by every upload; closing the day writes a separate snapshot.
type Filenames struct {
	Prefix string
}

func (f Filenames) InProgress(userID string, day time.Time) string {
	return fmt.Sprintf("%s_%s_%s.csv", f.prefix(), sanitizeUser(userID), day.Format("2006-01-02"))
}

func (f Filenames) Closing(userID string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s_cierre_%s.csv",
		f.prefix(),
		sanitizeUser(userID),
		at.Format("2006-01-02"),
		at.Format("150405"),
	)
}

func (f Filenames) prefix() string {
	if p := strings.TrimSpace(f.Prefix); p != "" {
		return p
	}
	return DefaultFilePrefix
}

var userReplacer = strings.NewReplacer("/", "_", "\\", "_")

func sanitizeUser(userID string) string {
	return userReplacer.Replace(strings.TrimSpace(userID))
}
