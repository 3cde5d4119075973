package oauth

import (
	"errors"
	"fmt"
)

var (
	ErrAuthorizationPending = errors.New("authorization_pending")
	ErrAuthorizationFailure = errors.New("authorization_failure")
	ErrTokenRefresh         = errors.New("token_refresh_failed")
	ErrNotConfigured        = errors.New("oauth_not_configured")
)

// PendingError is returned while the user still has to grant consent. URL is
// the consent page the user must visit.
type PendingError struct {
	URL string
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("authorization pending: visit %s", e.URL)
}

func (e *PendingError) Is(target error) bool {
	return target == ErrAuthorizationPending
}

// PendingURL extracts the consent URL from err, if any.
func PendingURL(err error) (string, bool) {
	var pending *PendingError
	if errors.As(err, &pending) {
		return pending.URL, true
	}
	return "", false
}
