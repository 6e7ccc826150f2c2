// Package auth manages per-platform browser sessions (cookie headers) used
// to fetch pages that require a logged-in view. Sessions can live in the OS
// keyring, in environment variables, or in an encrypted file, resolved
// through a fallback chain.
package auth

import (
	"strings"
	"time"

	errs "postgrab/pkg/errors"
	"postgrab/pkg/models"
)

// Session is a stored browser session for one platform.
type Session struct {
	Platform     models.Platform `json:"platform"`
	Cookie       string          `json:"cookie"`
	UserAgent    string          `json:"user_agent,omitempty"`
	LastModified time.Time       `json:"last_modified"`
}

// Validate checks the session for storage.
func (s *Session) Validate() error {
	if s.Platform == "" || s.Platform == models.PlatformUnknown {
		return errs.New(errs.KindValidation, "session requires a known platform")
	}
	if strings.TrimSpace(s.Cookie) == "" {
		return errs.New(errs.KindValidation, "session cookie cannot be empty")
	}
	return nil
}

// SessionStore persists sessions keyed by platform.
type SessionStore interface {
	Get(platform models.Platform) (*Session, error)
	Set(session *Session) error
	Delete(platform models.Platform) error
	// Name identifies the store in logs and error messages.
	Name() string
}

// ErrNotFound reports that a store holds no session for the platform.
var ErrNotFound = errs.New(errs.KindNotFound, "no session stored for platform")
