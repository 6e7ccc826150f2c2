package auth

import (
	"fmt"
	"os"
	"strings"
	"time"

	errs "postgrab/pkg/errors"
	"postgrab/pkg/models"
)

// EnvironmentStore reads sessions from POSTGRAB_<PLATFORM>_COOKIE (and the
// optional POSTGRAB_<PLATFORM>_USER_AGENT). It is read-only: CI and
// containers inject sessions this way, nothing writes them back.
type EnvironmentStore struct{}

// NewEnvironmentStore returns an environment-backed session store.
func NewEnvironmentStore() *EnvironmentStore { return &EnvironmentStore{} }

func (e *EnvironmentStore) Name() string { return "environment" }

func (e *EnvironmentStore) Get(platform models.Platform) (*Session, error) {
	cookie := os.Getenv(envKey(platform, "COOKIE"))
	if cookie == "" {
		return nil, ErrNotFound
	}
	return &Session{
		Platform:     platform,
		Cookie:       cookie,
		UserAgent:    os.Getenv(envKey(platform, "USER_AGENT")),
		LastModified: time.Now().UTC(),
	}, nil
}

func (e *EnvironmentStore) Set(*Session) error {
	return errs.New(errs.KindUnsupported, "environment store is read-only")
}

func (e *EnvironmentStore) Delete(models.Platform) error {
	return errs.New(errs.KindUnsupported, "environment store is read-only")
}

func envKey(platform models.Platform, field string) string {
	return fmt.Sprintf("POSTGRAB_%s_%s", strings.ToUpper(string(platform)), field)
}
