package auth

import (
	"errors"
	"os"

	errs "postgrab/pkg/errors"
	"postgrab/pkg/logger"
	"postgrab/pkg/models"
)

// Manager resolves sessions through a store chain: environment first so
// injected sessions always win, then the keyring, then the encrypted file.
// Writes go to the first store that accepts them.
type Manager struct {
	stores []SessionStore
	logger logger.Logger
}

// NewManager builds the default chain. The encrypted file store joins the
// chain only when POSTGRAB_SESSION_KEY is set.
func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	stores := []SessionStore{
		NewEnvironmentStore(),
		NewKeyringStore(),
	}
	if passphrase := os.Getenv("POSTGRAB_SESSION_KEY"); passphrase != "" {
		if fs, err := NewEncryptedFileStore("", passphrase); err == nil {
			stores = append(stores, fs)
		} else {
			log.WithError(err).Warn("encrypted session store unavailable")
		}
	}
	return &Manager{stores: stores, logger: log}
}

// NewManagerWithStores builds a manager over an explicit chain, for tests
// and custom setups.
func NewManagerWithStores(log logger.Logger, stores ...SessionStore) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{stores: stores, logger: log}
}

// Get returns the first session found in the chain, or ErrNotFound.
func (m *Manager) Get(platform models.Platform) (*Session, error) {
	for _, store := range m.stores {
		session, err := store.Get(platform)
		if err == nil {
			m.logger.DebugWithFields("session resolved", map[string]interface{}{
				"platform": string(platform),
				"store":    store.Name(),
			})
			return session, nil
		}
		if !errors.Is(err, ErrNotFound) {
			m.logger.WarnWithFields("session store error, trying next", map[string]interface{}{
				"store": store.Name(),
				"error": err.Error(),
			})
		}
	}
	return nil, ErrNotFound
}

// Set stores the session in the first writable store.
func (m *Manager) Set(session *Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	var lastErr error
	for _, store := range m.stores {
		err := store.Set(session)
		if err == nil {
			m.logger.InfoWithFields("session stored", map[string]interface{}{
				"platform": string(session.Platform),
				"store":    store.Name(),
			})
			return nil
		}
		if errs.KindOf(err) == errs.KindUnsupported {
			continue
		}
		lastErr = err
	}
	if lastErr != nil {
		return lastErr
	}
	return errs.New(errs.KindStorage, "no writable session store available")
}

// Delete removes the platform's session from every store that holds one.
func (m *Manager) Delete(platform models.Platform) error {
	deleted := false
	var lastErr error
	for _, store := range m.stores {
		err := store.Delete(platform)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrNotFound), errs.KindOf(err) == errs.KindUnsupported:
		default:
			lastErr = err
		}
	}
	if lastErr != nil {
		return lastErr
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}
