package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	errs "postgrab/pkg/errors"
	"postgrab/pkg/models"
)

const keyringService = "postgrab"

// KeyringStore keeps sessions in the OS keyring (Keychain, Secret Service,
// Credential Manager). One keyring entry per platform.
type KeyringStore struct{}

// NewKeyringStore returns a keyring-backed session store.
func NewKeyringStore() *KeyringStore { return &KeyringStore{} }

func (k *KeyringStore) Name() string { return "keyring" }

func (k *KeyringStore) Get(platform models.Platform) (*Session, error) {
	data, err := keyring.Get(keyringService, keyringUser(platform))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errs.Wrap(errs.KindStorage, err, "keyring read failed for %s", platform)
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "corrupt keyring entry for %s", platform)
	}
	return &session, nil
}

func (k *KeyringStore) Set(session *Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(session)
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "failed to encode session")
	}
	if err := keyring.Set(keyringService, keyringUser(session.Platform), string(data)); err != nil {
		return errs.Wrap(errs.KindStorage, err, "keyring write failed for %s", session.Platform)
	}
	return nil
}

func (k *KeyringStore) Delete(platform models.Platform) error {
	if err := keyring.Delete(keyringService, keyringUser(platform)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return errs.Wrap(errs.KindStorage, err, "keyring delete failed for %s", platform)
	}
	return nil
}

func keyringUser(platform models.Platform) string {
	return fmt.Sprintf("session:%s", platform)
}
