package auth

import (
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"

	errs "postgrab/pkg/errors"
	"postgrab/pkg/models"
)

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32
)

// EncryptedFileStore keeps all sessions in one secretbox-sealed JSON file.
// The key is derived from a passphrase with scrypt; salt and nonce are
// stored in the file header. Used on hosts without a usable keyring.
type EncryptedFileStore struct {
	path       string
	passphrase []byte

	mu sync.Mutex
}

// NewEncryptedFileStore returns a file-backed store at path, sealed with
// passphrase. An empty path defaults to the user config directory.
func NewEncryptedFileStore(path, passphrase string) (*EncryptedFileStore, error) {
	if passphrase == "" {
		return nil, errs.New(errs.KindValidation, "encrypted session store requires a passphrase")
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errs.Wrap(errs.KindStorage, err, "cannot resolve home directory")
		}
		path = filepath.Join(home, ".config", "postgrab", "sessions.enc")
	}
	return &EncryptedFileStore{path: path, passphrase: []byte(passphrase)}, nil
}

func (f *EncryptedFileStore) Name() string { return "encrypted-file" }

func (f *EncryptedFileStore) Get(platform models.Platform) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sessions, err := f.load()
	if err != nil {
		return nil, err
	}
	session, ok := sessions[platform]
	if !ok {
		return nil, ErrNotFound
	}
	return session, nil
}

func (f *EncryptedFileStore) Set(session *Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	sessions, err := f.load()
	if err != nil {
		return err
	}
	session.LastModified = time.Now().UTC()
	sessions[session.Platform] = session
	return f.store(sessions)
}

func (f *EncryptedFileStore) Delete(platform models.Platform) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sessions, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := sessions[platform]; !ok {
		return ErrNotFound
	}
	delete(sessions, platform)
	return f.store(sessions)
}

// load decrypts the session file; a missing file is an empty store.
func (f *EncryptedFileStore) load() (map[models.Platform]*Session, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return make(map[models.Platform]*Session), nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "failed to read session file")
	}
	if len(data) < saltSize+nonceSize {
		return nil, errs.New(errs.KindStorage, "session file is truncated")
	}

	salt := data[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], data[saltSize:saltSize+nonceSize])
	sealed := data[saltSize+nonceSize:]

	key, err := f.deriveKey(salt)
	if err != nil {
		return nil, err
	}
	plain, ok := secretbox.Open(nil, sealed, &nonce, key)
	if !ok {
		return nil, errs.New(errs.KindStorage, "failed to decrypt session file (wrong passphrase?)")
	}

	sessions := make(map[models.Platform]*Session)
	if err := json.Unmarshal(plain, &sessions); err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "corrupt session file")
	}
	return sessions, nil
}

func (f *EncryptedFileStore) store(sessions map[models.Platform]*Session) error {
	plain, err := json.Marshal(sessions)
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "failed to encode sessions")
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return errs.Wrap(errs.KindStorage, err, "failed to generate salt")
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return errs.Wrap(errs.KindStorage, err, "failed to generate nonce")
	}

	key, err := f.deriveKey(salt)
	if err != nil {
		return err
	}
	sealed := secretbox.Seal(nil, plain, &nonce, key)

	out := make([]byte, 0, saltSize+nonceSize+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	out = append(out, sealed...)

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return errs.Wrap(errs.KindStorage, err, "failed to create session directory")
	}
	if err := os.WriteFile(f.path, out, 0o600); err != nil {
		return errs.Wrap(errs.KindStorage, err, "failed to write session file")
	}
	return nil
}

func (f *EncryptedFileStore) deriveKey(salt []byte) (*[keySize]byte, error) {
	raw, err := scrypt.Key(f.passphrase, salt, 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "key derivation failed")
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}
