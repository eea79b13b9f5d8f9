package credentials

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hisname/photuris/internal/cryptox"
)

// FileStore keeps one encrypted file per account key inside a directory.
// The AES key is derived with argon2id from a machine secret generated on
// first use, so bundles on disk are opaque without the secret file.
type FileStore struct {
	dir string
	key []byte
}

const (
	secretFile = ".secret"
	saltFile   = ".salt"
)

// NewFileStore opens (creating if needed) the credential directory at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	secret, err := loadOrCreate(filepath.Join(dir, secretFile), 32)
	if err != nil {
		return nil, err
	}
	salt, err := loadOrCreate(filepath.Join(dir, saltFile), 16)
	if err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, key: cryptox.DeriveKey(secret, salt)}, nil
}

func loadOrCreate(path string, size int) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	b = make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return b, nil
}

func (s *FileStore) path(accountKey string) string {
	return filepath.Join(s.dir, accountKey+".cred")
}

// Read decrypts and returns the bundle for accountKey.
func (s *FileStore) Read(accountKey string) (Bundle, error) {
	raw, err := os.ReadFile(s.path(accountKey))
	if errors.Is(err, fs.ErrNotExist) {
		return Bundle{}, ErrNotFound
	}
	if err != nil {
		return Bundle{}, fmt.Errorf("read credentials: %w", err)
	}

	var b Bundle
	if err := cryptox.OpenJSON(raw, s.key, &b); err != nil {
		return Bundle{}, fmt.Errorf("decode credentials for %s: %w", accountKey, err)
	}
	return b, nil
}

// Write encrypts and stores the bundle under accountKey.
func (s *FileStore) Write(accountKey string, b Bundle) error {
	sealed, err := cryptox.SealJSON(b, s.key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path(accountKey), sealed, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Destroy removes the bundle for accountKey. Destroying an absent bundle is
// not an error.
func (s *FileStore) Destroy(accountKey string) error {
	err := os.Remove(s.path(accountKey))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("destroy credentials: %w", err)
	}
	return nil
}
