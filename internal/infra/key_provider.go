package infra

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/focusd/remapd/internal/domain"
)

const (
	keyFileName = "history.key"
	keySize     = 32 // raw SQLCipher key, no KDF
)

// FileKeyProvider keeps the history key as one hex line in the data directory.
// The file must not be readable by group or others.
type FileKeyProvider struct {
	keyPath string
}

// NewFileKeyProvider returns the provider for dataDir/history.key.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{keyPath: filepath.Join(dataDir, keyFileName)}
}

// Path returns the key file location.
func (p *FileKeyProvider) Path() string {
	return p.keyPath
}

// GetKey reads and checks the key file.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	info, err := os.Stat(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if info.Mode().Perm()&0077 != 0 {
		return nil, fmt.Errorf("insecure permissions %04o on %s", info.Mode().Perm(), p.keyPath)
	}

	data, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return decodeKey(p.keyPath, data)
}

func decodeKey(path string, data []byte) ([]byte, error) {
	key, err := hex.DecodeString(string(bytes.TrimSpace(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key %s: %w", path, err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key size in %s: got %d bytes, want %d", path, len(key), keySize)
	}
	return key, nil
}

// StoreKey replaces the key file. Existing history becomes unreadable.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("invalid key size: got %d bytes, want %d", len(key), keySize)
	}
	if err := os.MkdirAll(filepath.Dir(p.keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(p.keyPath, encodeKey(key), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(p.keyPath, 0600)
}

// KeyExists reports whether a key file is present.
func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

// create publishes key only if no key file exists yet. The key is written to
// a temp file and hard-linked into place, so readers never see a partial key.
// It returns fs.ErrExist when another process got there first.
func (p *FileKeyProvider) create(key []byte) error {
	dir := filepath.Dir(p.keyPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, keyFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp key file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(encodeKey(key)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return os.Link(tmp.Name(), p.keyPath)
}

func encodeKey(key []byte) []byte {
	return []byte(hex.EncodeToString(key) + "\n")
}

// GenerateKey returns keySize random bytes.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the stored key, generating one on first use.
// When "remapd run" and "remapd history" race on a fresh data directory,
// both end up with the key that was written first.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	fp, ok := provider.(*FileKeyProvider)
	if !ok {
		if err := provider.StoreKey(key); err != nil {
			return nil, err
		}
		return key, nil
	}

	err = fp.create(key)
	if errors.Is(err, fs.ErrExist) {
		return fp.GetKey()
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

var _ domain.KeyProvider = (*FileKeyProvider)(nil)
