package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SecretEnvVar names the variable holding the passphrase for credentials.json.
const SecretEnvVar = "ENVDIFF_SECRET"

// localKeySeed is used when ENVDIFF_SECRET is unset. It only obscures the file.
var localKeySeed = []byte("envdiff-local-credential-store")

// Credentials represents the credentials.json structure
type Credentials struct {
	Version     int                        `json:"version"`
	Credentials map[string]CredentialEntry `json:"credentials"`
}

// CredentialEntry is keyed by composite connection key.
type CredentialEntry struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CredentialStore reads and writes the encrypted credentials file.
// It implements PasswordSource.
type CredentialStore struct {
	Path string
	key  [32]byte
}

// NewCredentialStore opens the store at path. An empty path means
// ~/.envdiff/credentials.json; an empty secret falls back to the local key.
func NewCredentialStore(path, secret string) (*CredentialStore, error) {
	if path == "" {
		dir, err := GetConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "credentials.json")
	}
	seed := localKeySeed
	if secret != "" {
		seed = []byte(secret)
	}
	return &CredentialStore{Path: path, key: sha256.Sum256(seed)}, nil
}

// Load returns an empty set when the file does not exist yet.
func (s *CredentialStore) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{Version: 1, Credentials: map[string]CredentialEntry{}}, nil
		}
		return nil, err
	}

	decrypted, err := s.decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", s.Path, err)
	}

	var creds Credentials
	if err := json.Unmarshal(decrypted, &creds); err != nil {
		return nil, err
	}
	if creds.Credentials == nil {
		creds.Credentials = map[string]CredentialEntry{}
	}
	return &creds, nil
}

func (s *CredentialStore) Save(creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	encrypted, err := s.encrypt(data)
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, encrypted, 0600)
}

// Set stores the credentials for one connection key.
func (s *CredentialStore) Set(id, username, password string) error {
	creds, err := s.Load()
	if err != nil {
		return err
	}
	creds.Credentials[id] = CredentialEntry{Username: username, Password: password}
	return s.Save(creds)
}

// Password implements PasswordSource.
func (s *CredentialStore) Password(id string) (string, bool, error) {
	creds, err := s.Load()
	if err != nil {
		return "", false, err
	}
	entry, ok := creds.Credentials[id]
	if !ok {
		return "", false, nil
	}
	return entry.Password, true, nil
}

func (s *CredentialStore) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// encrypt prefixes the sealed data with its nonce.
func (s *CredentialStore) encrypt(data []byte) ([]byte, error) {
	aead, err := s.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, data, nil), nil
}

func (s *CredentialStore) decrypt(data []byte) ([]byte, error) {
	aead, err := s.gcm()
	if err != nil {
		return nil, err
	}
	if len(data) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := data[:aead.NonceSize()], data[aead.NonceSize():]
	return aead.Open(nil, nonce, sealed, nil)
}
