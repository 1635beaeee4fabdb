package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/felixgeelhaar/eventify/internal/config"
)

const fileFormatVersion = 1

// ErrSealed is returned when a sealed session file is read without the
// matching passphrase.
var ErrSealed = errors.New("session file is sealed with a different passphrase")

type fileDocument struct {
	Version int       `json:"version"`
	Profile string    `json:"profile"`
	Token   string    `json:"token,omitempty"`
	Sealed  []byte    `json:"sealed,omitempty"`
	SavedAt time.Time `json:"saved_at"`
}

// FileBackend stores the token in a JSON document written atomically with
// 0600 permissions. With a passphrase the token is sealed with
// XChaCha20-Poly1305 under a BLAKE3 derived key.
type FileBackend struct {
	path    string
	profile string
	key     []byte
}

// NewFileBackend creates a backend at path. An empty passphrase stores the
// token in the clear.
func NewFileBackend(path, profile, passphrase string) *FileBackend {
	b := &FileBackend{path: path, profile: profile}
	if passphrase != "" {
		sum := blake3.Sum256([]byte("eventify-session:" + passphrase))
		b.key = sum[:]
	}
	return b
}

func (f *FileBackend) Name() string { return "file" }

// Path returns the session document location.
func (f *FileBackend) Path() string { return f.path }

func (f *FileBackend) Load(context.Context) (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse session file: %w", err)
	}
	if doc.Profile != "" && f.profile != "" && doc.Profile != f.profile {
		return "", nil
	}
	if len(doc.Sealed) == 0 {
		return doc.Token, nil
	}
	if f.key == nil {
		return "", ErrSealed
	}
	return f.open(doc.Sealed)
}

func (f *FileBackend) Save(_ context.Context, token string) error {
	doc := fileDocument{
		Version: fileFormatVersion,
		Profile: f.profile,
		SavedAt: time.Now().UTC(),
	}
	if f.key == nil {
		doc.Token = token
	} else {
		sealed, err := f.seal(token)
		if err != nil {
			return err
		}
		doc.Sealed = sealed
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(f.path, data)
}

func (f *FileBackend) Clear(context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (f *FileBackend) seal(token string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(f.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(token)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, []byte(token), []byte(f.profile)), nil
}

func (f *FileBackend) open(sealed []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(f.key)
	if err != nil {
		return "", err
	}
	if len(sealed) < aead.NonceSize() {
		return "", ErrSealed
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(f.profile))
	if err != nil {
		return "", ErrSealed
	}
	return string(plain), nil
}
