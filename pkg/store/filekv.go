package store

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/presensia/facegate/pkg/logging"
)

const (
	// nonceSize is the size of the secretbox nonce.
	nonceSize = 24
	// keySize is the size of the secretbox key.
	keySize = 32
)

// ErrEncryption is returned when the store file cannot be decrypted.
var ErrEncryption = errors.New("encryption error")

// FileKV is a KV backed by a single JSON file, optionally encrypted at
// rest with NaCl secretbox using a machine-derived key.
type FileKV struct {
	path      string
	encrypted bool
	key       [keySize]byte

	mu sync.Mutex
}

// NewFileKV creates a file-backed KV at path. With encryption enabled the
// file contents are tied to this machine.
func NewFileKV(path string, encrypted bool) (*FileKV, error) {
	kv := &FileKV{path: path, encrypted: encrypted}

	if encrypted {
		kv.key = deriveKey()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return kv, nil
}

// deriveKey derives an encryption key from machine-specific identity so
// copied store files are unreadable elsewhere.
func deriveKey() [keySize]byte {
	var identity strings.Builder

	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		identity.Write(machineID)
	}
	if hostname, err := os.Hostname(); err == nil {
		identity.WriteString(hostname)
	}
	identity.WriteString(fmt.Sprintf("%d", os.Getuid()))
	identity.WriteString("facegate-v1-salt")

	return sha256.Sum256([]byte(identity.String()))
}

// GetStringList implements KV.
func (kv *FileKV) GetStringList(key string) ([]string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	data, err := kv.load()
	if err != nil {
		return nil, err
	}
	return data[key], nil
}

// SetStringList implements KV.
func (kv *FileKV) SetStringList(key string, values []string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	data, err := kv.load()
	if err != nil {
		return err
	}
	data[key] = values
	return kv.persist(data)
}

// Remove implements KV.
func (kv *FileKV) Remove(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	data, err := kv.load()
	if err != nil {
		return err
	}
	delete(data, key)
	return kv.persist(data)
}

func (kv *FileKV) load() (map[string][]string, error) {
	raw, err := os.ReadFile(kv.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string][]string), nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	if kv.encrypted {
		raw, err = kv.decrypt(raw)
		if err != nil {
			return nil, err
		}
	}

	data := make(map[string][]string)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse store file: %w", err)
	}
	return data, nil
}

func (kv *FileKV) persist(data map[string][]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store data: %w", err)
	}

	if kv.encrypted {
		raw, err = kv.encrypt(raw)
		if err != nil {
			return err
		}
	}

	if err := os.WriteFile(kv.path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	logging.Component("store").Debugf("persisted %d key(s) to %s", len(data), kv.path)
	return nil
}

func (kv *FileKV) encrypt(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &kv.key), nil
}

func (kv *FileKV) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize {
		return nil, ErrEncryption
	}

	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &kv.key)
	if !ok {
		return nil, ErrEncryption
	}
	return plaintext, nil
}
