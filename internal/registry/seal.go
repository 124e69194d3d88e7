package registry

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/rileyhilliard/vmwatch/internal/errors"
)

// Sealed value prefixes. v2 carries a per-secret salt for the argon2id key;
// v1 values used an unsalted SHA-256 of the passphrase and are only read.
const (
	sealedPrefix   = "sealed:v2:"
	sealedPrefixV1 = "sealed:v1:"
)

const (
	nonceSize = 24
	saltSize  = 16
)

// argon2id parameters for the key of each sealed secret.
type kdfParams struct {
	time    uint32
	memory  uint32 // KiB
	threads uint8
}

var defaultKDF = kdfParams{time: 1, memory: 64 * 1024, threads: 4}

// Sealer encrypts credential secrets at rest with NaCl secretbox. A nil
// Sealer stores secrets as given.
type Sealer struct {
	passphrase []byte
	kdf        kdfParams

	mu   sync.Mutex
	keys map[string]*[32]byte // by salt
}

// NewSealer returns a Sealer keyed by passphrase.
func NewSealer(passphrase string) *Sealer {
	return &Sealer{
		passphrase: []byte(passphrase),
		kdf:        defaultKDF,
		keys:       make(map[string]*[32]byte),
	}
}

// SealerFromEnv builds a Sealer from the named environment variable. It
// returns nil when the name is empty or the variable is unset.
func SealerFromEnv(name string) *Sealer {
	if name == "" {
		return nil
	}
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	return NewSealer(v)
}

// key derives (once per salt) the secretbox key for salt.
func (s *Sealer) key(salt []byte) *[32]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k, ok := s.keys[string(salt)]; ok {
		return k
	}
	var k [32]byte
	copy(k[:], argon2.IDKey(s.passphrase, salt, s.kdf.time, s.kdf.memory, s.kdf.threads, 32))
	s.keys[string(salt)] = &k
	return &k
}

// Seal encrypts plaintext. Empty input stays empty.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil || plaintext == "" {
		return plaintext, nil
	}

	buf := make([]byte, saltSize+nonceSize)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("reading salt and nonce: %w", err)
	}
	salt := buf[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], buf[saltSize:])

	box := secretbox.Seal(buf, []byte(plaintext), &nonce, s.key(salt))
	return sealedPrefix + base64.StdEncoding.EncodeToString(box), nil
}

// Open decrypts a value produced by Seal. Values without a sealed prefix
// are returned unchanged.
func (s *Sealer) Open(value string) (string, error) {
	var (
		payload string
		v1      bool
	)
	switch {
	case strings.HasPrefix(value, sealedPrefix):
		payload = strings.TrimPrefix(value, sealedPrefix)
	case strings.HasPrefix(value, sealedPrefixV1):
		payload = strings.TrimPrefix(value, sealedPrefixV1)
		v1 = true
	default:
		return value, nil
	}
	if s == nil {
		return "", errors.New(errors.ErrRegistry,
			"Stored secret is encrypted but no sealing key is set",
			"Export the variable named by registry.seal_key_env")
	}

	header := saltSize + nonceSize
	if v1 {
		header = nonceSize
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(raw) < header+secretbox.Overhead {
		return "", errors.New(errors.ErrRegistry, "Stored secret is corrupt", "Re-add the host with: vmw host add --force")
	}

	var key *[32]byte
	if v1 {
		k := sha256.Sum256(s.passphrase)
		key = &k
	} else {
		key = s.key(raw[:saltSize])
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[header-nonceSize:header])
	plain, ok := secretbox.Open(nil, raw[header:], &nonce, key)
	if !ok {
		return "", errors.New(errors.ErrRegistry,
			"Couldn't decrypt stored secret",
			"The sealing key differs from the one used when the host was added")
	}
	return string(plain), nil
}
