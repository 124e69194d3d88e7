package sshutil

import (
	"crypto/dsa" //nolint:staticcheck // legacy DSA keys are still accepted
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	stderrors "errors"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/rileyhilliard/vmwatch/internal/errors"
)

// KeyFormat names a private key algorithm.
type KeyFormat string

const (
	KeyRSA     KeyFormat = "rsa"
	KeyEd25519 KeyFormat = "ed25519"
	KeyECDSA   KeyFormat = "ecdsa"
	KeyDSA     KeyFormat = "dsa"
)

// KeyFormatPriority is the order in which stored private keys are matched.
// The first format the key parses as wins.
var KeyFormatPriority = []KeyFormat{KeyRSA, KeyEd25519, KeyECDSA, KeyDSA}

// AuthFormatError is returned when a stored private key matches none of the
// supported formats.
type AuthFormatError struct {
	Label string
	Cause error
}

func (e *AuthFormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("private key for %s is not a supported format (%v)", e.Label, e.Cause)
	}
	return fmt.Sprintf("private key for %s is not a supported format", e.Label)
}

func (e *AuthFormatError) Unwrap() error {
	return e.Cause
}

// EncryptedKeyError is returned when a stored key requires a passphrase.
type EncryptedKeyError struct {
	Label string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("private key for %s is encrypted (passphrase protected)", e.Label)
}

// DetectKeyFormat parses pemBytes and reports which of KeyFormatPriority it
// matches first.
func DetectKeyFormat(pemBytes []byte) (KeyFormat, any, error) {
	raw, err := ssh.ParseRawPrivateKey(pemBytes)
	if err != nil {
		return "", nil, err
	}
	for _, format := range KeyFormatPriority {
		if matchesFormat(format, raw) {
			return format, raw, nil
		}
	}
	return "", nil, fmt.Errorf("unsupported key type %T", raw)
}

func matchesFormat(format KeyFormat, raw any) bool {
	switch format {
	case KeyRSA:
		_, ok := raw.(*rsa.PrivateKey)
		return ok
	case KeyEd25519:
		switch raw.(type) {
		case ed25519.PrivateKey, *ed25519.PrivateKey:
			return true
		}
	case KeyECDSA:
		_, ok := raw.(*ecdsa.PrivateKey)
		return ok
	case KeyDSA:
		_, ok := raw.(*dsa.PrivateKey)
		return ok
	}
	return false
}

// ParsePrivateKey turns a stored private key into a signer. Failures are
// AUTH-coded structured errors wrapping AuthFormatError or EncryptedKeyError.
func ParsePrivateKey(label string, pemBytes []byte) (ssh.Signer, error) {
	format, raw, err := DetectKeyFormat(pemBytes)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) {
			return nil, errors.WrapWithCode(&EncryptedKeyError{Label: label}, errors.ErrAuth,
				fmt.Sprintf("Private key for '%s' needs a passphrase", label),
				"Store an unencrypted key or switch the host to agent auth")
		}
		return nil, errors.WrapWithCode(&AuthFormatError{Label: label, Cause: err}, errors.ErrAuth,
			fmt.Sprintf("Unsupported private key format for '%s'", label),
			"Supported formats: RSA, Ed25519, ECDSA, DSA (PEM or OpenSSH)")
	}

	if k, ok := raw.(*ed25519.PrivateKey); ok {
		raw = *k
	}
	signer, err := ssh.NewSignerFromKey(raw)
	if err != nil {
		return nil, errors.WrapWithCode(&AuthFormatError{Label: label, Cause: err}, errors.ErrAuth,
			fmt.Sprintf("Couldn't use %s private key for '%s'", format, label),
			"Regenerate the key with: ssh-keygen -t ed25519")
	}
	return signer, nil
}
