package sshutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/rileyhilliard/vmwatch/internal/errors"
	sshtesting "github.com/rileyhilliard/vmwatch/pkg/sshutil/testing"
)

func TestDetectKeyFormat(t *testing.T) {
	tests := []struct {
		kind string
		want KeyFormat
	}{
		{kind: "rsa", want: KeyRSA},
		{kind: "ed25519", want: KeyEd25519},
		{kind: "ecdsa", want: KeyECDSA},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			keyPEM, _ := sshtesting.KeyPEM(t, tt.kind)
			got, raw, err := DetectKeyFormat(keyPEM)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotNil(t, raw)
		})
	}
}

func TestKeyFormatPriority(t *testing.T) {
	assert.Equal(t, []KeyFormat{KeyRSA, KeyEd25519, KeyECDSA, KeyDSA}, KeyFormatPriority)
}

func TestParsePrivateKey(t *testing.T) {
	keyPEM, pub := sshtesting.KeyPEM(t, "ed25519")

	signer, err := ParsePrivateKey("web1", keyPEM)
	require.NoError(t, err)
	assert.Equal(t, pub.Marshal(), signer.PublicKey().Marshal())
}

func TestParsePrivateKey_Garbage(t *testing.T) {
	_, err := ParsePrivateKey("web1", []byte("not a key"))
	require.Error(t, err)

	assert.True(t, errors.IsCode(err, errors.ErrAuth))
	var formatErr *AuthFormatError
	require.True(t, stderrors.As(err, &formatErr))
	assert.Equal(t, "web1", formatErr.Label)
}

func TestParsePrivateKey_Encrypted(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("hunter2"))
	require.NoError(t, err)

	_, err = ParsePrivateKey("web1", pem.EncodeToMemory(block))
	require.Error(t, err)

	assert.True(t, errors.IsCode(err, errors.ErrAuth))
	var encErr *EncryptedKeyError
	assert.True(t, stderrors.As(err, &encErr))
}
