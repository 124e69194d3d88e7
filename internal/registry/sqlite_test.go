package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/vmwatch/internal/errors"
)

func openTestStore(t *testing.T, sealer *Sealer) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "hosts.db")
	s, err := OpenSQLite(path, sealer)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSQLiteStore_PutResolve(t *testing.T) {
	s, _ := openTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Credential{
		Label: "web1", Address: "10.0.0.5", Username: "ops", AuthMethod: "ssh_key", PrivateKey: "PEM",
	}))

	c, err := s.Resolve(ctx, "web1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", c.Address)
	assert.Equal(t, 22, c.Port)
	assert.Equal(t, AuthKey, c.AuthMethod)
	assert.Equal(t, "PEM", c.PrivateKey)
}

func TestSQLiteStore_ResolveMissing(t *testing.T) {
	s, _ := openTestStore(t, nil)

	_, err := s.Resolve(context.Background(), "ghost1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))
}

func TestSQLiteStore_ListOrderedWithoutSecrets(t *testing.T) {
	s, _ := openTestStore(t, nil)
	ctx := context.Background()

	for _, label := range []string{"web2", "db1", "web1"} {
		require.NoError(t, s.Put(ctx, Credential{Label: label, Address: label + ".lan", AuthMethod: AuthPassword, Password: "pw"}))
	}

	hosts, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, hosts, 3)
	assert.Equal(t, "db1", hosts[0].Label)
	assert.Equal(t, "web1", hosts[1].Label)
	assert.Equal(t, "web2", hosts[2].Label)
	assert.Equal(t, AuthPassword, hosts[0].AuthMethod)
}

func TestSQLiteStore_ListEmpty(t *testing.T) {
	s, _ := openTestStore(t, nil)
	hosts, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, hosts)
	assert.Empty(t, hosts)
}

func TestSQLiteStore_PutReplaces(t *testing.T) {
	s, _ := openTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Credential{Label: "web1", Address: "old", AuthMethod: AuthAgent}))
	require.NoError(t, s.Put(ctx, Credential{Label: "web1", Address: "new", Port: 2222, AuthMethod: AuthAgent}))

	c, err := s.Resolve(ctx, "web1")
	require.NoError(t, err)
	assert.Equal(t, "new", c.Address)
	assert.Equal(t, 2222, c.Port)
}

func TestSQLiteStore_PutRejectsInvalid(t *testing.T) {
	s, _ := openTestStore(t, nil)
	err := s.Put(context.Background(), Credential{Label: "web1", AuthMethod: AuthPassword})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestSQLiteStore_Delete(t *testing.T) {
	s, _ := openTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Credential{Label: "web1", Address: "h", AuthMethod: AuthAgent}))
	require.NoError(t, s.Delete(ctx, "web1"))

	_, err := s.Resolve(ctx, "web1")
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))

	err = s.Delete(ctx, "web1")
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))
}

func TestSQLiteStore_SealedSecrets(t *testing.T) {
	s, path := openTestStore(t, NewSealer("k"))
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Credential{Label: "web1", Address: "h", AuthMethod: AuthPassword, Password: "s3cret"}))

	var stored string
	require.NoError(t, s.db.QueryRow(`SELECT password FROM hosts WHERE label = 'web1'`).Scan(&stored))
	assert.NotEqual(t, "s3cret", stored)

	c, err := s.Resolve(ctx, "web1")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", c.Password)

	// Reopening without the key can list but not resolve.
	require.NoError(t, s.Close())
	unkeyed, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	defer unkeyed.Close()

	hosts, err := unkeyed.List(ctx)
	require.NoError(t, err)
	assert.Len(t, hosts, 1)

	_, err = unkeyed.Resolve(ctx, "web1")
	assert.True(t, errors.IsCode(err, errors.ErrRegistry))
}
