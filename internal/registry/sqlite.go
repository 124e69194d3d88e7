package registry

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/rileyhilliard/vmwatch/internal/errors"
)

const schemaDDL = `CREATE TABLE IF NOT EXISTS hosts (
  label       TEXT PRIMARY KEY,
  address     TEXT NOT NULL,
  port        INTEGER NOT NULL DEFAULT 22,
  username    TEXT NOT NULL DEFAULT '',
  auth_method TEXT NOT NULL,
  password    TEXT NOT NULL DEFAULT '',
  private_key TEXT NOT NULL DEFAULT ''
)`

// SQLiteStore keeps credentials in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	sealer *Sealer
}

// OpenSQLite opens (creating if needed) the database at path. Secrets are
// sealed with sealer when it is non-nil.
func OpenSQLite(path string, sealer *Sealer) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrRegistry,
				fmt.Sprintf("Can't create registry directory for %s", path),
				"Check registry.path in your config")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrRegistry,
			fmt.Sprintf("Can't open host registry %s", path),
			"Check registry.path in your config")
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, errors.WrapWithCode(err, errors.ErrRegistry,
			fmt.Sprintf("Can't initialise host registry %s", path),
			"The file may not be a vmwatch registry")
	}

	return &SQLiteStore{db: db, sealer: sealer}, nil
}

// Resolve implements Registry.
func (s *SQLiteStore) Resolve(ctx context.Context, label string) (Credential, error) {
	var (
		c        Credential
		method   string
		password string
		key      string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT label, address, port, username, auth_method, password, private_key
		 FROM hosts WHERE label = ?`, label).
		Scan(&c.Label, &c.Address, &c.Port, &c.Username, &method, &password, &key)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Credential{}, errors.NotFound(label)
	}
	if err != nil {
		return Credential{}, errors.WrapWithCode(err, errors.ErrRegistry,
			fmt.Sprintf("Registry lookup for '%s' failed", label), "")
	}
	c.AuthMethod = AuthMethod(method)

	if c.Password, err = s.sealer.Open(password); err != nil {
		return Credential{}, err
	}
	if c.PrivateKey, err = s.sealer.Open(key); err != nil {
		return Credential{}, err
	}
	return c.Normalize(), nil
}

// List implements Registry.
func (s *SQLiteStore) List(ctx context.Context) ([]Host, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT label, address, port, username, auth_method FROM hosts ORDER BY label`)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrRegistry, "Listing hosts failed", "")
	}
	defer rows.Close()

	hosts := []Host{}
	for rows.Next() {
		var (
			h      Host
			method string
		)
		if err := rows.Scan(&h.Label, &h.Address, &h.Port, &h.Username, &method); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrRegistry, "Listing hosts failed", "")
		}
		h.AuthMethod = AuthMethod(method)
		hosts = append(hosts, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrRegistry, "Listing hosts failed", "")
	}
	return hosts, nil
}

// Put inserts or replaces a credential.
func (s *SQLiteStore) Put(ctx context.Context, cred Credential) error {
	cred = cred.Normalize()
	if err := cred.Validate(); err != nil {
		return err
	}

	password, err := s.sealer.Seal(cred.Password)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrRegistry, "Sealing password failed", "")
	}
	key, err := s.sealer.Seal(cred.PrivateKey)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrRegistry, "Sealing private key failed", "")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO hosts (label, address, port, username, auth_method, password, private_key)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cred.Label, cred.Address, cred.Port, cred.Username, string(cred.AuthMethod), password, key)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrRegistry,
			fmt.Sprintf("Saving '%s' failed", cred.Label), "")
	}
	return nil
}

// Delete removes label. Deleting an unknown label is a NOT_FOUND error.
func (s *SQLiteStore) Delete(ctx context.Context, label string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM hosts WHERE label = ?`, label)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrRegistry,
			fmt.Sprintf("Removing '%s' failed", label), "")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound(label)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
