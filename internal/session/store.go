package session

import (
	"crypto/ecdsa"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/chainvoice/chainvoice-go/pkg/keys"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

const sessionRowID = "current"

// persistedSession is the single-row on-disk form of the session. The key
// sits sealed under a per-install secret so a completed sign-in survives a
// process restart without re-running the handshake.
type persistedSession struct {
	ID         string     `db:"ID"`
	Status     int        `db:"Status"`
	Principal  string     `db:"Principal"`
	SessionKey string     `db:"SessionKey"`
	CreatedAt  time.Time  `db:"CreatedAt"`
	UpdatedAt  *time.Time `db:"UpdatedAt"`
}

type Store struct {
	db     *sqlx.DB
	secret []byte
}

// OpenStore opens (creating if needed) the session database and the
// per-install sealing secret in the data directory.
func OpenStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	secret, err := loadOrCreateSecret(path.Join(dataDir, "session.secret"))
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect("sqlite3", "file:"+path.Join(dataDir, "session.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &Store{db: db, secret: secret}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	_, err := s.db.Exec(`create table if not exists session(
		ID         text not null primary key,
		Status     tinyint not null default 0,
		Principal  text not null,
		SessionKey text not null,
		CreatedAt  DATETIME not null,
		UpdatedAt  DATETIME null
	)`)
	if err != nil {
		return fmt.Errorf("creating session table: %w", err)
	}
	return nil
}

// Save upserts the current session row. A pending sign-in persists with an
// empty key so a reload can resolve it.
func (s *Store) Save(status Status, p principal.Principal, signingKey *ecdsa.PrivateKey) error {
	sealed := ""
	if signingKey != nil {
		var err error
		sealed, err = keys.EncryptPrivateKey(signingKey, string(p), s.secret)
		if err != nil {
			return fmt.Errorf("sealing session key: %w", err)
		}
	}

	now := time.Now().UTC()
	row := persistedSession{
		ID:         sessionRowID,
		Status:     int(status),
		Principal:  string(p),
		SessionKey: sealed,
		CreatedAt:  now,
		UpdatedAt:  &now,
	}

	_, err := s.db.NamedExec(`insert into session
		(ID, Status, Principal, SessionKey, CreatedAt, UpdatedAt)
		values(:ID, :Status, :Principal, :SessionKey, :CreatedAt, :UpdatedAt)
		on conflict(ID) do update set
		Status = :Status, Principal = :Principal, SessionKey = :SessionKey, UpdatedAt = :UpdatedAt`, row)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Load returns the persisted session state, or (SignedOut, "", nil, nil)
// when nothing is persisted.
func (s *Store) Load() (Status, principal.Principal, *ecdsa.PrivateKey, error) {
	row := persistedSession{}
	err := s.db.Get(&row, `select * from session where ID = ?`, sessionRowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SignedOut, "", nil, nil
		}
		return SignedOut, "", nil, fmt.Errorf("loading session: %w", err)
	}

	status := Status(row.Status)
	if row.SessionKey == "" {
		return status, principal.Principal(row.Principal), nil, nil
	}

	signingKey, err := keys.DecryptPrivateKey(row.SessionKey, s.secret)
	if err != nil {
		return SignedOut, "", nil, fmt.Errorf("unsealing session key: %w", err)
	}
	return status, principal.Principal(row.Principal), signingKey, nil
}

// Clear removes the persisted session. No credential survives this call.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`delete from session where ID = ?`, sessionRowID); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

func loadOrCreateSecret(secretPath string) ([]byte, error) {
	secret, err := os.ReadFile(secretPath)
	if err == nil && len(secret) > 0 {
		return secret, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading session secret: %w", err)
	}

	secret = make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("creating session secret: %w", err)
	}
	if err := os.WriteFile(secretPath, secret, 0600); err != nil {
		return nil, fmt.Errorf("writing session secret: %w", err)
	}
	return secret, nil
}
