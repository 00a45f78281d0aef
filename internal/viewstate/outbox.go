package viewstate

import (
	"fmt"
	"os"
	"path"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/chainvoice/chainvoice-go/internal/model"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

// Outbox persists submitted-but-unfinalized writes so a provisional
// overlay survives a reload and can be reconciled later.
type Outbox struct {
	db *sqlx.DB
}

func OpenOutbox(dataDir string) (*Outbox, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", "file:"+path.Join(dataDir, "outbox.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	outbox := &Outbox{db}
	if err := outbox.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return outbox, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

func (o *Outbox) createTables() error {
	_, err := o.db.Exec(`create table if not exists outbox(
		TxID      text not null primary key,
		CreatedAt DATETIME not null,
		Status    tinyint not null default 0,
		Sender    text not null,
		Operation text not null,
		Payload   text not null
	)`)
	if err != nil {
		return fmt.Errorf("creating outbox table: %w", err)
	}
	return nil
}

func (o *Outbox) Put(pending *model.PendingTx) error {
	res, err := o.db.NamedExec(`insert into outbox
		(TxID, CreatedAt, Status, Sender, Operation, Payload)
		values(:TxID, :CreatedAt, :Status, :Sender, :Operation, :Payload)`, pending)
	if err != nil {
		return fmt.Errorf("inserting outbox entry: %w", err)
	}
	if rows, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	} else if rows != 1 {
		return fmt.Errorf("expected 1 row to be affected, got %d", rows)
	}
	return nil
}

// Submitted lists the entries still awaiting finalization, oldest first.
func (o *Outbox) Submitted() ([]model.PendingTx, error) {
	pending := []model.PendingTx{}
	err := o.db.Select(&pending,
		`select * from outbox where Status = ? order by CreatedAt`, model.PendingTxSubmitted)
	if err != nil {
		return nil, fmt.Errorf("listing submitted entries: %w", err)
	}
	return pending, nil
}

// For lists every entry for a sender regardless of status, newest first.
func (o *Outbox) For(sender principal.Principal) ([]model.PendingTx, error) {
	pending := []model.PendingTx{}
	err := o.db.Select(&pending,
		`select * from outbox where Sender = ? order by CreatedAt desc`, string(sender))
	if err != nil {
		return nil, fmt.Errorf("listing sender entries: %w", err)
	}
	return pending, nil
}

func (o *Outbox) SetStatus(txID string, status model.PendingTxStatus) error {
	if _, err := o.db.Exec(`update outbox set Status = ? where TxID = ?`, status, txID); err != nil {
		return fmt.Errorf("updating outbox status: %w", err)
	}
	return nil
}

func (o *Outbox) Delete(txID string) error {
	if _, err := o.db.Exec(`delete from outbox where TxID = ?`, txID); err != nil {
		return fmt.Errorf("deleting outbox entry: %w", err)
	}
	return nil
}
