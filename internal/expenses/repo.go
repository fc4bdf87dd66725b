// Package expenses maintains the single shared expense ledger document.
package expenses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"membership/internal/ledger"
	"membership/internal/store"
)

const ledgerID = 1

// Document is the stored ledger with its concurrency token. Version zero
// means the document has not been created yet.
type Document struct {
	Entries   ledger.Expenses `json:"entries"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Repository persists the shared ledger row.
type Repository struct {
	db store.DBTX
}

func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

// Load returns the ledger, or an empty document when none exists yet.
func (r *Repository) Load(ctx context.Context) (Document, error) {
	var (
		doc Document
		raw []byte
	)
	err := r.db.QueryRowContext(ctx, `SELECT entries, version, updated_at FROM expense_ledger WHERE id = $1`, ledgerID).
		Scan(&raw, &doc.Version, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{Entries: ledger.Expenses{}}, nil
	}
	if err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(raw, &doc.Entries); err != nil {
		return Document{}, fmt.Errorf("decode expense ledger: %w", err)
	}
	if doc.Entries == nil {
		doc.Entries = ledger.Expenses{}
	}
	return doc, nil
}

// Save writes doc if nobody else wrote since it was loaded. The first save
// creates the row.
func (r *Repository) Save(ctx context.Context, doc Document) (Document, error) {
	raw, err := json.Marshal(doc.Entries)
	if err != nil {
		return Document{}, err
	}
	var row *sql.Row
	if doc.Version == 0 {
		row = r.db.QueryRowContext(ctx, `
			INSERT INTO expense_ledger (id, entries) VALUES ($1, $2)
			ON CONFLICT (id) DO NOTHING
			RETURNING version, updated_at
		`, ledgerID, raw)
	} else {
		row = r.db.QueryRowContext(ctx, `
			UPDATE expense_ledger SET entries = $2, version = version + 1, updated_at = NOW()
			WHERE id = $1 AND version = $3
			RETURNING version, updated_at
		`, ledgerID, raw, doc.Version)
	}
	if err := row.Scan(&doc.Version, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, store.ErrConflict
		}
		return Document{}, err
	}
	return doc, nil
}
