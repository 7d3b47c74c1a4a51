// Package store persists merchant intel in SQLite so enrichment survives
// between runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS merchant_intel (
	lookup_key TEXT PRIMARY KEY,
	merchant_raw TEXT NOT NULL DEFAULT '',
	merchant_lookup_name TEXT NOT NULL DEFAULT '',
	business_type TEXT NOT NULL DEFAULT '',
	business_category TEXT NOT NULL DEFAULT '',
	confidence TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	abn TEXT NOT NULL DEFAULT '',
	abn_name TEXT NOT NULL DEFAULT '',
	abn_entity_type TEXT NOT NULL DEFAULT '',
	abn_status TEXT NOT NULL DEFAULT '',
	main_place TEXT NOT NULL DEFAULT '',
	source_urls TEXT NOT NULL DEFAULT '[]',
	updated_at TEXT NOT NULL DEFAULT ''
);`

const columns = `lookup_key, merchant_raw, merchant_lookup_name, business_type, business_category,
	confidence, reason, abn, abn_name, abn_entity_type, abn_status, main_place, source_urls, updated_at`

const upsert = `INSERT INTO merchant_intel (` + columns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(lookup_key) DO UPDATE SET
	merchant_raw = excluded.merchant_raw,
	merchant_lookup_name = excluded.merchant_lookup_name,
	business_type = excluded.business_type,
	business_category = excluded.business_category,
	confidence = excluded.confidence,
	reason = excluded.reason,
	abn = excluded.abn,
	abn_name = excluded.abn_name,
	abn_entity_type = excluded.abn_entity_type,
	abn_status = excluded.abn_status,
	main_place = excluded.main_place,
	source_urls = excluded.source_urls,
	updated_at = excluded.updated_at`

// Store is a SQLite-backed merchant intel table.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening intel store %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating intel store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts items in one transaction. Records without a lookup key are skipped.
func (s *Store) Save(ctx context.Context, items []model.MerchantIntel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning intel save: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return fmt.Errorf("preparing intel upsert: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if it.LookupKey == "" {
			continue
		}
		urls := it.SourceURLs
		if urls == nil {
			urls = []string{}
		}
		encoded, err := json.Marshal(urls)
		if err != nil {
			return fmt.Errorf("encoding source urls for %q: %w", it.LookupKey, err)
		}
		updated := ""
		if !it.UpdatedAt.IsZero() {
			updated = it.UpdatedAt.UTC().Format(time.RFC3339)
		}
		if _, err := stmt.ExecContext(ctx,
			it.LookupKey, it.MerchantRaw, it.MerchantLookupName, it.BusinessType, it.BusinessCategory,
			it.ClassificationConfidence, it.ClassificationReason, it.ABN, it.ABNName, it.ABNEntityType,
			it.ABNStatus, it.MainPlaceOfBusiness, string(encoded), updated,
		); err != nil {
			return fmt.Errorf("saving intel %q: %w", it.LookupKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing intel save: %w", err)
	}
	return nil
}

// Get returns the record for key.
func (s *Store) Get(ctx context.Context, key string) (model.MerchantIntel, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM merchant_intel WHERE lookup_key = ?`, key)
	intel, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MerchantIntel{}, false, nil
	}
	if err != nil {
		return model.MerchantIntel{}, false, fmt.Errorf("reading intel %q: %w", key, err)
	}
	return intel, true, nil
}

// All returns every record ordered by lookup key.
func (s *Store) All(ctx context.Context) ([]model.MerchantIntel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM merchant_intel ORDER BY lookup_key`)
	if err != nil {
		return nil, fmt.Errorf("listing intel: %w", err)
	}
	defer rows.Close()

	var out []model.MerchantIntel
	for rows.Next() {
		intel, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning intel: %w", err)
		}
		out = append(out, intel)
	}
	return out, rows.Err()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM merchant_intel`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting intel: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (model.MerchantIntel, error) {
	var (
		it      model.MerchantIntel
		urls    string
		updated string
	)
	if err := r.Scan(
		&it.LookupKey, &it.MerchantRaw, &it.MerchantLookupName, &it.BusinessType, &it.BusinessCategory,
		&it.ClassificationConfidence, &it.ClassificationReason, &it.ABN, &it.ABNName, &it.ABNEntityType,
		&it.ABNStatus, &it.MainPlaceOfBusiness, &urls, &updated,
	); err != nil {
		return model.MerchantIntel{}, err
	}
	if err := json.Unmarshal([]byte(urls), &it.SourceURLs); err != nil {
		return model.MerchantIntel{}, fmt.Errorf("decoding source urls: %w", err)
	}
	if updated != "" {
		ts, err := time.Parse(time.RFC3339, updated)
		if err != nil {
			return model.MerchantIntel{}, fmt.Errorf("parsing updated_at %q: %w", updated, err)
		}
		it.UpdatedAt = ts
	}
	return it, nil
}
