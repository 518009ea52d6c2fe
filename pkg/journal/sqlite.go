/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	// registers the "sqlite" driver
	_ "modernc.org/sqlite"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/assettransfer"
)

const (
	createOutcomes = `CREATE TABLE IF NOT EXISTS outcomes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	asset_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	actor TEXT NOT NULL,
	scope TEXT NOT NULL,
	expected TEXT NOT NULL,
	code TEXT NOT NULL,
	reason TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	duration INTEGER NOT NULL
)`
	insertOutcome  = `INSERT INTO outcomes (asset_id, kind, actor, scope, expected, code, reason, created_at, duration) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectOutcomes = `SELECT asset_id, kind, actor, scope, expected, code, reason, created_at, duration FROM outcomes ORDER BY id`
)

// SQL stores entries in the outcomes table of a SQL database.
type SQL struct {
	db *sql.DB
}

// OpenSQLite opens, and creates if needed, a SQLite journal file.
func OpenSQLite(path string) (*SQL, error) {
	logger.Infof("opening journal [%s]", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open journal [%s]", path)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	j, err := NewSQL(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// NewSQL returns a journal over db, creating the outcomes table if needed.
func NewSQL(db *sql.DB) (*SQL, error) {
	if _, err := db.Exec(createOutcomes); err != nil {
		return nil, errors.Wrap(err, "failed to create outcomes table")
	}
	return &SQL{db: db}, nil
}

// Record inserts the outcome.
func (j *SQL) Record(ctx context.Context, o *assettransfer.Outcome) error {
	e := NewEntry(o)
	_, err := j.db.ExecContext(ctx, insertOutcome,
		e.AssetID, e.Kind, e.Actor, e.Scope, e.Expected, e.Code, e.Reason, e.Time.UnixNano(), int64(e.Duration))
	if err != nil {
		return errors.Wrapf(err, "failed to record %s of %s", e.Kind, e.AssetID)
	}
	logger.Debugf("recorded %s of %s: %s", e.Kind, e.AssetID, e.Code)
	return nil
}

// Entries returns every stored entry in insertion order.
func (j *SQL) Entries(ctx context.Context) ([]*Entry, error) {
	rows, err := j.db.QueryContext(ctx, selectOutcomes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query outcomes")
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			e        Entry
			at       int64
			duration int64
		)
		if err := rows.Scan(&e.AssetID, &e.Kind, &e.Actor, &e.Scope, &e.Expected, &e.Code, &e.Reason, &at, &duration); err != nil {
			return nil, errors.Wrap(err, "failed to scan outcome")
		}
		e.Time = time.Unix(0, at).UTC()
		e.Duration = time.Duration(duration)
		entries = append(entries, &e)
	}
	return entries, errors.Wrap(rows.Err(), "failed to read outcomes")
}

// Close closes the database.
func (j *SQL) Close() error {
	return j.db.Close()
}
