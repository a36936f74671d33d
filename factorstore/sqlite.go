package factorstore

import (
	"context"
	"database/sql"

	"github.com/CChahrour/SeqNado/normalization"
	"github.com/pkg/errors"
	"v.io/x/lib/vlog"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

const createFactorsTable = `CREATE TABLE IF NOT EXISTS scale_factors (
	subject TEXT NOT NULL,
	kind TEXT NOT NULL,
	method TEXT NOT NULL,
	scale_factor REAL NOT NULL CHECK (scale_factor > 0),
	PRIMARY KEY (subject, kind, method)
)`

// SQLite is a Store backed by an SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens, and creates if needed, the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if _, err := db.ExecContext(ctx, createFactorsTable); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "%s: create table", path)
	}
	vlog.VI(1).Infof("factorstore: opened %s", path)
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Put implements Store. All records are written in a single transaction.
func (s *SQLite) Put(ctx context.Context, recs []Record) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO scale_factors (subject, kind, method, scale_factor) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range recs {
		if _, err = stmt.ExecContext(ctx, r.Subject, r.Kind.String(), r.Method.String(), r.Factor); err != nil {
			return errors.Wrapf(err, "put %v", r.Key)
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	vlog.VI(1).Infof("factorstore: committed %d records", len(recs))
	return nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, key Key) (float64, error) {
	var f float64
	err := s.db.QueryRowContext(ctx,
		`SELECT scale_factor FROM scale_factors WHERE subject = ? AND kind = ? AND method = ?`,
		key.Subject, key.Kind.String(), key.Method.String()).Scan(&f)
	if err == sql.ErrNoRows {
		return 0, notFound(key)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "get %v", key)
	}
	return f, nil
}

// Records returns every stored record in sorted order.
func (s *SQLite) Records(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT subject, kind, method, scale_factor FROM scale_factors`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []Record
	for rows.Next() {
		var (
			r            Record
			kind, method string
		)
		if err := rows.Scan(&r.Subject, &kind, &method, &r.Factor); err != nil {
			return nil, err
		}
		if r.Kind, err = ParseSubjectKind(kind); err != nil {
			return nil, err
		}
		if r.Method, err = normalization.ParseMethod(method); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	Sort(recs)
	return recs, nil
}
