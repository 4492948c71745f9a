package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/kanplan/internal/app"
	"github.com/hylla/kanplan/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// counterKey names the meta row holding the id counter.
const counterKey = "task_counter"

// Repository persists store snapshots in a sqlite database.
type Repository struct {
	db *sql.DB
}

var _ app.Persister = (*Repository)(nil)

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			position INTEGER PRIMARY KEY,
			id TEXT NOT NULL,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			start_time TEXT NOT NULL DEFAULT '',
			duration TEXT NOT NULL DEFAULT '',
			epic_start TEXT NOT NULL DEFAULT '',
			epic_duration TEXT NOT NULL DEFAULT '',
			epic_id TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_items_id ON items(id);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// Load reads every stored record in position order plus the id counter.
func (r *Repository) Load(ctx context.Context) (app.LoadResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, name, status, description, start_time, duration, epic_start, epic_duration, epic_id
		FROM items
		ORDER BY position ASC
	`)
	if err != nil {
		return app.LoadResult{}, fmt.Errorf("query items: %w: %w", app.ErrLoadCorruption, err)
	}
	defer rows.Close()

	var out app.LoadResult
	for rows.Next() {
		var rec domain.Record
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Name, &rec.Status, &rec.Description, &rec.Start, &rec.Duration, &rec.EpicStart, &rec.EpicDuration, &rec.EpicID); err != nil {
			return app.LoadResult{}, fmt.Errorf("scan item: %w: %w", app.ErrLoadCorruption, err)
		}
		out.Records = append(out.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return app.LoadResult{}, fmt.Errorf("read items: %w: %w", app.ErrLoadCorruption, err)
	}

	counter, err := r.counter(ctx)
	if err != nil {
		return app.LoadResult{}, err
	}
	out.Counter = counter
	return out, nil
}

// counter reads the persisted id counter. A missing row means zero.
func (r *Repository) counter(ctx context.Context) (int, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, counterKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query counter: %w: %w", app.ErrLoadCorruption, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: counter %q", app.ErrLoadCorruption, raw)
	}
	return n, nil
}

// Save replaces the stored records and counter in one transaction.
func (r *Repository) Save(ctx context.Context, records []domain.Record, counter int) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items(position, id, type, name, status, description, start_time, duration, epic_start, epic_duration, epic_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare item insert: %w", err)
	}
	defer stmt.Close()
	for i, rec := range records {
		_, err = stmt.ExecContext(ctx,
			i,
			rec.ID,
			rec.Type,
			rec.Name,
			rec.Status,
			rec.Description,
			rec.Start,
			rec.Duration,
			rec.EpicStart,
			rec.EpicDuration,
			rec.EpicID,
		)
		if err != nil {
			return fmt.Errorf("insert item %s: %w", rec.ID, err)
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO meta(key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, counterKey, strconv.Itoa(counter), ts(time.Now()))
	if err != nil {
		return fmt.Errorf("store counter: %w", err)
	}

	err = tx.Commit()
	return err
}

// SavedAt reports when the counter row was last written.
func (r *Repository) SavedAt(ctx context.Context) (time.Time, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT updated_at FROM meta WHERE key = ?`, counterKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, app.ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	return parseTS(raw), nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
