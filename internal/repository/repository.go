// Package repository provides run-artifact persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/opensource-finance/premarket/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun stores the artifacts of one run. Re-running a date replaces any
// previously stored artifacts for that date; all four tables are swapped
// in a single transaction.
func (r *SQLRepository) SaveRun(ctx context.Context, artifacts *domain.RunArtifacts) error {
	if artifacts == nil || artifacts.Date == "" {
		return fmt.Errorf("%w: run date is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"full_watchlist", "top_n", "watchlist", "run_summary"} {
		query := "DELETE FROM " + table + " WHERE run_date = ?"
		if _, err := tx.ExecContext(ctx, r.rebind(query), artifacts.Date); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := r.insertFullWatchlist(ctx, tx, artifacts); err != nil {
		return err
	}
	if err := r.insertTopN(ctx, tx, artifacts); err != nil {
		return err
	}
	if err := r.insertWatchlist(ctx, tx, artifacts); err != nil {
		return err
	}
	if err := r.insertSummary(ctx, tx, artifacts); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *SQLRepository) insertFullWatchlist(ctx context.Context, tx *sql.Tx, artifacts *domain.RunArtifacts) error {
	query := r.rebind(`
		INSERT INTO full_watchlist (run_date, symbol, qualified, score, tier, rank, row)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	for _, row := range artifacts.FullWatchlist {
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal row %s: %w", row.Ticker, err)
		}

		qualified := 0
		if row.Qualified {
			qualified = 1
		}

		if _, err := tx.ExecContext(ctx, query,
			artifacts.Date, row.Ticker, qualified,
			row.Score, row.Tier, row.Rank, string(payload),
		); err != nil {
			return fmt.Errorf("insert full_watchlist row %s: %w", row.Ticker, err)
		}
	}
	return nil
}

func (r *SQLRepository) insertTopN(ctx context.Context, tx *sql.Tx, artifacts *domain.RunArtifacts) error {
	payload, err := json.Marshal(artifacts.TopN)
	if err != nil {
		return fmt.Errorf("marshal top_n: %w", err)
	}

	query := r.rebind(`INSERT INTO top_n (run_date, generated_at, payload) VALUES (?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query,
		artifacts.Date, artifacts.GeneratedAt, string(payload),
	); err != nil {
		return fmt.Errorf("insert top_n: %w", err)
	}
	return nil
}

func (r *SQLRepository) insertWatchlist(ctx context.Context, tx *sql.Tx, artifacts *domain.RunArtifacts) error {
	query := r.rebind(`
		INSERT INTO watchlist (run_date, rank, symbol, score, tier, gap_pct, rel_volume, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	for _, entry := range artifacts.Watchlist {
		if _, err := tx.ExecContext(ctx, query,
			artifacts.Date, entry.Rank, entry.Symbol,
			entry.Score, entry.Tier, entry.GapPct, entry.RelVolume,
			strings.Join(entry.Tags, ","),
		); err != nil {
			return fmt.Errorf("insert watchlist entry %s: %w", entry.Symbol, err)
		}
	}
	return nil
}

func (r *SQLRepository) insertSummary(ctx context.Context, tx *sql.Tx, artifacts *domain.RunArtifacts) error {
	payload, err := json.Marshal(artifacts.Summary)
	if err != nil {
		return fmt.Errorf("marshal run_summary: %w", err)
	}

	query := r.rebind(`INSERT INTO run_summary (run_date, generated_at, payload) VALUES (?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query,
		artifacts.Date, artifacts.GeneratedAt, string(payload),
	); err != nil {
		return fmt.Errorf("insert run_summary: %w", err)
	}
	return nil
}

// GetRun retrieves the stored artifacts for a run date.
func (r *SQLRepository) GetRun(ctx context.Context, date string) (*domain.RunArtifacts, error) {
	if date == "" {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}

	artifacts := &domain.RunArtifacts{Date: date}

	// The summary row anchors the run; its absence means not found.
	var summaryPayload string
	query := `SELECT generated_at, payload FROM run_summary WHERE run_date = ?`
	err := r.db.QueryRowContext(ctx, r.rebind(query), date).Scan(
		&artifacts.GeneratedAt, &summaryPayload,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(summaryPayload), &artifacts.Summary); err != nil {
		return nil, fmt.Errorf("parse run_summary: %w", err)
	}

	if err := r.loadFullWatchlist(ctx, date, artifacts); err != nil {
		return nil, err
	}
	if err := r.loadTopN(ctx, date, artifacts); err != nil {
		return nil, err
	}
	if err := r.loadWatchlist(ctx, date, artifacts); err != nil {
		return nil, err
	}

	return artifacts, nil
}

func (r *SQLRepository) loadFullWatchlist(ctx context.Context, date string, artifacts *domain.RunArtifacts) error {
	query := `SELECT row FROM full_watchlist WHERE run_date = ? ORDER BY score DESC, symbol ASC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), date)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return err
		}

		var row domain.Row
		if err := json.Unmarshal([]byte(payload), &row); err != nil {
			return fmt.Errorf("parse full_watchlist row: %w", err)
		}
		artifacts.FullWatchlist = append(artifacts.FullWatchlist, &row)
	}
	return rows.Err()
}

func (r *SQLRepository) loadTopN(ctx context.Context, date string, artifacts *domain.RunArtifacts) error {
	var payload string
	query := `SELECT payload FROM top_n WHERE run_date = ?`
	err := r.db.QueryRowContext(ctx, r.rebind(query), date).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(payload), &artifacts.TopN)
}

func (r *SQLRepository) loadWatchlist(ctx context.Context, date string, artifacts *domain.RunArtifacts) error {
	query := `
		SELECT rank, symbol, score, tier, gap_pct, rel_volume, tags
		FROM watchlist
		WHERE run_date = ?
		ORDER BY rank ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), date)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var entry domain.WatchlistEntry
		var tags string

		if err := rows.Scan(
			&entry.Rank, &entry.Symbol, &entry.Score, &entry.Tier,
			&entry.GapPct, &entry.RelVolume, &tags,
		); err != nil {
			return err
		}

		if tags != "" {
			entry.Tags = strings.Split(tags, ",")
		}
		artifacts.Watchlist = append(artifacts.Watchlist, entry)
	}
	return rows.Err()
}

// LatestRunDate returns the most recent stored run date.
func (r *SQLRepository) LatestRunDate(ctx context.Context) (string, error) {
	var date sql.NullString
	query := `SELECT MAX(run_date) FROM run_summary`
	if err := r.db.QueryRowContext(ctx, query).Scan(&date); err != nil {
		return "", err
	}
	if !date.Valid || date.String == "" {
		return "", ErrNotFound
	}
	return date.String, nil
}

// ListRunDates returns stored run dates, newest first.
func (r *SQLRepository) ListRunDates(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 30
	}

	query := `SELECT run_date FROM run_summary ORDER BY run_date DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
