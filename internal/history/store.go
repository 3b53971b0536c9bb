package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"shelver/internal/config"
	"shelver/internal/logging"
	"shelver/internal/mover"
	"shelver/internal/report"
)

// Store manages the outcome journal backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Entry is one journaled outcome joined with its pass.
type Entry struct {
	PassID      string
	Trigger     string
	StartedAt   time.Time
	Filename    string
	Status      mover.Status
	Source      string
	Destination string
	Reason      string
	Error       string
	Attempts    int
	Bytes       int64
	Duration    time.Duration
}

// PassSummary is one journaled pass.
type PassSummary struct {
	ID         string
	Trigger    string
	StartedAt  time.Time
	FinishedAt time.Time
	Counts     report.Counts
}

// Open initializes or connects to the history database.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.HistoryPath()
	// Connection-scoped pragmas go in the DSN so every pooled connection gets them.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragma journal_mode: %w", err)
	}

	store := &Store{db: db, path: dbPath, logger: logging.NewComponentLogger(logger, "history")}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// SavePass writes pass and all its outcomes atomically.
func (s *Store) SavePass(ctx context.Context, pass *report.Pass) error {
	if pass == nil {
		return nil
	}
	counts := pass.Counts()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pass tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO passes (id, trigger_kind, started_at, finished_at, moved, skipped, failed, moved_bytes)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pass.ID,
		pass.Trigger,
		formatTime(pass.StartedAt),
		formatTime(pass.FinishedAt),
		counts.Moved,
		counts.Skipped,
		counts.Failed,
		counts.MovedBytes,
	); err != nil {
		return fmt.Errorf("insert pass: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO outcomes (pass_id, filename, status, source, destination, reason, error_message, attempts, bytes, duration_ms)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range pass.Outcomes {
		var errMsg string
		if o.Err != nil {
			errMsg = o.Err.Error()
		}
		if _, err := stmt.ExecContext(ctx,
			pass.ID,
			o.Filename,
			string(o.Status),
			nullableString(o.Source),
			nullableString(o.Destination),
			nullableString(string(o.Reason)),
			nullableString(errMsg),
			o.Attempts,
			o.Bytes,
			o.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pass: %w", err)
	}
	return nil
}

// Recent returns the newest outcomes, newest first. Skipped outcomes are
// omitted unless includeSkipped is set.
func (s *Store) Recent(ctx context.Context, limit int, includeSkipped bool) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT p.id, p.trigger_kind, p.started_at, o.filename, o.status, o.source, o.destination,
                     o.reason, o.error_message, o.attempts, o.bytes, o.duration_ms
              FROM outcomes o JOIN passes p ON p.id = o.pass_id`
	args := []any{}
	if !includeSkipped {
		query += " WHERE o.status != ?"
		args = append(args, string(mover.StatusSkipped))
	}
	query += " ORDER BY p.started_at DESC, o.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                                    Entry
			startedAt, status                    string
			source, destination, reason, errText sql.NullString
			durationMS                           int64
		)
		if err := rows.Scan(&e.PassID, &e.Trigger, &startedAt, &e.Filename, &status, &source, &destination,
			&reason, &errText, &e.Attempts, &e.Bytes, &durationMS); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		e.StartedAt = parseTime(startedAt)
		e.Status = mover.Status(status)
		e.Source = source.String
		e.Destination = destination.String
		e.Reason = reason.String
		e.Error = errText.String
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Passes returns the newest pass summaries, newest first.
func (s *Store) Passes(ctx context.Context, limit int) ([]PassSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trigger_kind, started_at, finished_at, moved, skipped, failed, moved_bytes
         FROM passes ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	var passes []PassSummary
	for rows.Next() {
		var (
			p                 PassSummary
			started, finished string
		)
		if err := rows.Scan(&p.ID, &p.Trigger, &started, &finished,
			&p.Counts.Moved, &p.Counts.Skipped, &p.Counts.Failed, &p.Counts.MovedBytes); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		p.StartedAt = parseTime(started)
		p.FinishedAt = parseTime(finished)
		passes = append(passes, p)
	}
	return passes, rows.Err()
}

// Prune deletes passes (and their outcomes) that started before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM passes WHERE started_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune passes: %w", err)
	}
	return res.RowsAffected()
}

// RecordOutcome satisfies report.Sink. Outcomes are written with their pass.
func (s *Store) RecordOutcome(context.Context, string, mover.Outcome) {}

// RecordPass satisfies report.Sink by journaling the pass.
func (s *Store) RecordPass(ctx context.Context, pass *report.Pass) {
	if err := s.SavePass(ctx, pass); err != nil {
		logging.WarnWithContext(s.logger, "history write failed", "history_write_failed",
			logging.String(logging.FieldPassID, pass.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on state_dir"),
			logging.String(logging.FieldImpact, "this pass will be missing from 'shelver history'"),
		)
	}
}

// timeLayout is fixed width so stored timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
