// Package store persists rating records and fetch runs in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/escrow-tf/trackmmr"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pressly/goose/v3"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const timestampLayout = "2006-01-02 15:04:05"

var pragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
}

// FetchRun is one attempt to pull rating history, kept so the last outcome can be reported.
type FetchRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Fetched    int
	Inserted   int
	Error      string
}

func (r FetchRun) Succeeded() bool {
	return r.Error == ""
}

type SQLite struct {
	db       *sql.DB
	location *time.Location
	logger   zerolog.Logger
	now      func() time.Time
}

var _ trackmmr.Store = (*SQLite)(nil)

type Options struct {
	// Location is what returned timestamps are expressed in. Defaults to time.Local.
	Location *time.Location
	Logger   zerolog.Logger
}

// Open creates the database at path if needed and brings its schema up to date.
func Open(ctx context.Context, path string, options Options) (*SQLite, error) {
	if path == "" {
		return nil, eris.New("empty database path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, eris.Wrapf(err, "couldn't create directory for %s", path)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "couldn't open database")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "couldn't apply %q", pragma)
		}
	}

	if err := migrate(ctx, db, options.Logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	location := options.Location
	if location == nil {
		location = time.Local
	}

	return &SQLite{
		db:       db,
		location: location,
		logger:   options.Logger.With().Str("component", "store").Logger(),
		now:      time.Now,
	}, nil
}

func migrate(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	migrationsFS, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return eris.Wrap(err, "couldn't open embedded migrations")
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrationsFS)
	if err != nil {
		return eris.Wrap(err, "couldn't load migrations")
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return eris.Wrap(err, "couldn't run migrations")
	}
	for _, result := range results {
		logger.Debug().
			Int64("version", result.Source.Version).
			Dur("duration", result.Duration).
			Msg("applied migration")
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveRecords inserts every record whose match is not stored yet. Records for an already stored
// match are left untouched.
func (s *SQLite) SaveRecords(ctx context.Context, records []trackmmr.RatingRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "couldn't begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO rating_history (timestamp, match_id, rating, rating_change, hero_id, won)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "couldn't prepare insert")
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, record := range records {
		result, err := stmt.ExecContext(ctx,
			record.Timestamp.UTC().Format(timestampLayout),
			int64(record.MatchID),
			record.Rating,
			record.RatingChange,
			record.HeroID,
			record.Won,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "couldn't insert match %d", record.MatchID)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "couldn't count inserted rows")
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "couldn't commit records")
	}

	s.logger.Debug().Int("records", len(records)).Int("inserted", inserted).Msg("saved rating records")
	return inserted, nil
}

func (s *SQLite) GetHistory(ctx context.Context, sinceDays int) ([]trackmmr.RatingRecord, error) {
	query := `SELECT timestamp, match_id, rating, rating_change, hero_id, won FROM rating_history`
	var args []any
	if sinceDays > 0 {
		query += ` WHERE timestamp >= ?`
		args = append(args, s.now().UTC().AddDate(0, 0, -sinceDays).Format(timestampLayout))
	}
	query += ` ORDER BY timestamp DESC, match_id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "couldn't query rating history")
	}
	defer func() { _ = rows.Close() }()

	var records []trackmmr.RatingRecord
	for rows.Next() {
		var (
			timestamp string
			matchID   int64
			record    trackmmr.RatingRecord
		)
		if err := rows.Scan(&timestamp, &matchID, &record.Rating, &record.RatingChange, &record.HeroID, &record.Won); err != nil {
			return nil, eris.Wrap(err, "couldn't scan rating record")
		}
		record.MatchID = uint64(matchID)
		if record.Timestamp, err = s.parseTimestamp(timestamp); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "couldn't read rating history")
	}
	return records, nil
}

// RecordRun stores run under a fresh id and returns it.
func (s *SQLite) RecordRun(ctx context.Context, run FetchRun) (FetchRun, error) {
	id, err := gonanoid.New()
	if err != nil {
		return FetchRun{}, eris.Wrap(err, "couldn't generate run id")
	}
	run.ID = id

	_, err = s.db.ExecContext(ctx, `
INSERT INTO fetch_runs (id, started_at, finished_at, fetched, inserted, error)
VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(timestampLayout),
		run.FinishedAt.UTC().Format(timestampLayout),
		run.Fetched,
		run.Inserted,
		run.Error,
	)
	if err != nil {
		return FetchRun{}, eris.Wrap(err, "couldn't record fetch run")
	}
	return run, nil
}

// LastRun returns the most recently finished run, or false if there has been none.
func (s *SQLite) LastRun(ctx context.Context) (FetchRun, bool, error) {
	var (
		run                   FetchRun
		startedAt, finishedAt string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, started_at, finished_at, fetched, inserted, error
FROM fetch_runs
ORDER BY finished_at DESC, rowid DESC
LIMIT 1`).Scan(&run.ID, &startedAt, &finishedAt, &run.Fetched, &run.Inserted, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return FetchRun{}, false, nil
	}
	if err != nil {
		return FetchRun{}, false, eris.Wrap(err, "couldn't query last fetch run")
	}

	if run.StartedAt, err = s.parseTimestamp(startedAt); err != nil {
		return FetchRun{}, false, err
	}
	if run.FinishedAt, err = s.parseTimestamp(finishedAt); err != nil {
		return FetchRun{}, false, err
	}
	return run, true, nil
}

func (s *SQLite) parseTimestamp(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation(timestampLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "malformed timestamp %q", value)
	}
	return parsed.In(s.location), nil
}
