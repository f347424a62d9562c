package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/0xmhha/tab-monitor/pkg/aggregator"
	"github.com/0xmhha/tab-monitor/pkg/logger"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS domains (
  domain TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  category TEXT NOT NULL,
  total_time_ms INTEGER NOT NULL,
  visits INTEGER NOT NULL,
  first_visit_ms INTEGER NOT NULL,
  last_visit_ms INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS daily (
  date TEXT PRIMARY KEY,
  total_time_ms INTEGER NOT NULL,
  productive_time_ms INTEGER NOT NULL,
  categories TEXT NOT NULL,
  session_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
  key TEXT PRIMARY KEY,
  value INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS spool_positions (
  path TEXT PRIMARY KEY,
  byte_offset INTEGER NOT NULL
);
`

// SQLiteStore implements Backend using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	timeout time.Duration
	logger  logger.Logger
}

// OpenSQLite opens or creates a SQLite database at path.
func OpenSQLite(path string, timeout time.Duration, log logger.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, timeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:      db,
		path:    path,
		timeout: timeout,
		logger:  log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization error",
				"error", closeErr)
		}
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info("sqlite storage opened", "db_path", path)
	return s, nil
}

// Load implements aggregator.Persister.Load.
func (s *SQLiteStore) Load(ctx context.Context) (*aggregator.Snapshot, error) {
	snap := &aggregator.Snapshot{
		Domains: make(map[string]aggregator.DomainAggregate),
		Days:    make(map[string]aggregator.DailyStats),
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT domain, title, category, total_time_ms, visits, first_visit_ms, last_visit_ms
FROM domains`)
	if err != nil {
		return nil, fmt.Errorf("query domains: %w", err)
	}
	for rows.Next() {
		var rec domainRecord
		if err := rows.Scan(&rec.Domain, &rec.Title, &rec.Category, &rec.TotalTimeMS,
			&rec.Visits, &rec.FirstVisitMS, &rec.LastVisitMS); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		snap.Domains[rec.Domain] = decodeDomain(rec)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("read domains: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
SELECT date, total_time_ms, productive_time_ms, categories, session_count
FROM daily`)
	if err != nil {
		return nil, fmt.Errorf("query daily: %w", err)
	}
	for rows.Next() {
		var rec dailyRecord
		var cats string
		if err := rows.Scan(&rec.Date, &rec.TotalTimeMS, &rec.ProductiveTimeMS, &cats, &rec.SessionCount); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan day: %w", err)
		}
		if err := json.Unmarshal([]byte(cats), &rec.Categories); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("%w: day %s: %v", ErrCorruptRecord, rec.Date, err)
		}
		snap.Days[rec.Date] = decodeDay(rec)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("read daily: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}
	for rows.Next() {
		var key string
		var value int64
		if err := rows.Scan(&key, &value); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		switch key {
		case metaTrackingEnabled:
			snap.Meta.TrackingEnabled = value != 0
			snap.HasMeta = true
		case metaSessionAnchor:
			snap.Meta.SessionAnchor = msToTime(value)
			snap.HasMeta = true
		}
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}

	return snap, nil
}

// Save implements aggregator.Persister.Save.
func (s *SQLiteStore) Save(ctx context.Context, batch aggregator.Batch) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, d := range batch.Domains {
		rec := encodeDomain(d)
		if _, err = tx.ExecContext(ctx, `
INSERT INTO domains (domain, title, category, total_time_ms, visits, first_visit_ms, last_visit_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(domain) DO UPDATE SET
  title=excluded.title,
  category=excluded.category,
  total_time_ms=excluded.total_time_ms,
  visits=excluded.visits,
  first_visit_ms=excluded.first_visit_ms,
  last_visit_ms=excluded.last_visit_ms`,
			rec.Domain, rec.Title, rec.Category, rec.TotalTimeMS, rec.Visits,
			rec.FirstVisitMS, rec.LastVisitMS); err != nil {
			return fmt.Errorf("upsert domain %s: %w", rec.Domain, err)
		}
	}

	for _, d := range batch.Days {
		rec := encodeDay(d)
		cats, marshalErr := json.Marshal(rec.Categories)
		if marshalErr != nil {
			return fmt.Errorf("marshal categories: %w", marshalErr)
		}
		if _, err = tx.ExecContext(ctx, `
INSERT INTO daily (date, total_time_ms, productive_time_ms, categories, session_count)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(date) DO UPDATE SET
  total_time_ms=excluded.total_time_ms,
  productive_time_ms=excluded.productive_time_ms,
  categories=excluded.categories,
  session_count=excluded.session_count`,
			rec.Date, rec.TotalTimeMS, rec.ProductiveTimeMS, string(cats), rec.SessionCount); err != nil {
			return fmt.Errorf("upsert day %s: %w", rec.Date, err)
		}
	}

	if batch.Meta != nil {
		enabled := int64(0)
		if batch.Meta.TrackingEnabled {
			enabled = 1
		}
		for key, value := range map[string]int64{
			metaTrackingEnabled: enabled,
			metaSessionAnchor:   timeToMS(batch.Meta.SessionAnchor),
		} {
			if _, err = tx.ExecContext(ctx, `
INSERT INTO meta (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value); err != nil {
				return fmt.Errorf("upsert meta %s: %w", key, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Clear implements aggregator.Persister.Clear.
func (s *SQLiteStore) Clear(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM domains`); err != nil {
		return fmt.Errorf("clear domains: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM daily`); err != nil {
		return fmt.Errorf("clear daily: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}

	s.logger.Info("aggregates cleared", "db_path", s.path)
	return nil
}

// GetPosition implements reader.PositionStore.GetPosition.
func (s *SQLiteStore) GetPosition(path string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var offset int64
	err := s.db.QueryRowContext(ctx, `SELECT byte_offset FROM spool_positions WHERE path = ?`, path).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get position: %w", err)
	}
	return offset, nil
}

// SetPosition implements reader.PositionStore.SetPosition.
func (s *SQLiteStore) SetPosition(path string, offset int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `
INSERT INTO spool_positions (path, byte_offset) VALUES (?, ?)
ON CONFLICT(path) DO UPDATE SET byte_offset=excluded.byte_offset`, path, offset); err != nil {
		return fmt.Errorf("set position %s: %w", strconv.Quote(path), err)
	}
	return nil
}

// Path implements Backend.Path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close implements Backend.Close.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.logger.Info("sqlite storage closed")
	return nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}
