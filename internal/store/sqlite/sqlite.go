// Package sqlite is the embedded relational store implementation: SQLite
// via jmoiron/sqlx over mattn/go-sqlite3 (self-join-on-max-subquery "latest
// per symbol/source" query, INSERT OR IGNORE for URL dedup, and an
// ON CONFLICT...DO UPDATE upsert expression for source_status).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/sawpanic/marketfeed/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS data_points (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source_name TEXT NOT NULL,
  source_kind TEXT NOT NULL,
  category TEXT NOT NULL,
  symbol TEXT NOT NULL,
  display_name TEXT,
  value REAL NOT NULL,
  currency TEXT,
  change_pct REAL,
  volume REAL,
  timestamp INTEGER NOT NULL,
  ingested_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dp_symbol_source ON data_points(symbol, source_name);
CREATE INDEX IF NOT EXISTS idx_dp_category ON data_points(category);
CREATE INDEX IF NOT EXISTS idx_dp_ingested ON data_points(ingested_at DESC);

CREATE TABLE IF NOT EXISTS news_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL,
  source TEXT NOT NULL,
  url TEXT UNIQUE,
  summary TEXT,
  category TEXT NOT NULL,
  published_at INTEGER,
  ingested_at INTEGER NOT NULL,
  score REAL NOT NULL,
  region TEXT,
  country TEXT
);
CREATE INDEX IF NOT EXISTS idx_news_published ON news_items(published_at DESC);

CREATE TABLE IF NOT EXISTS source_status (
  source_name TEXT PRIMARY KEY,
  source_kind TEXT NOT NULL,
  last_attempt INTEGER,
  last_error TEXT,
  error_count INTEGER NOT NULL DEFAULT 0
);
`

// Store implements store.Store against a SQLite database file.
type Store struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// Open opens (creating if absent) the database at path, enables WAL mode
// and foreign keys, and applies the schema migration idempotently.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 serializes writers; avoid SQLITE_BUSY churn

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlite: migrate schema: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func nullableFloat(f float64) interface{} {
	if math.IsNaN(f) {
		return nil
	}
	return f
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func (s *Store) InsertDataPoint(ctx context.Context, dp model.DataPoint) error {
	const q = `
		INSERT INTO data_points
			(source_name, source_kind, category, symbol, display_name, value,
			 currency, change_pct, volume, timestamp, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		dp.SourceName, dp.SourceKind, dp.Category, dp.Symbol, dp.DisplayName, dp.Value,
		dp.Currency, nullableFloat(dp.ChangePct), nullableFloat(dp.Volume),
		dp.Timestamp.Unix(), dp.IngestedAt.Unix())
	if err != nil {
		return fmt.Errorf("sqlite: insert data point: %w", err)
	}
	return nil
}

func (s *Store) InsertNews(ctx context.Context, item model.NewsItem) error {
	const q = `
		INSERT OR IGNORE INTO news_items
			(title, source, url, summary, category, published_at, ingested_at, score, region, country)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var publishedAt interface{}
	if !item.PublishedAt.IsZero() {
		publishedAt = item.PublishedAt.Unix()
	}
	var url interface{}
	if item.URL != "" {
		url = item.URL
	}
	_, err := s.db.ExecContext(ctx, q,
		item.Title, item.Source, url, item.Summary, item.Category,
		publishedAt, item.IngestedAt.Unix(), item.Score, item.Region, item.Country)
	if err != nil {
		return fmt.Errorf("sqlite: insert news: %w", err)
	}
	return nil
}

// dataPointRow mirrors data_points' column set for sqlx scanning; time
// columns are unix seconds and converted back to time.Time after scan.
type dataPointRow struct {
	ID          int64           `db:"id"`
	SourceName  string          `db:"source_name"`
	SourceKind  string          `db:"source_kind"`
	Category    string          `db:"category"`
	Symbol      string          `db:"symbol"`
	DisplayName sql.NullString  `db:"display_name"`
	Value       float64         `db:"value"`
	Currency    sql.NullString  `db:"currency"`
	ChangePct   sql.NullFloat64 `db:"change_pct"`
	Volume      sql.NullFloat64 `db:"volume"`
	Timestamp   int64           `db:"timestamp"`
	IngestedAt  int64           `db:"ingested_at"`
}

func (r dataPointRow) toModel() model.DataPoint {
	return model.DataPoint{
		ID:          r.ID,
		SourceName:  r.SourceName,
		SourceKind:  model.SourceKind(r.SourceKind),
		Category:    model.Category(r.Category),
		Symbol:      r.Symbol,
		DisplayName: r.DisplayName.String,
		Value:       r.Value,
		Currency:    r.Currency.String,
		ChangePct:   floatOrNaN(r.ChangePct),
		Volume:      floatOrNaN(r.Volume),
		Timestamp:   time.Unix(r.Timestamp, 0).UTC(),
		IngestedAt:  time.Unix(r.IngestedAt, 0).UTC(),
	}
}

// LatestDataPoints returns, per (symbol, source_name) pair within category,
// the record with the greatest ingested_at, ordered by symbol ascending.
// ingested_at has one-second resolution, so ties go to the highest id.
func (s *Store) LatestDataPoints(ctx context.Context, category model.Category, limit int) ([]model.DataPoint, error) {
	const q = `
		SELECT d.id, d.source_name, d.source_kind, d.category, d.symbol, d.display_name,
		       d.value, d.currency, d.change_pct, d.volume, d.timestamp, d.ingested_at
		FROM data_points d
		INNER JOIN (
			SELECT symbol, source_name, MAX(ingested_at) AS max_ia
			FROM data_points
			WHERE category = ?
			GROUP BY symbol, source_name
		) g ON d.symbol = g.symbol AND d.source_name = g.source_name AND d.ingested_at = g.max_ia
		WHERE d.category = ?
		  AND d.id = (
			SELECT MAX(x.id) FROM data_points x
			WHERE x.category = d.category AND x.symbol = d.symbol
			  AND x.source_name = d.source_name AND x.ingested_at = d.ingested_at
		  )
		ORDER BY d.symbol ASC
		LIMIT ?`

	var rows []dataPointRow
	if err := s.db.SelectContext(ctx, &rows, q, category, category, limit); err != nil {
		return nil, fmt.Errorf("sqlite: latest data points: %w", err)
	}
	out := make([]model.DataPoint, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *Store) History(ctx context.Context, symbol string, limit int) ([]model.DataPoint, error) {
	const q = `
		SELECT id, source_name, source_kind, category, symbol, display_name,
		       value, currency, change_pct, volume, timestamp, ingested_at
		FROM data_points
		WHERE symbol = ?
		ORDER BY timestamp DESC
		LIMIT ?`

	var rows []dataPointRow
	if err := s.db.SelectContext(ctx, &rows, q, symbol, limit); err != nil {
		return nil, fmt.Errorf("sqlite: history: %w", err)
	}
	out := make([]model.DataPoint, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

type newsRow struct {
	ID          int64          `db:"id"`
	Title       string         `db:"title"`
	Source      string         `db:"source"`
	URL         sql.NullString `db:"url"`
	Summary     sql.NullString `db:"summary"`
	Category    string         `db:"category"`
	PublishedAt sql.NullInt64  `db:"published_at"`
	IngestedAt  int64          `db:"ingested_at"`
	Score       float64        `db:"score"`
	Region      sql.NullString `db:"region"`
	Country     sql.NullString `db:"country"`
}

func (r newsRow) toModel() model.NewsItem {
	published := time.Time{}
	if r.PublishedAt.Valid {
		published = time.Unix(r.PublishedAt.Int64, 0).UTC()
	}
	return model.NewsItem{
		ID:          r.ID,
		Title:       r.Title,
		Source:      r.Source,
		URL:         r.URL.String,
		Summary:     r.Summary.String,
		Category:    model.Category(r.Category),
		PublishedAt: published,
		IngestedAt:  time.Unix(r.IngestedAt, 0).UTC(),
		Score:       r.Score,
		Region:      r.Region.String,
		Country:     r.Country.String,
	}
}

// AllLatestNews returns the newest limit news items across all categories,
// with no category filter.
func (s *Store) AllLatestNews(ctx context.Context, limit int) ([]model.NewsItem, error) {
	const q = `
		SELECT id, title, source, url, summary, category, published_at, ingested_at, score, region, country
		FROM news_items
		ORDER BY published_at DESC
		LIMIT ?`

	var rows []newsRow
	if err := s.db.SelectContext(ctx, &rows, q, limit); err != nil {
		return nil, fmt.Errorf("sqlite: all latest news: %w", err)
	}
	out := make([]model.NewsItem, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// UpsertSourceStatus records the outcome of one fetch attempt: an empty
// error resets error_count to 0, a non-empty one increments it.
func (s *Store) UpsertSourceStatus(ctx context.Context, name string, kind model.SourceKind, errMsg string) error {
	const q = `
		INSERT INTO source_status (source_name, source_kind, last_attempt, last_error, error_count)
		VALUES (?, ?, ?, ?, CASE WHEN ? = '' THEN 0 ELSE 1 END)
		ON CONFLICT(source_name) DO UPDATE SET
			last_attempt = excluded.last_attempt,
			last_error = excluded.last_error,
			error_count = CASE WHEN excluded.last_error IS NULL OR excluded.last_error = ''
				THEN 0 ELSE source_status.error_count + 1 END`

	var lastError interface{}
	if errMsg != "" {
		lastError = errMsg
	}
	_, err := s.db.ExecContext(ctx, q, name, kind, time.Now().Unix(), lastError, errMsg)
	if err != nil {
		return fmt.Errorf("sqlite: upsert source status: %w", err)
	}
	return nil
}

func (s *Store) SourceStatuses(ctx context.Context) ([]model.SourceStatus, error) {
	const q = `SELECT source_name, source_kind, last_attempt, last_error, error_count FROM source_status ORDER BY source_name`

	rows, err := s.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: source statuses: %w", err)
	}
	defer rows.Close()

	var out []model.SourceStatus
	for rows.Next() {
		var (
			name       string
			kind       string
			lastAttempt sql.NullInt64
			lastError  sql.NullString
			errorCount int
		)
		if err := rows.Scan(&name, &kind, &lastAttempt, &lastError, &errorCount); err != nil {
			return nil, fmt.Errorf("sqlite: scan source status: %w", err)
		}
		st := model.SourceStatus{
			SourceName: name,
			SourceKind: model.SourceKind(kind),
			LastError:  lastError.String,
			ErrorCount: errorCount,
		}
		if lastAttempt.Valid {
			st.LastFetched = time.Unix(lastAttempt.Int64, 0).UTC()
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// PruneOlderThan deletes data points and news items whose ingested_at
// predates now - ageSeconds.
func (s *Store) PruneOlderThan(ctx context.Context, ageSeconds int64) error {
	cutoff := time.Now().Unix() - ageSeconds

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: prune: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM data_points WHERE ingested_at < ?`, cutoff); err != nil {
		return fmt.Errorf("sqlite: prune data_points: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM news_items WHERE ingested_at < ?`, cutoff); err != nil {
		return fmt.Errorf("sqlite: prune news_items: %w", err)
	}
	return tx.Commit()
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM data_points`)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}
