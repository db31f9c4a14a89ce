// Package model holds the normalized record shapes the scheduler, the
// persistence layer and both API front-ends agree on.
package model

import (
	"math"
	"time"
)

// SourceKind identifies which ingestion path produced a DataPoint.
type SourceKind string

const (
	SourceRSS    SourceKind = "rss"
	SourceREST   SourceKind = "rest"
	SourceStream SourceKind = "stream"
)

// Category tags a DataPoint or NewsItem with the kind of instrument/content
// it represents.
type Category string

const (
	CategoryCrypto         Category = "crypto"
	CategoryStockIndex     Category = "stock_index"
	CategoryCommodity      Category = "commodity"
	CategoryForex          Category = "forex"
	CategoryNews           Category = "news"
	CategoryCustom         Category = "custom"
	CategoryCryptoExchange Category = "crypto_exchange"
	CategoryFinancialNews  Category = "financial_news"
	CategoryOfficialPub    Category = "official_pub"
)

// DataCategories lists the categories the snapshot builder queries for
// DataPoints, in the fixed order the builder iterates them.
var DataCategories = []Category{
	CategoryCrypto,
	CategoryStockIndex,
	CategoryCommodity,
	CategoryForex,
	CategoryNews,
	CategoryCustom,
	CategoryCryptoExchange,
}

// DataPoint is one quoted-instrument observation.
type DataPoint struct {
	ID         int64      `json:"id" db:"id"`
	SourceName string     `json:"source_name" db:"source_name"`
	SourceKind SourceKind `json:"source_kind" db:"source_kind"`
	Category   Category   `json:"category" db:"category"`
	Symbol     string     `json:"symbol" db:"symbol"`
	DisplayName string    `json:"display_name,omitempty" db:"display_name"`
	Value      float64    `json:"value" db:"value"`
	Currency   string     `json:"currency,omitempty" db:"currency"`
	ChangePct  float64    `json:"change_pct" db:"change_pct"`
	Volume     float64    `json:"volume" db:"volume"`
	Timestamp  time.Time  `json:"timestamp" db:"timestamp"`
	IngestedAt time.Time  `json:"ingested_at" db:"ingested_at"`
}

// Valid reports whether a DataPoint may be persisted: a non-empty identity
// and a finite value.
func (d DataPoint) Valid() bool {
	if d.Symbol == "" && d.DisplayName == "" {
		return false
	}
	return !math.IsNaN(d.Value) && !math.IsInf(d.Value, 0)
}

// NewsItem is one article/event record, deduplicated by URL at the store.
type NewsItem struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Source      string    `json:"source" db:"source"`
	URL         string    `json:"url,omitempty" db:"url"`
	Summary     string    `json:"summary,omitempty" db:"summary"`
	Category    Category  `json:"category" db:"category"`
	PublishedAt time.Time `json:"published_at" db:"published_at"`
	IngestedAt  time.Time `json:"ingested_at" db:"ingested_at"`
	Score       float64   `json:"score" db:"score"`
	Region      string    `json:"region,omitempty" db:"region"`
	Country     string    `json:"country,omitempty" db:"country"`
}

func (n NewsItem) Valid() bool {
	return n.Title != "" && n.Score >= 0
}

// SourceHealth is the in-memory, per-source scheduling state: due/backoff
// bookkeeping for one ingestion source. It is owned by exactly one loop at a
// time and is never shared across goroutines without that ownership
// discipline.
type SourceHealth struct {
	ConsecutiveFailures int
	Backoff             time.Duration
	LastAttempt         time.Time
	LastSuccess         time.Time
}

// Due reports whether a source should be attempted this tick.
func (h *SourceHealth) Due(interval time.Duration, force bool, now time.Time) bool {
	if force {
		return true
	}
	if h.LastAttempt.IsZero() {
		return true
	}
	return now.Sub(h.LastAttempt) >= interval
}

// Skipped reports whether a source's backoff window is still open.
func (h *SourceHealth) Skipped(force bool, now time.Time) bool {
	if force {
		return false
	}
	if h.ConsecutiveFailures == 0 {
		return false
	}
	return now.Sub(h.LastAttempt) < h.Backoff
}

const maxBackoff = 300 * time.Second

// RecordSuccess resets the failure streak and backoff window.
func (h *SourceHealth) RecordSuccess(now time.Time) {
	h.ConsecutiveFailures = 0
	h.Backoff = 0
	h.LastSuccess = now
	h.LastAttempt = now
}

// RecordFailure advances the failure streak and doubles the backoff window,
// following a 2,4,8,...,300 progression capped at 300s.
func (h *SourceHealth) RecordFailure(now time.Time) {
	h.ConsecutiveFailures++
	h.LastAttempt = now
	backoff := time.Duration(1) << uint(h.ConsecutiveFailures) * time.Second
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	h.Backoff = backoff
}

// SourceStatus is the persisted counterpart of SourceHealth, keyed by
// source_name, consumed by the /sources API endpoint.
type SourceStatus struct {
	SourceName  string     `json:"source_name" db:"source_name"`
	SourceKind  SourceKind `json:"source_kind" db:"source_kind"`
	LastFetched time.Time  `json:"last_fetched" db:"last_fetched"`
	LastError   string     `json:"last_error,omitempty" db:"last_error"`
	ErrorCount  int        `json:"error_count" db:"error_count"`
}

// HealthTag classifies a SourceStatus for API consumers.
type HealthTag string

const (
	HealthHealthy  HealthTag = "healthy"
	HealthDegraded HealthTag = "degraded"
	HealthFailing  HealthTag = "failing"
)

func (s SourceStatus) Health() HealthTag {
	switch {
	case s.ErrorCount == 0:
		return HealthHealthy
	case s.ErrorCount < 3:
		return HealthDegraded
	default:
		return HealthFailing
	}
}

// Snapshot is the bounded, read-mostly view served by both API front-ends.
const (
	MaxSnapshotEntries = 2048
	MaxSnapshotNews    = 2048
)

type Snapshot struct {
	Entries []DataPoint `json:"entries"`
	News    []NewsItem  `json:"news"`
	BuiltAt time.Time   `json:"built_at"`
}
