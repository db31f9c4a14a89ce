// Package store defines the persistence contract the scheduler, snapshot
// builder and both API front-ends depend on. The concrete relational store
// and its migrations live in store/sqlite; this package only states the
// contract.
package store

import (
	"context"

	"github.com/sawpanic/marketfeed/internal/model"
)

// Store is the persistence interface the core consumes. Every method must
// be safe for concurrent use.
type Store interface {
	InsertDataPoint(ctx context.Context, dp model.DataPoint) error
	InsertNews(ctx context.Context, item model.NewsItem) error
	LatestDataPoints(ctx context.Context, category model.Category, limit int) ([]model.DataPoint, error)
	AllLatestNews(ctx context.Context, limit int) ([]model.NewsItem, error)
	History(ctx context.Context, symbol string, limit int) ([]model.DataPoint, error)
	UpsertSourceStatus(ctx context.Context, name string, kind model.SourceKind, errMsg string) error
	SourceStatuses(ctx context.Context) ([]model.SourceStatus, error)
	PruneOlderThan(ctx context.Context, ageSeconds int64) error
	Count(ctx context.Context) (int64, error)
	Close() error
}
