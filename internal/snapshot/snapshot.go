// Package snapshot builds the throttled, lock-protected in-memory view
// served by both API front-ends.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sawpanic/marketfeed/internal/model"
	"github.com/sawpanic/marketfeed/internal/store"
)

const throttleWindow = 5 * time.Second

// Builder owns the live snapshot and the rebuild throttle. Step 1-5 of
// Rebuild run without holding the snapshot lock; the writer-held region is
// the final pointer swap only.
type Builder struct {
	st store.Store

	snapMu sync.RWMutex
	live   model.Snapshot

	throttleMu  sync.Mutex
	lastRebuild time.Time
}

func NewBuilder(st store.Store) *Builder {
	return &Builder{st: st}
}

// Current returns the live snapshot. Callers must not mutate the result.
func (b *Builder) Current() model.Snapshot {
	b.snapMu.RLock()
	defer b.snapMu.RUnlock()
	return b.live
}

// Rebuild queries persistence into temporary buffers, ranks news, and swaps
// them into the live snapshot under the writer lock. Calls arriving within
// throttleWindow of the last rebuild are coalesced into a no-op.
func (b *Builder) Rebuild(ctx context.Context) error {
	if !b.shouldRebuild() {
		return nil
	}

	entries := make([]model.DataPoint, 0, model.MaxSnapshotEntries)
	for _, cat := range model.DataCategories {
		remaining := model.MaxSnapshotEntries - len(entries)
		if remaining <= 0 {
			break
		}
		points, err := b.st.LatestDataPoints(ctx, cat, remaining)
		if err != nil {
			return fmt.Errorf("snapshot: latest data points for %s: %w", cat, err)
		}
		entries = append(entries, points...)
	}

	news, err := b.st.AllLatestNews(ctx, model.MaxSnapshotNews)
	if err != nil {
		return fmt.Errorf("snapshot: all latest news: %w", err)
	}

	now := time.Now()
	type ranked struct {
		item       model.NewsItem
		scoreFinal float64
	}
	rankedNews := make([]ranked, len(news))
	for i, n := range news {
		rankedNews[i] = ranked{item: n, scoreFinal: n.Score * decay(now, n.PublishedAt)}
	}
	sort.SliceStable(rankedNews, func(i, j int) bool {
		a, c := rankedNews[i], rankedNews[j]
		if a.scoreFinal != c.scoreFinal {
			return a.scoreFinal > c.scoreFinal
		}
		if !a.item.PublishedAt.Equal(c.item.PublishedAt) {
			return a.item.PublishedAt.After(c.item.PublishedAt)
		}
		return a.item.ID > c.item.ID
	})
	sortedNews := make([]model.NewsItem, len(rankedNews))
	for i, r := range rankedNews {
		sortedNews[i] = r.item
		sortedNews[i].Score = r.scoreFinal
	}

	b.snapMu.Lock()
	b.live = model.Snapshot{Entries: entries, News: sortedNews, BuiltAt: now}
	b.snapMu.Unlock()

	return nil
}

// shouldRebuild applies the 5-second coalescing throttle. Acquired and
// released before any other lock, to keep lock ordering deadlock-free.
func (b *Builder) shouldRebuild() bool {
	b.throttleMu.Lock()
	defer b.throttleMu.Unlock()

	now := time.Now()
	if !b.lastRebuild.IsZero() && now.Sub(b.lastRebuild) < throttleWindow {
		return false
	}
	b.lastRebuild = now
	return true
}

// decay is a step-function age decay. t == zero value means "unknown
// publish time" and decays the same as the oldest bucket.
func decay(now, t time.Time) float64 {
	if t.IsZero() {
		return 0.10
	}
	age := now.Sub(t)
	switch {
	case age < time.Hour:
		return 1.00
	case age < 3*time.Hour:
		return 0.85
	case age < 6*time.Hour:
		return 0.65
	case age < 12*time.Hour:
		return 0.45
	case age < 24*time.Hour:
		return 0.25
	default:
		return 0.10
	}
}
