package scheduler

import (
	"context"
	"time"

	"github.com/sawpanic/marketfeed/internal/config"
	"github.com/sawpanic/marketfeed/internal/model"
	"github.com/sawpanic/marketfeed/internal/rss"
)

// runRSSLoop is the single dedicated feed-polling goroutine: one feed at a
// time, same due/backoff discipline as the REST pool but serial rather than
// pooled, since feed parsing is CPU-light and feed counts are small.
func (s *Scheduler) runRSSLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		force := s.consumeForceRefresh()
		now := time.Now()
		fetchedAny := false

		for _, src := range s.cfg.RSS {
			select {
			case <-ctx.Done():
				return
			default:
			}

			h := s.rssHealth.Get(src.Name)
			if h.Skipped(force, now) || !h.Due(src.RefreshIntervalDuration(), force, now) {
				continue
			}

			fetchedAny = true
			s.processRSSSource(ctx, src)
		}

		if fetchedAny {
			if err := s.snap.Rebuild(ctx); err != nil {
				s.log.Error().Err(err).Msg("snapshot rebuild after RSS fetch failed")
			}
		}

		if !sleepInterruptible(ctx, rssTick) {
			return
		}
	}
}

// processRSSSource fetches and persists one feed's items, recording the
// outcome on health and source-status. A clean fetch that yields zero items
// is a no-op: it advances LastAttempt only, never a full RecordSuccess.
func (s *Scheduler) processRSSSource(ctx context.Context, src config.RSSSource) {
	h := s.rssHealth.Get(src.Name)
	now := time.Now()

	items, err := s.rssFetcher.Fetch(ctx, rss.Source{
		Name:            src.Name,
		URL:             src.URL,
		Category:        src.Category,
		RefreshInterval: src.RefreshIntervalDuration(),
		Tier:            src.Tier,
		Region:          src.Region,
		Country:         src.Country,
	})
	if err != nil {
		h.RecordFailure(now)
		if uerr := s.st.UpsertSourceStatus(ctx, src.Name, model.SourceRSS, err.Error()); uerr != nil {
			s.log.Error().Err(uerr).Str("source", src.Name).Msg("upsert source status failed")
		}
		return
	}

	inserted := 0
	for _, item := range items {
		if err := s.st.InsertNews(ctx, item); err != nil {
			s.log.Error().Err(err).Str("source", src.Name).Msg("insert news failed")
			continue
		}
		inserted++
	}

	if inserted > 0 {
		h.RecordSuccess(now)
	} else {
		// parsed cleanly but produced nothing: advance last_attempt only,
		// leave ConsecutiveFailures/Backoff untouched
		h.LastAttempt = now
	}
	if err := s.st.UpsertSourceStatus(ctx, src.Name, model.SourceRSS, ""); err != nil {
		s.log.Error().Err(err).Str("source", src.Name).Msg("upsert source status failed")
	}
}
