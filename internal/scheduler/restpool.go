package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sawpanic/marketfeed/internal/config"
	"github.com/sawpanic/marketfeed/internal/fetch"
	"github.com/sawpanic/marketfeed/internal/model"
	"github.com/sawpanic/marketfeed/internal/restmap"
)

// restJob is one claimed batch entry: the source index plus the WaitGroup
// the dispatcher is waiting on for batch completion.
type restJob struct {
	idx int
	wg  *sync.WaitGroup
}

// runRESTPool is the REST dispatcher loop. The shared queue is a buffered
// channel (capacity = REST source count, so the dispatcher never blocks
// handing off a batch); batch completion is a per-batch *sync.WaitGroup
// instead of a condition variable, watched through a closed-on-done channel
// so the wait can still be polled on a 3-second grain for responsive
// shutdown.
func (s *Scheduler) runRESTPool(ctx context.Context) {
	n := len(s.cfg.REST)
	if n == 0 {
		return
	}

	workers := n
	if workers > maxWorkers {
		workers = maxWorkers
	}

	jobs := make(chan restJob, n)
	var workerWG sync.WaitGroup
	for i := 0; i < workers; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			s.restWorker(ctx, jobs)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			workerWG.Wait()
			return
		default:
		}

		force := s.consumeForceRefresh()
		now := time.Now()

		var batch []int
		for i, src := range s.cfg.REST {
			h := s.restHealth.Get(src.Name)
			if h.Skipped(force, now) {
				continue
			}
			if !h.Due(src.RefreshIntervalDuration(), force, now) {
				continue
			}
			batch = append(batch, i)
		}

		if len(batch) > 0 {
			var batchWG sync.WaitGroup
			batchWG.Add(len(batch))
			for _, idx := range batch {
				jobs <- restJob{idx: idx, wg: &batchWG}
			}

			done := make(chan struct{})
			go func() { batchWG.Wait(); close(done) }()

			s.waitBatch(ctx, done)
		}

		if err := s.snap.Rebuild(ctx); err != nil {
			s.log.Error().Err(err).Msg("snapshot rebuild after REST batch failed")
		}

		if !sleepInterruptible(ctx, dispatcherTick) {
			close(jobs)
			workerWG.Wait()
			return
		}
	}
}

// waitBatch blocks until done closes or ctx is cancelled, polling every
// dispatcherPoll so stop remains responsive even mid-batch.
func (s *Scheduler) waitBatch(ctx context.Context, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-time.After(dispatcherPoll):
			// periodic wake only; loop re-selects on done/ctx
		}
	}
}

// restWorker claims jobs until the channel is closed, dispatching each to
// the REST field-mapping engine (or calendar mode for financial_news
// sources) and recording the outcome on health/source-status/persistence.
func (s *Scheduler) restWorker(ctx context.Context, jobs <-chan restJob) {
	for job := range jobs {
		src := s.cfg.REST[job.idx]
		s.processRESTSource(ctx, src)
		job.wg.Done()
	}
}

func (s *Scheduler) processRESTSource(ctx context.Context, src config.RESTSource) {
	h := s.restHealth.Get(src.Name)
	now := time.Now()

	url := src.BaseURL + src.Endpoint
	if len(src.Params) > 0 {
		url += "?" + encodeParams(src.Params)
	}

	body, err := s.fetchClient.Do(ctx, fetch.Request{
		Source:       src.Name,
		Method:       src.Method,
		URL:          url,
		Body:         src.PostBody,
		ContentType:  contentTypeFor(src),
		APIKeyHeader: src.APIKeyHeader,
		APIKey:       src.APIKey,
	})
	if err != nil {
		h.RecordFailure(now)
		if uerr := s.st.UpsertSourceStatus(ctx, src.Name, model.SourceREST, err.Error()); uerr != nil {
			s.log.Error().Err(uerr).Str("source", src.Name).Msg("upsert source status failed")
		}
		return
	}

	mapping := restmap.Config{
		Name:           src.Name,
		Category:       src.Category,
		SourceName:     src.Name,
		Currency:       src.Currency,
		DataPath:       src.DataPath,
		FieldSymbol:    src.FieldSymbol,
		FieldPrice:     src.FieldPrice,
		FieldChange:    src.FieldChange,
		FieldVolume:    src.FieldVolume,
		FieldName:      src.FieldName,
		FieldPrevClose: src.FieldPrevClose,
		SymbolFilter:   src.Symbols,
	}

	inserted := 0
	if src.Category == model.CategoryFinancialNews {
		items, perr := mapping.MapNews(body, now, tierScoreFor(src.Tier))
		if perr != nil {
			// parse error: advance last_attempt but do not count as a failure
			h.LastAttempt = now
			return
		}
		for _, item := range items {
			if err := s.st.InsertNews(ctx, item); err != nil {
				s.log.Error().Err(err).Str("source", src.Name).Msg("insert news failed")
				continue
			}
			inserted++
		}
	} else {
		points, perr := mapping.MapDataPoints(body, now)
		if perr != nil {
			h.LastAttempt = now
			return
		}
		for _, dp := range points {
			if err := s.st.InsertDataPoint(ctx, dp); err != nil {
				s.log.Error().Err(err).Str("source", src.Name).Msg("insert data point failed")
				continue
			}
			inserted++
		}
	}

	if inserted > 0 {
		h.RecordSuccess(now)
	} else {
		// parsed cleanly but produced nothing (e.g. an empty upstream payload):
		// advance last_attempt only, leave ConsecutiveFailures/Backoff untouched
		h.LastAttempt = now
	}
	s.log.Debug().Str("source", src.Name).Int("inserted", inserted).Msg("rest source fetched")
	if err := s.st.UpsertSourceStatus(ctx, src.Name, model.SourceREST, ""); err != nil {
		s.log.Error().Err(err).Str("source", src.Name).Msg("upsert source status failed")
	}
}

func tierScoreFor(tier int) float64 {
	switch tier {
	case 1:
		return 100
	case 2:
		return 60
	default:
		return 30
	}
}

func contentTypeFor(src config.RESTSource) string {
	if src.PostBody == "" {
		return ""
	}
	return "application/json"
}

func encodeParams(params map[string]string) string {
	s := ""
	first := true
	for k, v := range params {
		if !first {
			s += "&"
		}
		first = false
		s += k + "=" + v
	}
	return s
}
