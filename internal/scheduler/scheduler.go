// Package scheduler is the daemon's hard core: the REST worker pool and
// dispatcher, the RSS loop, the streaming supervisors, the prune loop, and
// the lifecycle that starts and cancels all of them. The dispatcher favors
// a buffered channel plus a WaitGroup over a condition-variable/queue design
// now that the language gives goroutines and channels directly.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/marketfeed/internal/circuit"
	"github.com/sawpanic/marketfeed/internal/config"
	"github.com/sawpanic/marketfeed/internal/fetch"
	"github.com/sawpanic/marketfeed/internal/health"
	"github.com/sawpanic/marketfeed/internal/model"
	"github.com/sawpanic/marketfeed/internal/netrate"
	"github.com/sawpanic/marketfeed/internal/rss"
	"github.com/sawpanic/marketfeed/internal/snapshot"
	"github.com/sawpanic/marketfeed/internal/store"
	"github.com/sawpanic/marketfeed/internal/stream"
)

const (
	dispatcherTick = 5 * time.Second
	dispatcherPoll = 3 * time.Second
	rssTick        = 5 * time.Second
	pruneInterval  = 120 * time.Second
	pruneMaxAge    = 1800 // seconds
	maxWorkers     = 8
)

// Scheduler owns every ingestion loop and the resources they share: the
// fetch client, the health registries, and the snapshot builder.
type Scheduler struct {
	cfg config.Config
	st  store.Store
	log zerolog.Logger

	fetchClient *fetch.Client
	snap        *snapshot.Builder
	rssFetcher  *rss.Fetcher

	restHealth *health.Registry
	rssHealth  *health.Registry

	forceRefresh chan struct{}
}

func New(cfg config.Config, st store.Store, log zerolog.Logger) *Scheduler {
	breakers := circuit.NewRegistry(circuit.NewSourceBreaker())
	limiters := netrate.NewManager(5.0, 10)

	restNames := make([]string, len(cfg.REST))
	for i, s := range cfg.REST {
		restNames[i] = s.Name
	}
	rssNames := make([]string, len(cfg.RSS))
	for i, s := range cfg.RSS {
		rssNames[i] = s.Name
	}

	return &Scheduler{
		cfg:          cfg,
		st:           st,
		log:          log,
		fetchClient:  fetch.New(breakers, limiters),
		snap:         snapshot.NewBuilder(st),
		rssFetcher:   rss.NewFetcher(),
		restHealth:   health.NewRegistry(restNames),
		rssHealth:    health.NewRegistry(rssNames),
		forceRefresh: make(chan struct{}, 1),
	}
}

// Snapshot returns the live snapshot for API consumers.
func (s *Scheduler) Snapshot() model.Snapshot { return s.snap.Current() }

// Store exposes the persistence interface for API consumers that need
// point queries (history, source statuses) beyond the snapshot.
func (s *Scheduler) Store() store.Store { return s.st }

// RequestRefresh sets the one-shot force_refresh flag; non-blocking, and a
// second call before the flag is consumed is a no-op (channel of capacity
// 1).
func (s *Scheduler) RequestRefresh() {
	select {
	case s.forceRefresh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) consumeForceRefresh() bool {
	select {
	case <-s.forceRefresh:
		return true
	default:
		return false
	}
}

// Run starts every loop and blocks until ctx is cancelled, then waits for
// all loops to observe the cancellation and return.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() { defer wg.Done(); s.runRESTPool(ctx) }()

	wg.Add(1)
	go func() { defer wg.Done(); s.runRSSLoop(ctx) }()

	wg.Add(1)
	go func() { defer wg.Done(); s.runPruneLoop(ctx) }()

	for _, src := range s.cfg.Stream {
		streamSrc := stream.Source{
			Name:              src.Name,
			URL:               src.URL,
			Category:          src.Category,
			SubscribeMessage:  src.SubscribeMessage,
			ReconnectInterval: src.ReconnectIntervalDuration(),
		}
		sup := stream.NewSupervisor(streamSrc, s.st.InsertDataPoint, s.onStreamData(ctx), s.log)
		wg.Add(1)
		go func() { defer wg.Done(); sup.Run(ctx) }()
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

// onStreamData is the streaming supervisor's on-data callback: a throttled
// snapshot rebuild. The rebuild it triggers is a latency optimization, not
// load-bearing — Builder.Rebuild's own throttle makes repeated calls cheap.
func (s *Scheduler) onStreamData(ctx context.Context) func() {
	return func() {
		if err := s.snap.Rebuild(ctx); err != nil {
			s.log.Error().Err(err).Msg("snapshot rebuild after stream insert failed")
		}
	}
}

// sleepInterruptible waits for d, waking once per second to allow an early
// return on cancellation. Used by the RSS, prune, and dispatcher loops.
func sleepInterruptible(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-tick.C:
			if time.Now().After(deadline) {
				return true
			}
		}
	}
}
