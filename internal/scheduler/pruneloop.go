package scheduler

import "context"

// runPruneLoop sleeps interruptibly, then on wake prunes both tables past
// the retention window and rebuilds the snapshot so pruned rows disappear
// from the live view promptly.
func (s *Scheduler) runPruneLoop(ctx context.Context) {
	ageSeconds := s.cfg.RetentionWindowSeconds
	if ageSeconds <= 0 {
		ageSeconds = pruneMaxAge
	}

	for {
		if !sleepInterruptible(ctx, pruneInterval) {
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.st.PruneOlderThan(ctx, ageSeconds); err != nil {
			s.log.Error().Err(err).Msg("prune older than retention window failed")
			continue
		}

		if err := s.snap.Rebuild(ctx); err != nil {
			s.log.Error().Err(err).Msg("snapshot rebuild after prune failed")
		}
	}
}
