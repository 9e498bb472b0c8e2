package processing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper recovers orders stranded in PROCESSING. A crash between the claim
// and the terminal commit leaves the row in PROCESSING while the redelivered
// message hits the duplicate guard and drops, so nobody would ever finish
// the order. Rows older than the grace period are treated as crashed and
// reset to PENDING; the next delivery claims them again.
//
// Run SweepOnce before subscribing, then Start for the periodic re-sweep.
type Sweeper struct {
	repo  ProcessingRepo
	grace time.Duration
	clock Clock

	log zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewSweeper(repo ProcessingRepo, grace time.Duration, clock Clock, log zerolog.Logger) *Sweeper {
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &Sweeper{
		repo:  repo,
		grace: grace,
		clock: clock,
		log:   log.With().Str("component", "stuck_sweeper").Logger(),
	}
}

// SweepOnce resets every PROCESSING row older than the grace period.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	cutoff := s.clock.Now().UTC().Add(-s.grace)

	reset, err := s.repo.ResetStuck(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, orderID := range reset {
		s.log.Warn().
			Str("order_id", orderID.String()).
			Time("cutoff", cutoff).
			Msg("stuck PROCESSING row reset to PENDING")
	}
	if len(reset) > 0 {
		s.log.Info().Int("count", len(reset)).Msg("stuck processing sweep finished")
	}
	return nil
}

// Start launches the periodic re-sweep at the grace interval. Calling Start
// on a running sweeper logs a warning and returns.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Warn().Msg("sweeper already running")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(runCtx)
	s.log.Info().Dur("grace", s.grace).Msg("stuck processing sweeper started")
}

// Stop cancels the loop and waits for the in-flight sweep to settle.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.log.Info().Msg("stuck processing sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.grace)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := s.SweepOnce(ctx); err != nil {
			if ctx.Err() == nil {
				s.log.Error().Err(err).Msg("stuck processing sweep failed")
			}
		}
	}
}
