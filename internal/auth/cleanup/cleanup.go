package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/AlibekovAA/panel-auth/internal/common/logger"
)

type ExpiredRenewalDeleter interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type ExpiredRevocationPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type Result struct {
	RenewalTokensDeleted int64
	RevocationsPurged    int
}

// Scheduler periodically drops renewal records that can no longer be used
// and revocation entries whose tokens have expired on their own.
type Scheduler struct {
	renewals ExpiredRenewalDeleter
	revoked  ExpiredRevocationPurger
	interval time.Duration
	log      *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(renewals ExpiredRenewalDeleter, revoked ExpiredRevocationPurger, interval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		renewals: renewals,
		revoked:  revoked,
		interval: interval,
		log:      log,
	}
}

// RunOnce performs a single sweep. A failure of one step does not stop the
// other; the first error is returned.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	var (
		result   Result
		firstErr error
	)

	if s.renewals != nil {
		deleted, err := s.renewals.CleanupExpired(ctx)
		if err != nil {
			s.log.Errorf("renewal token cleanup failed: %v", err)
			firstErr = err
		} else {
			result.RenewalTokensDeleted = deleted
			if deleted > 0 {
				s.log.Infof("renewal token cleanup: deleted %d records", deleted)
			}
		}
	}

	if s.revoked != nil {
		purged, err := s.revoked.PurgeExpired(ctx)
		if err != nil {
			s.log.Errorf("revocation cache cleanup failed: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			result.RevocationsPurged = purged
			if purged > 0 {
				s.log.Infof("revocation cache cleanup: purged %d entries", purged)
			}
		}
	}

	return result, firstErr
}

// Start launches the sweep loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
	s.log.Infof("cleanup scheduler started: interval=%v", s.interval)
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("cleanup scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}
