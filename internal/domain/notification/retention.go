package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/metrics"
)

const DefaultRetentionCron = "0 3 * * *"

type purger interface {
	PurgeRead(ctx context.Context, cutoff time.Time) (int, error)
}

// Sweeper deletes read notifications older than the retention period on a
// cron schedule.
type Sweeper struct {
	purger    purger
	retention time.Duration
	cron      string
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewSweeper(p purger, retention time.Duration, cronExpr string, m *metrics.Metrics, logger zerolog.Logger) (*Sweeper, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention period must be positive, got %s", retention)
	}
	if cronExpr == "" {
		cronExpr = DefaultRetentionCron
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid retention cron expression: %q", cronExpr)
	}
	return &Sweeper{
		purger:    p,
		retention: retention,
		cron:      cronExpr,
		metrics:   m,
		logger:    logger.With().Str("component", "retention").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// SweepOnce purges everything read and older than the retention period.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.purger.PurgeRead(ctx, cutoff)
	if err != nil {
		s.metrics.RetentionRun("error")
		return 0, err
	}
	s.metrics.RetentionRun("ok")
	s.logger.Info().Int("purged", n).Time("cutoff", cutoff).Msg("retention sweep finished")
	return n, nil
}

// NextRun returns the first scheduled tick strictly after t.
func (s *Sweeper) NextRun(t time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.cron, t, false)
}

// Start runs the sweeper in its own goroutine. The returned channel closes
// once Run has returned, so callers can wait for an in-flight sweep before
// closing storage.
func (s *Sweeper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return done
}

// Run sweeps on every cron tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info().Str("cron", s.cron).Dur("retention", s.retention).Msg("retention scheduler started")
	for {
		next, err := s.NextRun(s.now())
		if err != nil {
			s.logger.Error().Err(err).Msg("retention next tick failed")
			next = s.now().Add(30 * time.Second)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("retention scheduler stopping")
			return
		case <-timer.C:
		}

		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("retention sweep failed")
		}
	}
}
