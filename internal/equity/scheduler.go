package equity

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const snapshotTimeout = 30 * time.Second

// Scheduler records equity snapshots on a cron schedule.
// Schedule examples:
//   - "@every 30s"    - Every 30 seconds
//   - "*/5 * * * *"   - Every 5 minutes
//   - "@hourly"       - Every hour
type Scheduler struct {
	cron     *cron.Cron
	recorder *Recorder
	logger   *zap.Logger
}

// NewScheduler registers the recorder under schedule.
func NewScheduler(recorder *Recorder, schedule string, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		recorder: recorder,
		logger:   logger.Named("equity_scheduler"),
	}

	_, err := s.cron.AddFunc(schedule, s.record)
	if err != nil {
		return nil, fmt.Errorf("invalid equity schedule %q: %w", schedule, err)
	}
	s.logger.Info("Equity recorder registered", zap.String("schedule", schedule))
	return s, nil
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Equity scheduler started")
}

// Stop waits for a running snapshot to finish and records a final one.
func (s *Scheduler) Stop(ctx context.Context) error {
	<-s.cron.Stop().Done()
	s.logger.Info("Equity scheduler stopped")

	if _, err := s.recorder.Snapshot(ctx); err != nil {
		return fmt.Errorf("failed to record final equity snapshot: %w", err)
	}
	return nil
}

func (s *Scheduler) record() {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	if _, err := s.recorder.Snapshot(ctx); err != nil {
		s.logger.Error("Equity snapshot failed", zap.Error(err))
	}
}
