package jobs

import (
	"context"
	"fmt"

	"github.com/trobrock/trading-algo/pkg/logger"
)

// Syncer fills resting orders whose limit was crossed
type Syncer interface {
	Sync(ctx context.Context) (int, error)
}

// BrokerSyncJob re-prices resting limit orders of the paper broker
type BrokerSyncJob struct {
	syncer Syncer
	logger *logger.Logger
}

// NewBrokerSyncJob creates a new broker sync job
func NewBrokerSyncJob(syncer Syncer, log *logger.Logger) *BrokerSyncJob {
	return &BrokerSyncJob{
		syncer: syncer,
		logger: log,
	}
}

// Name returns the job name
func (j *BrokerSyncJob) Name() string {
	return "broker_sync"
}

// Schedule returns the cron schedule (every minute of trading hours)
func (j *BrokerSyncJob) Schedule() string {
	return "30 * 9-15 * * MON-FRI"
}

// Run executes the sync
func (j *BrokerSyncJob) Run(ctx context.Context) error {
	fills, err := j.syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("broker sync: %w", err)
	}

	if fills > 0 {
		j.logger.WithField("fills", fills).Info("Resting orders filled")
	}

	return nil
}
