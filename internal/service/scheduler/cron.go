// internal/service/scheduler/cron.go
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronManager drives the periodic mode of the reassignment sweep. The
// on-demand admin endpoint calls the same Sweep entry points, so either
// trigger model yields identical behavior.
type CronManager struct {
	cron     *cron.Cron
	sweeper  *Service
	managers managerLister
	spec     string
	logger   *zap.Logger
}

// NewCronManager wires a sweep-all job on the given cron spec
// (e.g. "0 6 * * *" for daily at 6 AM).
func NewCronManager(sweeper *Service, managers managerLister, spec string, logger *zap.Logger) *CronManager {
	return &CronManager{
		cron:     cron.New(),
		sweeper:  sweeper,
		managers: managers,
		spec:     spec,
		logger:   logger,
	}
}

// SetupJobs registers the scheduled sweep.
func (cm *CronManager) SetupJobs() error {
	_, err := cm.cron.AddFunc(cm.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		result, err := cm.sweeper.SweepAll(ctx, cm.managers)
		if err != nil {
			cm.logger.Error("scheduled reassignment sweep failed", zap.Error(err))
			return
		}

		cm.logger.Info("scheduled reassignment sweep finished",
			zap.Int("eligible", result.Eligible),
			zap.Int("reassigned", result.Reassigned),
			zap.Int("skipped", result.Skipped),
		)
	})
	if err != nil {
		return err
	}

	cm.logger.Info("reassignment sweep scheduled", zap.String("spec", cm.spec))
	return nil
}

// Start launches the cron loop.
func (cm *CronManager) Start() {
	cm.cron.Start()
}

// Stop halts the cron loop, waiting for a running job to finish.
func (cm *CronManager) Stop() {
	ctx := cm.cron.Stop()
	<-ctx.Done()
}
