// Package scheduler runs periodic maintenance jobs for the HTTP service.
package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper removes expired entries and reports how many were dropped.
type Sweeper interface {
	Sweep() int
}

// Scheduler wraps robfig/cron and drives cache sweeps.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	spec    string // cron spec, e.g. "@every 10m"
	logger  *zap.Logger
}

func New(sweeper Sweeper, spec string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		spec:    spec,
		logger:  logger,
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.sweep); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) sweep() {
	removed := s.sweeper.Sweep()
	s.logger.Debug("scheduled cache sweep", zap.Int("removed", removed))
}
