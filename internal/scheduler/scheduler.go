package scheduler

import (
	"context"
	"fmt"

	"github.com/LouYuanbo1/catalogsync/internal/logger"
	"github.com/LouYuanbo1/catalogsync/internal/service/crawler"
	"github.com/robfig/cron/v3"
)

// Starter is satisfied by crawler.Service.
type Starter interface {
	Start() crawler.StartResult
}

// Scheduler triggers crawl runs on a cron schedule. A tick that lands while a
// run is active is dropped by the service guard.
type Scheduler struct {
	cron    *cron.Cron
	starter Starter
	log     logger.Interface
}

// New parses a standard 5-field cron expression (minute hour day month weekday).
func New(schedule string, starter Starter, log logger.Interface) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	s := &Scheduler{
		cron:    cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		starter: starter,
		log:     log.WithComponent("scheduler"),
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	if res := s.starter.Start(); !res.Accepted {
		s.log.Warn("scheduled crawl skipped, a run is already active")
		return
	}
	s.log.Info("scheduled crawl started")
}

// Run starts the cron loop and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("starting scheduler")
	s.cron.Start()
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info("scheduler stopped")
	return nil
}
