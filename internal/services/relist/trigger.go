package relist

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/noakmilo/qventory-relist/internal/config"
	"github.com/noakmilo/qventory-relist/internal/utils"
)

// PeriodicTrigger invokes the scheduler on a fixed interval. It is the only
// thing that calls RunDueRules unattended; manual triggers go through the
// service directly.
type PeriodicTrigger struct {
	cfg       *config.RelistConfig
	log       *logrus.Logger
	scheduler *Scheduler
	cron      *cron.Cron
	baseCtx   context.Context
}

func NewPeriodicTrigger(cfg *config.RelistConfig, log *logrus.Logger, scheduler *Scheduler, baseCtx context.Context) *PeriodicTrigger {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &PeriodicTrigger{
		cfg:       cfg,
		log:       log,
		scheduler: scheduler,
		cron:      cron.New(),
		baseCtx:   baseCtx,
	}
}

func (t *PeriodicTrigger) Start() error {
	spec := fmt.Sprintf("@every %s", t.cfg.TickInterval)
	_, err := t.cron.AddFunc(spec, func() {
		if stop, _ := utils.ShouldStopCtx(t.baseCtx, t.log); stop {
			return
		}
		results, err := t.scheduler.RunDueRules(t.baseCtx)
		if err != nil {
			t.log.WithError(err).Error("Scheduled relist tick failed")
			return
		}
		if len(results) > 0 {
			t.log.WithField("executed", len(results)).Info("Scheduled relist tick completed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register relist tick: %w", err)
	}

	t.cron.Start()
	t.log.WithField("interval", t.cfg.TickInterval.String()).Info("Relist periodic trigger started")
	return nil
}

func (t *PeriodicTrigger) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	t.log.Info("Relist periodic trigger stopped")
}
