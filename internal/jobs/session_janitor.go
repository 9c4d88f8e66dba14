package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SessionSweeper is the orchestrator side of the janitor.
type SessionSweeper interface {
	EvictExpired(ctx context.Context, maxAge time.Duration) (int, error)
	ReconcileAnalysis(ctx context.Context) (int, error)
}

type JanitorConfig struct {
	Schedule string // cron spec, ex: "@every 10m"
	MaxAge   time.Duration
	Timeout  time.Duration
}

// SessionJanitor evicts stale sessions and re-enqueues completed sessions
// whose analysis never got queued.
type SessionJanitor struct {
	sessions SessionSweeper
	config   JanitorConfig
	log      *logrus.Logger
	cron     *cron.Cron
}

func NewSessionJanitor(sessions SessionSweeper, cfg JanitorConfig, log *logrus.Logger) *SessionJanitor {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 10m"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if log == nil {
		log = logrus.New()
	}
	return &SessionJanitor{sessions: sessions, config: cfg, log: log, cron: cron.New()}
}

func (j *SessionJanitor) Start() error {
	_, err := j.cron.AddFunc(j.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.config.Timeout)
		defer cancel()
		_ = j.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule session janitor: %w", err)
	}
	j.cron.Start()
	j.log.WithField("schedule", j.config.Schedule).Info("session janitor started")
	return nil
}

// Stop waits for a running sweep to finish.
func (j *SessionJanitor) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info("session janitor stopped")
}

func (j *SessionJanitor) RunOnce(ctx context.Context) error {
	evicted, err := j.sessions.EvictExpired(ctx, j.config.MaxAge)
	if err != nil {
		j.log.WithError(err).Error("session eviction failed")
		return err
	}
	requeued, err := j.sessions.ReconcileAnalysis(ctx)
	if err != nil {
		j.log.WithError(err).Error("analysis reconcile failed")
		return err
	}
	j.log.WithFields(logrus.Fields{"evicted": evicted, "requeued": requeued}).Debug("session janitor pass")
	return nil
}
