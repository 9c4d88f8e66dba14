package workers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/utils"
	"golang.org/x/sync/errgroup"
)

// TaskRunner claims and processes one analysis task per call.
type TaskRunner interface {
	Next(ctx context.Context, workerID string) (bool, error)
}

// AnalysisWorkerPool runs NumWorkers loops, each handling one task at a time.
type AnalysisWorkerPool struct {
	Tasks        TaskRunner
	NumWorkers   int
	PollInterval time.Duration
	WorkerPrefix string
	Logger       *logrus.Logger
}

func (p *AnalysisWorkerPool) defaults() error {
	if p.Tasks == nil {
		return errors.New("AnalysisWorkerPool missing dependency: Tasks must be set")
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.PollInterval <= 0 {
		p.PollInterval = time.Second
	}
	if p.WorkerPrefix == "" {
		p.WorkerPrefix = "analysis"
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
	return nil
}

// Run blocks until ctx is cancelled. Cancellation also reaches the task in
// flight: its AI and media calls are aborted, the attempt is not recorded as
// a failure and the task is redelivered once its lease expires.
func (p *AnalysisWorkerPool) Run(ctx context.Context) error {
	if err := p.defaults(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.NumWorkers; i++ {
		id := p.WorkerPrefix + "-" + strconv.Itoa(i+1)
		g.Go(func() error {
			p.runWorker(ctx, id)
			return nil
		})
	}
	p.Logger.WithField("workers", p.NumWorkers).Info("analysis workers started")
	err := g.Wait()
	p.Logger.Info("analysis workers stopped")
	return err
}

func (p *AnalysisWorkerPool) runWorker(ctx context.Context, id string) {
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := p.RunOnce(ctx, id)
		if processed {
			continue
		}
		if err != nil && ctx.Err() == nil {
			p.Logger.WithField("worker", id).WithError(err).Warn("queue poll failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.PollInterval):
		}
	}
}

// RunOnce processes at most one task and reports whether one was claimed.
// Task failures are logged here; only claim errors are returned.
func (p *AnalysisWorkerPool) RunOnce(ctx context.Context, workerID string) (bool, error) {
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
	processed, err := p.Tasks.Next(ctx, workerID)
	if !processed {
		return false, err
	}
	if err != nil && ctx.Err() == nil {
		entry := p.Logger.WithField("worker", workerID).WithError(err)
		if utils.IsCode(err, utils.CodePermanentFailure) {
			entry.Error("analysis task exhausted its retries")
		} else {
			entry.Warn("analysis task attempt failed")
		}
	}
	return true, nil
}
