package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/events"
	"github.com/yoockh/yoointerview/internal/metrics"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/generation"
	"github.com/yoockh/yoointerview/internal/providers/media"
	"github.com/yoockh/yoointerview/internal/queue"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/utils"
)

const (
	errPrefixMedia  = "media_finalization: "
	errPrefixReport = "report_generation: "

	defaultListLimit = 20
	maxListLimit     = 100
)

// SessionSource is the part of the orchestrator the pipeline reads from and
// writes transcripts through.
type SessionSource interface {
	GetSession(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	AttachTranscripts(ctx context.Context, sessionID string, updates map[int]TranscriptUpdate) error
}

type AnalysisConfig struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	LeaseTTL    time.Duration
}

// Backoff doubles base per retry: base*2^retryCount, capped at max.
func Backoff(base, max time.Duration) models.BackoffFunc {
	return func(retryCount int) time.Duration {
		if retryCount < 0 {
			retryCount = 0
		}
		if retryCount > 30 {
			return max
		}
		d := base << uint(retryCount)
		if d <= 0 || d > max {
			return max
		}
		return d
	}
}

type QueueStats struct {
	ByStatus map[models.TaskStatus]int64 `json:"by_status"`
	Queue    queue.Stats                 `json:"queue"`
}

type AnalysisService interface {
	Enqueue(ctx context.Context, sessionID string, priority int) (*models.AnalysisTask, error)
	// Next claims one ready task and processes it. It reports false when the
	// queue had nothing ready.
	Next(ctx context.Context, workerID string) (bool, error)
	Process(ctx context.Context, c *queue.Claimed, workerID string) error

	GetTask(ctx context.Context, taskID string) (*models.AnalysisTask, error)
	ListTasks(ctx context.Context, f models.TaskFilter) ([]*models.AnalysisTask, int64, error)
	QueueStats(ctx context.Context) (*QueueStats, error)
	RetryTask(ctx context.Context, taskID string) (*models.AnalysisTask, error)
	Regenerate(ctx context.Context, sessionID string, priority int) (*models.AnalysisTask, error)
	GetReport(ctx context.Context, sessionID string) (*models.AnalysisReport, error)
	Recover(ctx context.Context) (int, error)
}

type analysisService struct {
	tasks     repositories.TaskRepository
	reports   repositories.ReportRepository
	queue     queue.Queue
	sessions  SessionSource
	gen       generation.Client
	finalizer media.Finalizer
	events    events.Publisher
	cfg       AnalysisConfig
	backoff   models.BackoffFunc
	log       *logrus.Logger
	now       func() time.Time
}

func NewAnalysisService(
	tasks repositories.TaskRepository,
	reports repositories.ReportRepository,
	q queue.Queue,
	sessions SessionSource,
	gen generation.Client,
	finalizer media.Finalizer,
	pub events.Publisher,
	cfg AnalysisConfig,
	log *logrus.Logger,
) AnalysisService {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 5 * time.Minute
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 10 * time.Minute
	}
	if pub == nil {
		pub = events.Discard{}
	}
	if log == nil {
		log = logrus.New()
	}
	return &analysisService{
		tasks:     tasks,
		reports:   reports,
		queue:     q,
		sessions:  sessions,
		gen:       gen,
		finalizer: finalizer,
		events:    pub,
		cfg:       cfg,
		backoff:   Backoff(cfg.BackoffBase, cfg.BackoffMax),
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func taskErr(op string, err error) error {
	switch {
	case errors.Is(err, utils.ErrNotFound):
		return utils.E(utils.CodeNotFound, op, "analysis task not found", err)
	case errors.Is(err, utils.ErrConflict):
		return utils.E(utils.CodeConflict, op, "analysis task was modified concurrently", err)
	default:
		return utils.E(utils.CodeUnavailable, op, "task store unavailable", err)
	}
}

func itemOf(t *models.AnalysisTask) queue.Item {
	return queue.Item{TaskID: t.TaskID, Priority: t.Priority, CreatedAt: t.CreatedAt, RunAt: t.RunAfter}
}

func (s *analysisService) publish(ctx context.Context, t *models.AnalysisTask) {
	if err := s.events.Publish(ctx, events.NewTaskEvent(t, s.now())); err != nil {
		s.log.WithFields(logrus.Fields{"task_id": t.TaskID, "session_id": t.SessionID}).
			WithError(err).Warn("failed to publish task status")
	}
}

// submit persists a new queued task and schedules it.
func (s *analysisService) submit(ctx context.Context, op string, t *models.AnalysisTask) (*models.AnalysisTask, error) {
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, taskErr(op, err)
	}
	if err := s.queue.Push(ctx, itemOf(t)); err != nil {
		// The record is queued; Recover or a repeated Enqueue pushes it again.
		return nil, utils.E(utils.CodeUnavailable, op, "failed to schedule analysis task", err)
	}
	s.publish(ctx, t)
	s.log.WithFields(logrus.Fields{"task_id": t.TaskID, "session_id": t.SessionID, "priority": t.Priority}).Info("analysis task queued")
	return t, nil
}

func (s *analysisService) newTask(sessionID string, priority int) *models.AnalysisTask {
	now := s.now()
	return &models.AnalysisTask{
		TaskID:     uuid.NewString(),
		SessionID:  sessionID,
		Status:     models.TaskQueued,
		Priority:   priority,
		MaxRetries: s.cfg.MaxRetries,
		RunAfter:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *analysisService) requireCompleted(ctx context.Context, op, sessionID string) error {
	if sessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Phase != models.PhaseCompleted {
		return utils.PhaseError(op, string(sess.Phase), string(models.PhaseCompleted))
	}
	return nil
}

func checkPriority(op string, priority int) error {
	if !models.PriorityInRange(priority) {
		return utils.E(utils.CodeInvalidArgument, op,
			fmt.Sprintf("priority must be between %d and %d, got %d", models.MinPriority, models.MaxPriority, priority), nil)
	}
	return nil
}

func (s *analysisService) latest(ctx context.Context, op, sessionID string) (*models.AnalysisTask, error) {
	t, err := s.tasks.LatestBySession(ctx, sessionID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, taskErr(op, err)
	}
	return t, nil
}

func (s *analysisService) Enqueue(ctx context.Context, sessionID string, priority int) (*models.AnalysisTask, error) {
	const op = "AnalysisService.Enqueue"

	if err := checkPriority(op, priority); err != nil {
		return nil, err
	}
	if err := s.requireCompleted(ctx, op, sessionID); err != nil {
		return nil, err
	}
	existing, err := s.latest(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}
	// Any existing task wins, failed ones included: only RetryTask and
	// Regenerate start a new attempt after a permanent failure.
	if existing != nil {
		if existing.Status == models.TaskQueued {
			// Heals a record whose first push was lost.
			if err := s.queue.Push(ctx, itemOf(existing)); err != nil {
				return nil, utils.E(utils.CodeUnavailable, op, "failed to schedule analysis task", err)
			}
		}
		return existing, nil
	}
	return s.submit(ctx, op, s.newTask(sessionID, priority))
}

func (s *analysisService) Next(ctx context.Context, workerID string) (bool, error) {
	c, err := s.queue.Claim(ctx, s.cfg.LeaseTTL)
	if err != nil {
		return false, fmt.Errorf("claim: %w", err)
	}
	if c == nil {
		return false, nil
	}
	return true, s.Process(ctx, c, workerID)
}

func (s *analysisService) Process(ctx context.Context, c *queue.Claimed, workerID string) error {
	const op = "AnalysisService.Process"

	log := s.log.WithFields(logrus.Fields{"task_id": c.TaskID, "worker": workerID})

	task, err := s.tasks.Get(ctx, c.TaskID)
	if errors.Is(err, utils.ErrNotFound) {
		log.Warn("queued task has no record, dropping")
		return s.queue.Ack(ctx, c.TaskID)
	}
	if err != nil {
		return taskErr(op, err)
	}
	if task.Status.IsTerminal() {
		return s.queue.Ack(ctx, c.TaskID)
	}
	now := s.now()
	if task.Status == models.TaskQueued && task.RunAfter.After(now) {
		return s.queue.Push(ctx, itemOf(task))
	}

	if err := task.Start(now, workerID, s.cfg.LeaseTTL); err != nil {
		// Another worker holds a live lease; its ack will clear our entry.
		log.WithError(err).Debug("task already leased")
		return nil
	}
	if err := s.tasks.Put(ctx, task); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			log.Debug("lost the race to start task")
			return nil
		}
		return taskErr(op, err)
	}
	s.publish(ctx, task)
	log = log.WithField("session_id", task.SessionID)
	log.Info("analysis task started")

	timer := prometheus.NewTimer(metrics.TaskDuration)
	runErr := s.run(ctx, task)
	timer.ObserveDuration()

	if runErr != nil && ctx.Err() != nil {
		// Shutting down; the lease runs out and the task is redelivered.
		return ctx.Err()
	}

	if runErr == nil {
		if err := task.Complete(s.now()); err != nil {
			return err
		}
		if err := s.tasks.Put(ctx, task); err != nil {
			log.WithError(err).Error("failed to record task completion")
			return taskErr(op, err)
		}
		metrics.TaskOutcomes.WithLabelValues("completed").Inc()
		s.publish(ctx, task)
		log.Info("analysis task completed")
		return s.queue.Ack(ctx, task.TaskID)
	}

	retrying, err := task.Fail(s.now(), runErr.Error(), s.backoff)
	if err != nil {
		return err
	}
	if err := s.tasks.Put(ctx, task); err != nil {
		log.WithError(err).Error("failed to record task failure")
		return taskErr(op, err)
	}
	s.publish(ctx, task)

	fields := logrus.Fields{"retry_count": task.RetryCount, "max_retries": task.MaxRetries}
	if retrying {
		metrics.TaskOutcomes.WithLabelValues("retry").Inc()
		log.WithFields(fields).WithError(runErr).Warn("analysis task failed, retry scheduled")
		if err := s.queue.Push(ctx, itemOf(task)); err != nil {
			return fmt.Errorf("reschedule task: %w", err)
		}
		return runErr
	}

	metrics.TaskOutcomes.WithLabelValues("failed").Inc()
	log.WithFields(fields).WithError(runErr).Error("analysis task failed permanently")
	if err := s.queue.Ack(ctx, task.TaskID); err != nil {
		return err
	}
	return utils.E(utils.CodePermanentFailure, op, "analysis task failed permanently", errors.Join(utils.ErrPermanentTaskFailure, runErr))
}

// run performs one attempt: media finalization then report generation.
func (s *analysisService) run(ctx context.Context, task *models.AnalysisTask) error {
	sess, err := s.sessions.GetSession(ctx, task.SessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	if err := s.finalizeMedia(ctx, sess); err != nil {
		return errors.New(errPrefixMedia + err.Error())
	}

	rep, err := s.gen.GenerateReport(ctx, generation.ReportRequest{Session: sess})
	if err != nil {
		return errors.New(errPrefixReport + err.Error())
	}
	rep.SessionID = sess.SessionID
	rep.TaskID = task.TaskID
	if err := s.reports.Upsert(ctx, rep); err != nil {
		return errors.New(errPrefixReport + "persist report: " + err.Error())
	}
	return nil
}

// finalizeMedia transcribes every answer that only has media, persists the
// transcripts and applies them to sess.
func (s *analysisService) finalizeMedia(ctx context.Context, sess *models.InterviewSession) error {
	updates := make(map[int]TranscriptUpdate)
	for i := range sess.Rounds {
		r := &sess.Rounds[i]
		if !r.NeedsMediaFinalization() {
			continue
		}
		if s.finalizer == nil {
			return fmt.Errorf("round %d: no media finalizer configured", r.RoundNumber)
		}
		res, err := s.finalizer.Finalize(ctx, sess.SessionID, *r.AnswerAudioURL, sess.Profile.LanguageOrDefault())
		if err != nil {
			return fmt.Errorf("round %d: %w", r.RoundNumber, err)
		}
		updates[r.RoundNumber] = TranscriptUpdate{Transcript: res.Transcript, DurationSeconds: res.DurationSeconds}
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.sessions.AttachTranscripts(ctx, sess.SessionID, updates); err != nil {
		return fmt.Errorf("attach transcripts: %w", err)
	}
	for n, u := range updates {
		if r := sess.Round(n); r != nil {
			r.Transcript = u.Transcript
			if r.AnswerDurationSeconds == 0 {
				r.AnswerDurationSeconds = u.DurationSeconds
			}
		}
	}
	return nil
}

func (s *analysisService) GetTask(ctx context.Context, taskID string) (*models.AnalysisTask, error) {
	const op = "AnalysisService.GetTask"

	if taskID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "task_id is required", nil)
	}
	t, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, taskErr(op, err)
	}
	return t, nil
}

func (s *analysisService) ListTasks(ctx context.Context, f models.TaskFilter) ([]*models.AnalysisTask, int64, error) {
	const op = "AnalysisService.ListTasks"

	if f.Status != "" && !f.Status.IsValid() {
		return nil, 0, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("unknown task status %q", f.Status), nil)
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	tasks, total, err := s.tasks.ListByStatus(ctx, f)
	if err != nil {
		return nil, 0, taskErr(op, err)
	}
	return tasks, total, nil
}

func (s *analysisService) QueueStats(ctx context.Context) (*QueueStats, error) {
	const op = "AnalysisService.QueueStats"

	counts, err := s.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, taskErr(op, err)
	}
	qs, err := s.queue.Stats(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "queue unavailable", err)
	}
	for _, st := range []models.TaskStatus{models.TaskQueued, models.TaskRunning, models.TaskCompleted, models.TaskFailed} {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	metrics.QueueDepth.WithLabelValues("ready").Set(float64(qs.Ready))
	metrics.QueueDepth.WithLabelValues("delayed").Set(float64(qs.Delayed))
	metrics.QueueDepth.WithLabelValues("leased").Set(float64(qs.Leased))
	return &QueueStats{ByStatus: counts, Queue: qs}, nil
}

func (s *analysisService) RetryTask(ctx context.Context, taskID string) (*models.AnalysisTask, error) {
	const op = "AnalysisService.RetryTask"

	failed, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if failed.Status != models.TaskFailed {
		return nil, utils.E(utils.CodeFailedPrecondition, op,
			fmt.Sprintf("only permanently failed tasks can be retried, task is %s", failed.Status),
			utils.ErrInvalidPhaseTransition)
	}
	latest, err := s.latest(ctx, op, failed.SessionID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.TaskID != failed.TaskID && latest.Status != models.TaskFailed {
		return nil, utils.E(utils.CodeConflict, op, "session already has a newer analysis task "+latest.TaskID, utils.ErrConflict)
	}
	return s.submit(ctx, op, models.NewRetryOf(failed, uuid.NewString(), s.now()))
}

func (s *analysisService) Regenerate(ctx context.Context, sessionID string, priority int) (*models.AnalysisTask, error) {
	const op = "AnalysisService.Regenerate"

	if err := checkPriority(op, priority); err != nil {
		return nil, err
	}
	if err := s.requireCompleted(ctx, op, sessionID); err != nil {
		return nil, err
	}
	latest, err := s.latest(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}
	if latest != nil && !latest.Status.IsTerminal() {
		return latest, nil
	}
	t := s.newTask(sessionID, priority)
	if latest != nil && latest.Status == models.TaskFailed {
		t.RetriedFrom = latest.TaskID
	}
	return s.submit(ctx, op, t)
}

func (s *analysisService) GetReport(ctx context.Context, sessionID string) (*models.AnalysisReport, error) {
	const op = "AnalysisService.GetReport"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	rep, err := s.reports.GetBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "report not found", err)
		}
		return nil, utils.E(utils.CodeUnavailable, op, "report store unavailable", err)
	}
	return rep, nil
}

// Recover pushes every queued or running record back into the queue. A
// running task is scheduled for when its lease runs out.
func (s *analysisService) Recover(ctx context.Context) (int, error) {
	const op = "AnalysisService.Recover"

	n := 0
	for _, status := range []models.TaskStatus{models.TaskQueued, models.TaskRunning} {
		for offset := 0; ; offset += maxListLimit {
			tasks, _, err := s.tasks.ListByStatus(ctx, models.TaskFilter{Status: status, Limit: maxListLimit, Offset: offset})
			if err != nil {
				return n, taskErr(op, err)
			}
			for _, t := range tasks {
				it := itemOf(t)
				if t.Status == models.TaskRunning && t.LeaseUntil != nil {
					it.RunAt = *t.LeaseUntil
				}
				if err := s.queue.Push(ctx, it); err != nil {
					return n, utils.E(utils.CodeUnavailable, op, "failed to schedule analysis task", err)
				}
				n++
			}
			if len(tasks) < maxListLimit {
				break
			}
		}
	}
	if n > 0 {
		s.log.WithField("tasks", n).Info("analysis tasks recovered into queue")
	}
	return n, nil
}
