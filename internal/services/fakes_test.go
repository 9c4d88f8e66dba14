package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/generation"
	"github.com/yoockh/yoointerview/internal/providers/media"
	"github.com/yoockh/yoointerview/internal/queue"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/repositories/memory"
)

type fakeGen struct {
	mu        sync.Mutex
	questions func(ctx context.Context, req generation.QuestionRequest) ([]models.Question, error)
	score     func(ctx context.Context, req generation.ScoreRequest) (*generation.AnswerScore, error)
	report    func(ctx context.Context, req generation.ReportRequest) (*models.AnalysisReport, error)

	questionReqs []generation.QuestionRequest
	scoreCalls   int
	reportCalls  int
}

func (f *fakeGen) GenerateQuestions(ctx context.Context, req generation.QuestionRequest) ([]models.Question, error) {
	f.mu.Lock()
	f.questionReqs = append(f.questionReqs, req)
	f.mu.Unlock()
	return f.questions(ctx, req)
}

func (f *fakeGen) ScoreAnswer(ctx context.Context, req generation.ScoreRequest) (*generation.AnswerScore, error) {
	f.mu.Lock()
	f.scoreCalls++
	f.mu.Unlock()
	return f.score(ctx, req)
}

func (f *fakeGen) GenerateReport(ctx context.Context, req generation.ReportRequest) (*models.AnalysisReport, error) {
	f.mu.Lock()
	f.reportCalls++
	f.mu.Unlock()
	return f.report(ctx, req)
}

func numberedQuestions(ctx context.Context, req generation.QuestionRequest) ([]models.Question, error) {
	qs := make([]models.Question, req.Count)
	for i := range qs {
		qs[i] = models.Question{Text: fmt.Sprintf("Question %d", i+1), SuggestedTimeSeconds: 120}
	}
	return qs, nil
}

func fixedScore(score float64, feedback string) func(context.Context, generation.ScoreRequest) (*generation.AnswerScore, error) {
	return func(context.Context, generation.ScoreRequest) (*generation.AnswerScore, error) {
		return &generation.AnswerScore{Score: score, Feedback: feedback}, nil
	}
}

func okReport(_ context.Context, req generation.ReportRequest) (*models.AnalysisReport, error) {
	return &models.AnalysisReport{SessionID: req.Session.SessionID, OverallScore: 72, Tips: "keep practicing"}, nil
}

func newFakeGen() *fakeGen {
	return &fakeGen{questions: numberedQuestions, score: fixedScore(7, "solid answer"), report: okReport}
}

type fakeFinalizer struct {
	finalize func(ctx context.Context, audioURL, language string) (*media.Result, error)
	urls     []string
}

func (f *fakeFinalizer) Finalize(ctx context.Context, _, audioURL, language string) (*media.Result, error) {
	f.urls = append(f.urls, audioURL)
	return f.finalize(ctx, audioURL, language)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type harness struct {
	gen       *fakeGen
	finalizer *fakeFinalizer
	sessions  repositories.SessionRepository
	tasks     repositories.TaskRepository
	reports   repositories.ReportRepository
	queue     *queue.Memory
	clock     *fakeClock

	interview *interviewService
	analysis  *analysisService
}

func newHarness(t *testing.T, icfg InterviewConfig, acfg AnalysisConfig) *harness {
	t.Helper()
	h := &harness{
		gen: newFakeGen(),
		finalizer: &fakeFinalizer{finalize: func(_ context.Context, url, _ string) (*media.Result, error) {
			return &media.Result{Transcript: "transcribed " + url, DurationSeconds: 42}, nil
		}},
		sessions: memory.NewSessionRepo(),
		tasks:    memory.NewTaskRepo(),
		reports:  memory.NewReportRepo(),
		queue:    queue.NewMemory(),
		clock:    newFakeClock(),
	}
	log := quietLogger()

	var analysis AnalysisService
	enqueue := EnqueuerFunc(func(ctx context.Context, sessionID string, priority int) (*models.AnalysisTask, error) {
		return analysis.Enqueue(ctx, sessionID, priority)
	})
	h.interview = NewInterviewService(h.sessions, NewRoundManager(h.gen, log), enqueue, NewKeyedLocker(), icfg, log).(*interviewService)
	h.interview.now = h.clock.now

	analysis = NewAnalysisService(h.tasks, h.reports, h.queue, h.interview, h.gen, h.finalizer, nil, acfg, log)
	h.analysis = analysis.(*analysisService)
	h.analysis.now = h.clock.now
	return h
}

// readySession drives a new session to the ready phase with n rounds.
func (h *harness) readySession(t *testing.T, n int) string {
	t.Helper()
	ctx := context.Background()
	id, err := h.interview.StartSession(ctx, "cand-1", "Sam", true)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.interview.CollectInfo(ctx, id, models.CandidateProfile{TargetJob: "Backend Engineer", RequestedRounds: n}); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if _, err := h.interview.EnterInterviewPhase(ctx, id); err != nil {
		t.Fatalf("enter: %v", err)
	}
	return id
}

// completedSession stores a finished session directly.
func (h *harness) completedSession(t *testing.T, rounds ...models.InterviewRound) string {
	t.Helper()
	now := h.clock.now()
	s := &models.InterviewSession{
		SessionID:     fmt.Sprintf("done-%d", now.UnixNano()),
		CandidateName: "Sam",
		Phase:         models.PhaseCompleted,
		Profile:       models.CandidateProfile{TargetJob: "Backend Engineer"},
		Rounds:        rounds,
		TotalRounds:   len(rounds),
		CreatedAt:     now,
		UpdatedAt:     now,
		CompletedAt:   &now,
	}
	if err := h.sessions.Put(context.Background(), s); err != nil {
		t.Fatalf("put: %v", err)
	}
	h.clock.advance(time.Millisecond)
	return s.SessionID
}
