package generation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/metrics"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/prompts"
	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/utils"
)

type QuestionRequest struct {
	Profile models.CandidateProfile
	Count   int
	// Exclude lists question texts the model must not repeat.
	Exclude []string
}

type ScoreRequest struct {
	Profile models.CandidateProfile
	Round   models.InterviewRound
	Answer  string
	History []models.InterviewRound
}

type ReportRequest struct {
	Session *models.InterviewSession
}

type AnswerScore struct {
	Score    float64
	Feedback string
}

// Client is the AI Generation Client. Every method either returns a validated
// value or a *Error.
type Client interface {
	GenerateQuestions(ctx context.Context, req QuestionRequest) ([]models.Question, error)
	ScoreAnswer(ctx context.Context, req ScoreRequest) (*AnswerScore, error)
	GenerateReport(ctx context.Context, req ReportRequest) (*models.AnalysisReport, error)
}

const (
	KindProvider  = "provider"
	KindTimeout   = "timeout"
	KindMalformed = "malformed"
)

// Error is the typed failure of a generation call. It matches
// utils.ErrAIClient under errors.Is.
type Error struct {
	Op   string
	Kind string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind
	}
	return e.Op + ": " + e.Kind + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error { return []error{utils.ErrAIClient, e.Err} }

type Timeouts struct {
	Questions time.Duration
	Score     time.Duration
	Report    time.Duration
}

type llmClient struct {
	provider llm.Provider
	prompts  *prompts.Manager
	timeouts Timeouts
	log      *logrus.Logger
}

func NewClient(provider llm.Provider, pm *prompts.Manager, timeouts Timeouts, log *logrus.Logger) Client {
	if timeouts.Questions <= 0 {
		timeouts.Questions = 30 * time.Second
	}
	if timeouts.Score <= 0 {
		timeouts.Score = 15 * time.Second
	}
	if timeouts.Report <= 0 {
		timeouts.Report = 30 * time.Second
	}
	return &llmClient{provider: provider, prompts: pm, timeouts: timeouts, log: log}
}

func (c *llmClient) GenerateQuestions(ctx context.Context, req QuestionRequest) ([]models.Question, error) {
	const op = "Generation.GenerateQuestions"

	p := req.Profile
	prompt, err := c.prompts.Build(prompts.Questions, p.LanguageOrDefault(), map[string]string{
		"TargetJob":     p.TargetJob,
		"TargetCompany": p.TargetCompany,
		"Background":    p.Background,
		"Experience":    p.Experience,
		"Skills":        strings.Join(p.Skills, ", "),
		"Count":         strconv.Itoa(req.Count),
		"Exclude":       strings.Join(req.Exclude, " | "),
	})
	if err != nil {
		return nil, &Error{Op: op, Kind: KindProvider, Err: err}
	}

	raw, err := c.call(ctx, op, "questions", c.timeouts.Questions, prompt)
	if err != nil {
		return nil, err
	}
	qs, err := ParseQuestions(raw, req.Count)
	if err != nil {
		metrics.AICalls.WithLabelValues("questions", KindMalformed).Inc()
		return nil, &Error{Op: op, Kind: KindMalformed, Err: err}
	}
	return qs, nil
}

func (c *llmClient) ScoreAnswer(ctx context.Context, req ScoreRequest) (*AnswerScore, error) {
	const op = "Generation.ScoreAnswer"

	var history strings.Builder
	for _, r := range req.History {
		fmt.Fprintf(&history, "Q%d: %s\nA%d: %s\n", r.RoundNumber, r.Question, r.RoundNumber, r.EffectiveAnswer())
	}

	prompt, err := c.prompts.Build(prompts.Score, req.Profile.LanguageOrDefault(), map[string]string{
		"TargetJob":      req.Profile.TargetJob,
		"Question":       req.Round.Question,
		"ExpectedPoints": strings.Join(req.Round.ExpectedPoints, "; "),
		"Answer":         req.Answer,
		"History":        history.String(),
	})
	if err != nil {
		return nil, &Error{Op: op, Kind: KindProvider, Err: err}
	}

	raw, err := c.call(ctx, op, "score", c.timeouts.Score, prompt)
	if err != nil {
		return nil, err
	}
	sc, err := ParseScore(raw)
	if err != nil {
		metrics.AICalls.WithLabelValues("score", KindMalformed).Inc()
		return nil, &Error{Op: op, Kind: KindMalformed, Err: err}
	}
	return sc, nil
}

func (c *llmClient) GenerateReport(ctx context.Context, req ReportRequest) (*models.AnalysisReport, error) {
	const op = "Generation.GenerateReport"

	s := req.Session
	if s == nil {
		return nil, &Error{Op: op, Kind: KindProvider, Err: errors.New("session is required")}
	}

	var transcript strings.Builder
	for _, r := range s.Rounds {
		answer := r.EffectiveAnswer()
		if r.Status == models.RoundSkipped {
			answer = "(skipped)"
		}
		fmt.Fprintf(&transcript, "Round %d\nQ: %s\nA: %s\n", r.RoundNumber, r.Question, answer)
		if r.Score != nil {
			fmt.Fprintf(&transcript, "Round score: %.1f/10\n", *r.Score)
		}
		transcript.WriteString("\n")
	}

	prompt, err := c.prompts.Build(prompts.Report, s.Profile.LanguageOrDefault(), map[string]string{
		"CandidateName": s.CandidateName,
		"TargetJob":     s.Profile.TargetJob,
		"TargetCompany": s.Profile.TargetCompany,
		"Background":    s.Profile.Background,
		"Transcript":    transcript.String(),
	})
	if err != nil {
		return nil, &Error{Op: op, Kind: KindProvider, Err: err}
	}

	raw, err := c.call(ctx, op, "report", c.timeouts.Report, prompt)
	if err != nil {
		return nil, err
	}
	rep, err := ParseReport(raw)
	if err != nil {
		metrics.AICalls.WithLabelValues("report", KindMalformed).Inc()
		return nil, &Error{Op: op, Kind: KindMalformed, Err: err}
	}
	rep.SessionID = s.SessionID
	return rep, nil
}

// call runs one provider request under its own timeout.
func (c *llmClient) call(ctx context.Context, op, kind string, timeout time.Duration, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timer := prometheus.NewTimer(metrics.AICallDuration.WithLabelValues(kind))
	resp, err := c.provider.Generate(ctx, llm.Request{Prompt: prompt, JSON: true})
	timer.ObserveDuration()

	if err != nil {
		k := KindProvider
		var pe *llm.ProviderError
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &pe) && pe.Code == llm.ErrCodeTimeout) {
			k = KindTimeout
		}
		metrics.AICalls.WithLabelValues(kind, k).Inc()
		if c.log != nil {
			c.log.WithFields(logrus.Fields{"call": kind, "provider": c.provider.Name(), "kind": k}).
				WithError(err).Warn("generation call failed")
		}
		return "", &Error{Op: op, Kind: k, Err: err}
	}

	metrics.AICalls.WithLabelValues(kind, "ok").Inc()
	return resp.Text, nil
}
