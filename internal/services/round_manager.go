package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/metrics"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/generation"
)

// ScoreOutcome is nil-valued when scoring did not happen.
type ScoreOutcome struct {
	Score    *float64
	Feedback *string
}

// RoundManager turns profiles and answer history into generation requests
// and generation output into rounds.
type RoundManager struct {
	gen generation.Client
	log *logrus.Logger
}

func NewRoundManager(gen generation.Client, log *logrus.Logger) *RoundManager {
	if log == nil {
		log = logrus.New()
	}
	return &RoundManager{gen: gen, log: log}
}

// GeneratePlan asks for count questions in one call. Each slot the model
// failed to fill is asked for once more on its own, then backfilled with a
// fallback. Only a failure of the first call is returned.
func (m *RoundManager) GeneratePlan(ctx context.Context, profile models.CandidateProfile, count int) ([]models.Question, error) {
	qs, err := m.gen.GenerateQuestions(ctx, generation.QuestionRequest{Profile: profile, Count: count})
	if err != nil {
		return nil, err
	}

	plan := make([]models.Question, 0, count)
	used := make(map[string]bool, count)
	for _, q := range qs {
		if len(plan) == count {
			break
		}
		key := strings.ToLower(q.Text)
		if used[key] {
			continue
		}
		used[key] = true
		plan = append(plan, q)
	}

	for len(plan) < count {
		q, ok := m.regenerateOne(ctx, profile, plan, used)
		if !ok {
			q = fallbackQuestion(profile, used)
			metrics.FallbackQuestions.Inc()
			m.log.WithFields(logrus.Fields{"slot": len(plan) + 1, "target_job": profile.TargetJob}).
				Warn("question backfilled with fallback")
		}
		used[strings.ToLower(q.Text)] = true
		plan = append(plan, q)
	}
	return plan, nil
}

func (m *RoundManager) regenerateOne(ctx context.Context, profile models.CandidateProfile, plan []models.Question, used map[string]bool) (models.Question, bool) {
	exclude := make([]string, len(plan))
	for i, q := range plan {
		exclude[i] = q.Text
	}
	qs, err := m.gen.GenerateQuestions(ctx, generation.QuestionRequest{Profile: profile, Count: 1, Exclude: exclude})
	if err != nil {
		m.log.WithError(err).WithField("slot", len(plan)+1).Debug("slot regeneration failed")
		return models.Question{}, false
	}
	for _, q := range qs {
		if !used[strings.ToLower(q.Text)] {
			return q, true
		}
	}
	return models.Question{}, false
}

// ScoreAnswer never fails; an AI failure yields an empty outcome.
func (m *RoundManager) ScoreAnswer(ctx context.Context, profile models.CandidateProfile, round models.InterviewRound, answer string, history []models.InterviewRound) ScoreOutcome {
	sc, err := m.gen.ScoreAnswer(ctx, generation.ScoreRequest{
		Profile: profile,
		Round:   round,
		Answer:  answer,
		History: history,
	})
	if err != nil {
		m.log.WithError(err).WithField("round", round.RoundNumber).Warn("answer scoring failed")
		return ScoreOutcome{}
	}

	score := sc.Score
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	feedback := sc.Feedback
	return ScoreOutcome{Score: &score, Feedback: &feedback}
}
