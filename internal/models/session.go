package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Phase string

const (
	PhaseIntroduction   Phase = "introduction"
	PhaseCollectingInfo Phase = "collecting_info"
	PhaseGenerating     Phase = "generating"
	PhaseReady          Phase = "ready"
	PhaseInProgress     Phase = "in_progress"
	PhaseCompleted      Phase = "completed"
	PhaseFailed         Phase = "failed"
)

// phaseTransitions is the only place allowed moves are declared.
var phaseTransitions = map[Phase][]Phase{
	PhaseIntroduction:   {PhaseCollectingInfo, PhaseGenerating, PhaseFailed},
	PhaseCollectingInfo: {PhaseGenerating, PhaseFailed},
	PhaseGenerating:     {PhaseReady, PhaseFailed},
	PhaseReady:          {PhaseInProgress, PhaseFailed},
	PhaseInProgress:     {PhaseCompleted, PhaseFailed},
}

func (p Phase) IsValid() bool {
	switch p {
	case PhaseIntroduction, PhaseCollectingInfo, PhaseGenerating, PhaseReady,
		PhaseInProgress, PhaseCompleted, PhaseFailed:
		return true
	default:
		return false
	}
}

func (p Phase) IsTerminal() bool { return p == PhaseCompleted || p == PhaseFailed }

func (p Phase) CanTransition(to Phase) bool {
	for _, next := range phaseTransitions[p] {
		if next == to {
			return true
		}
	}
	return false
}

func (p Phase) In(set ...Phase) bool {
	for _, s := range set {
		if p == s {
			return true
		}
	}
	return false
}

type InterviewSession struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	SessionID     string             `bson:"session_id" json:"session_id"`
	CandidateID   string             `bson:"candidate_id" json:"candidate_id"`
	CandidateName string             `bson:"candidate_name" json:"candidate_name"`
	IsFirstTime   bool               `bson:"is_first_time" json:"is_first_time"`

	Phase        Phase            `bson:"phase" json:"phase"`
	Profile      CandidateProfile `bson:"profile" json:"profile"`
	Introduction []string         `bson:"introduction,omitempty" json:"introduction,omitempty"`

	Plan        []Question       `bson:"plan,omitempty" json:"plan,omitempty"`
	Rounds      []InterviewRound `bson:"rounds" json:"rounds"`
	TotalRounds int              `bson:"total_rounds" json:"total_rounds"`

	GenerationAttempts int    `bson:"generation_attempts" json:"generation_attempts"`
	FailureReason      string `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`

	AnalysisTaskID   string            `bson:"analysis_task_id,omitempty" json:"analysis_task_id,omitempty"`
	AnalysisEnqueued bool              `bson:"analysis_enqueued" json:"analysis_enqueued"`
	Summary          *InterviewSummary `bson:"summary,omitempty" json:"summary,omitempty"`

	// Version guards concurrent writers; stores reject a Put whose version is stale.
	Version int64 `bson:"version" json:"version"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// InProgressRound returns the round currently being answered, if any.
func (s *InterviewSession) InProgressRound() *InterviewRound {
	for i := range s.Rounds {
		if s.Rounds[i].Status == RoundInProgress {
			return &s.Rounds[i]
		}
	}
	return nil
}

func (s *InterviewSession) NextPendingRound() *InterviewRound {
	for i := range s.Rounds {
		if s.Rounds[i].Status == RoundPending {
			return &s.Rounds[i]
		}
	}
	return nil
}

func (s *InterviewSession) Round(number int) *InterviewRound {
	for i := range s.Rounds {
		if s.Rounds[i].RoundNumber == number {
			return &s.Rounds[i]
		}
	}
	return nil
}

// AllRoundsConsumed reports whether every planned round was answered or skipped.
func (s *InterviewSession) AllRoundsConsumed() bool {
	if s.TotalRounds == 0 || len(s.Rounds) < s.TotalRounds {
		return false
	}
	for _, r := range s.Rounds {
		if !r.Status.IsConsumed() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers never share round slices with a store.
func (s *InterviewSession) Clone() *InterviewSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Profile = s.Profile.Clone()
	out.Introduction = append([]string(nil), s.Introduction...)
	if s.Plan != nil {
		out.Plan = make([]Question, len(s.Plan))
		for i, q := range s.Plan {
			out.Plan[i] = q.Clone()
		}
	}
	if s.Rounds != nil {
		out.Rounds = make([]InterviewRound, len(s.Rounds))
		for i, r := range s.Rounds {
			out.Rounds[i] = r.Clone()
		}
	}
	if s.Summary != nil {
		sum := *s.Summary
		out.Summary = &sum
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

type InterviewSummary struct {
	SessionID       string   `bson:"session_id" json:"session_id"`
	CandidateName   string   `bson:"candidate_name" json:"candidate_name"`
	TargetJob       string   `bson:"target_job" json:"target_job"`
	TotalRounds     int      `bson:"total_rounds" json:"total_rounds"`
	AnsweredRounds  int      `bson:"answered_rounds" json:"answered_rounds"`
	SkippedRounds   int      `bson:"skipped_rounds" json:"skipped_rounds"`
	ScoredRounds    int      `bson:"scored_rounds" json:"scored_rounds"`
	AverageScore    *float64 `bson:"average_score,omitempty" json:"average_score,omitempty"`
	DurationSeconds int64    `bson:"duration_seconds" json:"duration_seconds"`
	AnalysisTaskID  string   `bson:"analysis_task_id" json:"analysis_task_id"`
}
