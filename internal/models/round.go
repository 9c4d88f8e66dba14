package models

import "time"

type RoundStatus string

const (
	RoundPending    RoundStatus = "pending"
	RoundInProgress RoundStatus = "in_progress"
	RoundAnswered   RoundStatus = "answered"
	RoundSkipped    RoundStatus = "skipped"
)

func (s RoundStatus) IsConsumed() bool { return s == RoundAnswered || s == RoundSkipped }

// FeedbackPending marks an answered round whose scoring has not landed.
const FeedbackPending = "pending"

// Question is one planned entry produced by question generation.
type Question struct {
	Text                 string   `bson:"text" json:"text"`
	ExpectedPoints       []string `bson:"expected_points,omitempty" json:"expected_points,omitempty"`
	SuggestedTimeSeconds int      `bson:"suggested_time_seconds" json:"suggested_time_seconds"`
	Fallback             bool     `bson:"fallback,omitempty" json:"fallback,omitempty"`
}

func (q Question) Clone() Question {
	q.ExpectedPoints = append([]string(nil), q.ExpectedPoints...)
	return q
}

type InterviewRound struct {
	RoundNumber          int      `bson:"round_number" json:"round_number"`
	Question             string   `bson:"question" json:"question"`
	ExpectedPoints       []string `bson:"expected_points,omitempty" json:"expected_points,omitempty"`
	SuggestedTimeSeconds int      `bson:"suggested_time_seconds" json:"suggested_time_seconds"`

	AnswerText            string  `bson:"answer_text,omitempty" json:"answer_text,omitempty"`
	AnswerAudioURL        *string `bson:"answer_audio_url,omitempty" json:"answer_audio_url,omitempty"`
	AnswerDurationSeconds int     `bson:"answer_duration_seconds,omitempty" json:"answer_duration_seconds,omitempty"`
	Transcript            string  `bson:"transcript,omitempty" json:"transcript,omitempty"`

	Status   RoundStatus `bson:"status" json:"status"`
	Score    *float64    `bson:"score,omitempty" json:"score"`
	Feedback *string     `bson:"feedback,omitempty" json:"feedback"`

	StartedAt  *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	AnsweredAt *time.Time `bson:"answered_at,omitempty" json:"answered_at,omitempty"`
}

// NeedsMediaFinalization is true for rounds answered with uploaded media
// that has not been transcribed yet.
func (r *InterviewRound) NeedsMediaFinalization() bool {
	return r.Status == RoundAnswered && r.AnswerAudioURL != nil && *r.AnswerAudioURL != "" && r.Transcript == ""
}

// EffectiveAnswer prefers typed text and falls back to the transcript.
func (r *InterviewRound) EffectiveAnswer() string {
	if r.AnswerText != "" {
		return r.AnswerText
	}
	return r.Transcript
}

func (r InterviewRound) Clone() InterviewRound {
	r.ExpectedPoints = append([]string(nil), r.ExpectedPoints...)
	if r.AnswerAudioURL != nil {
		v := *r.AnswerAudioURL
		r.AnswerAudioURL = &v
	}
	if r.Score != nil {
		v := *r.Score
		r.Score = &v
	}
	if r.Feedback != nil {
		v := *r.Feedback
		r.Feedback = &v
	}
	if r.StartedAt != nil {
		v := *r.StartedAt
		r.StartedAt = &v
	}
	if r.AnsweredAt != nil {
		v := *r.AnsweredAt
		r.AnsweredAt = &v
	}
	return r
}

// NewRoundFromQuestion materializes a pending round from a planned question.
func NewRoundFromQuestion(number int, q Question) InterviewRound {
	return InterviewRound{
		RoundNumber:          number,
		Question:             q.Text,
		ExpectedPoints:       append([]string(nil), q.ExpectedPoints...),
		SuggestedTimeSeconds: q.SuggestedTimeSeconds,
		Status:               RoundPending,
	}
}
