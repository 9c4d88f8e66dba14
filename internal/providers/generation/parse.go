package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
	"gorm.io/datatypes"
)

const defaultSuggestedSeconds = 150

// Competencies every report must score.
var Competencies = []string{"communication", "technical", "problem_solving", "teamwork", "adaptability", "learning"}

// extractJSON strips markdown fences and prose around the first JSON value.
func extractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", errors.New("no json value in response")
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return "", errors.New("unterminated json value in response")
	}
	return s[start : end+1], nil
}

type rawQuestion struct {
	Question             string   `json:"question"`
	ExpectedPoints       []string `json:"expected_points"`
	SuggestedTimeSeconds int      `json:"suggested_time_seconds"`
}

// ParseQuestions keeps every well-formed entry, at most want of them. It
// fails only when nothing usable came back.
func ParseQuestions(raw string, want int) ([]models.Question, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var entries []rawQuestion
	if strings.HasPrefix(body, "[") {
		if err := json.Unmarshal([]byte(body), &entries); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
	} else {
		var wrapped struct {
			Questions []rawQuestion `json:"questions"`
		}
		if err := json.Unmarshal([]byte(body), &wrapped); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
		entries = wrapped.Questions
	}

	out := make([]models.Question, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		text := strings.TrimSpace(e.Question)
		key := strings.ToLower(text)
		if text == "" || seen[key] {
			continue
		}
		seen[key] = true

		points := make([]string, 0, len(e.ExpectedPoints))
		for _, p := range e.ExpectedPoints {
			if p = strings.TrimSpace(p); p != "" {
				points = append(points, p)
			}
		}
		secs := e.SuggestedTimeSeconds
		if secs <= 0 || secs > 900 {
			secs = defaultSuggestedSeconds
		}
		out = append(out, models.Question{Text: text, ExpectedPoints: points, SuggestedTimeSeconds: secs})
		if want > 0 && len(out) == want {
			break
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no valid questions in response")
	}
	return out, nil
}

// ParseScore requires a numeric score and non-empty feedback; the score is
// clamped to [0, 10].
func ParseScore(raw string) (*AnswerScore, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var v struct {
		Score    *float64 `json:"score"`
		Feedback string   `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, fmt.Errorf("decode score: %w", err)
	}
	if v.Score == nil || math.IsNaN(*v.Score) {
		return nil, errors.New("score missing")
	}
	fb := strings.TrimSpace(v.Feedback)
	if fb == "" {
		return nil, errors.New("feedback missing")
	}
	return &AnswerScore{Score: clamp(*v.Score, 0, 10), Feedback: fb}, nil
}

type rawReport struct {
	OverallScore *float64           `json:"overall_score"`
	Competencies map[string]float64 `json:"competencies"`
	Strengths    []string           `json:"strengths"`
	Improvements []string           `json:"improvements"`
	JobMatch     *models.JobMatch   `json:"job_match"`
	Tips         string             `json:"tips"`
}

// ParseReport validates a full-session report. Scores are clamped to 0..100
// and the job match ratio to 0..1. Missing competencies are an error.
func ParseReport(raw string) (*models.AnalysisReport, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var v rawReport
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	if v.OverallScore == nil {
		return nil, errors.New("overall_score missing")
	}

	comps := make(map[string]float64, len(Competencies))
	for _, name := range Competencies {
		score, ok := v.Competencies[name]
		if !ok {
			return nil, fmt.Errorf("competency %q missing", name)
		}
		comps[name] = clamp(score, 0, 100)
	}

	if v.JobMatch == nil || strings.TrimSpace(v.JobMatch.Title) == "" {
		return nil, errors.New("job_match missing")
	}
	match := *v.JobMatch
	match.Title = strings.TrimSpace(match.Title)
	match.Ratio = clamp(match.Ratio, 0, 1)

	return &models.AnalysisReport{
		OverallScore:     clamp(*v.OverallScore, 0, 100),
		CompetencyScores: datatypes.NewJSONType(comps),
		Strengths:        nonEmpty(v.Strengths),
		Improvements:     nonEmpty(v.Improvements),
		JobMatch:         datatypes.NewJSONType(match),
		Tips:             strings.TrimSpace(v.Tips),
		GeneratedAt:      time.Now().UTC(),
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
