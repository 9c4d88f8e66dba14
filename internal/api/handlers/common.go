package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	_ = c.Error(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: ae.Message,
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	})
}

func requireUserID(c *gin.Context) (string, bool) {
	if v, ok := c.Get("user_id"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}

// queryInt reads an optional integer query parameter.
func queryInt(c *gin.Context, op, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, key+" must be an integer", err))
		return 0, false
	}
	return n, true
}

// SessionView is the candidate facing session. The question plan stays
// server side so upcoming questions are not revealed early.
type SessionView struct {
	SessionID     string                   `json:"session_id"`
	CandidateName string                   `json:"candidate_name"`
	Phase         models.Phase             `json:"phase"`
	Introduction  []string                 `json:"introduction,omitempty"`
	Profile       models.CandidateProfile  `json:"profile"`
	Rounds        []models.InterviewRound  `json:"rounds"`
	TotalRounds   int                      `json:"total_rounds"`
	FailureReason string                   `json:"failure_reason,omitempty"`
	Summary       *models.InterviewSummary `json:"summary,omitempty"`
	CreatedAt     string                   `json:"created_at"`
	UpdatedAt     string                   `json:"updated_at"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func newSessionView(s *models.InterviewSession) SessionView {
	rounds := s.Rounds
	if rounds == nil {
		rounds = []models.InterviewRound{}
	}
	return SessionView{
		SessionID:     s.SessionID,
		CandidateName: s.CandidateName,
		Phase:         s.Phase,
		Introduction:  s.Introduction,
		Profile:       s.Profile,
		Rounds:        rounds,
		TotalRounds:   s.TotalRounds,
		FailureReason: s.FailureReason,
		Summary:       s.Summary,
		CreatedAt:     s.CreatedAt.Format(timeLayout),
		UpdatedAt:     s.UpdatedAt.Format(timeLayout),
	}
}
