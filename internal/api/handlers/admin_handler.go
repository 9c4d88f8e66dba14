package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/utils"
)

// AdminHandler is the operator surface of the analysis pipeline.
type AdminHandler struct {
	analysis   services.AnalysisService
	interviews services.InterviewService
}

func NewAdminHandler(analysis services.AnalysisService, interviews services.InterviewService) *AdminHandler {
	return &AdminHandler{analysis: analysis, interviews: interviews}
}

type taskPage struct {
	Tasks  []*models.AnalysisTask `json:"tasks"`
	Total  int64                  `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

func (h *AdminHandler) ListTasks(c *gin.Context) {
	const op = "AdminHandler.ListTasks"

	limit, ok := queryInt(c, op, "limit", 20)
	if !ok {
		return
	}
	offset, ok := queryInt(c, op, "offset", 0)
	if !ok {
		return
	}

	f := models.TaskFilter{
		Status:    models.TaskStatus(c.Query("status")),
		SessionID: c.Query("session_id"),
		Limit:     limit,
		Offset:    offset,
	}
	tasks, total, err := h.analysis.ListTasks(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	if tasks == nil {
		tasks = []*models.AnalysisTask{}
	}
	c.JSON(http.StatusOK, taskPage{Tasks: tasks, Total: total, Limit: limit, Offset: offset})
}

func (h *AdminHandler) GetTask(c *gin.Context) {
	t, err := h.analysis.GetTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *AdminHandler) RetryTask(c *gin.Context) {
	t, err := h.analysis.RetryTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, t)
}

func (h *AdminHandler) QueueStats(c *gin.Context) {
	st, err := h.analysis.QueueStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *AdminHandler) Recover(c *gin.Context) {
	n, err := h.analysis.Recover(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requeued": n})
}

type regenerateReq struct {
	Priority int `json:"priority"`
}

func (h *AdminHandler) Regenerate(c *gin.Context) {
	const op = "AdminHandler.Regenerate"

	var req regenerateReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid body", err))
			return
		}
	}

	t, err := h.analysis.Regenerate(c.Request.Context(), c.Param("session_id"), req.Priority)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, t)
}

// GetSession returns the full session, plan included.
func (h *AdminHandler) GetSession(c *gin.Context) {
	sess, err := h.interviews.GetSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *AdminHandler) FailSession(c *gin.Context) {
	const op = "AdminHandler.FailSession"

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "reason is required", err))
		return
	}
	if err := h.interviews.FailSession(c.Request.Context(), c.Param("session_id"), req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) EvictSessions(c *gin.Context) {
	const op = "AdminHandler.EvictSessions"

	maxAge := 24 * time.Hour
	if raw := c.Query("max_age"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "max_age must be a positive duration", err))
			return
		}
		maxAge = d
	}

	n, err := h.interviews.EvictExpired(c.Request.Context(), maxAge)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"evicted": n})
}
