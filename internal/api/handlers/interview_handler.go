package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/storage"
	"github.com/yoockh/yoointerview/internal/utils"
)

const maxAudioBytes = 10 << 20

// audio types accepted for recorded answers, keyed by sniffed content type
var audioExt = map[string]string{
	"audio/webm":      ".webm",
	"video/webm":      ".webm",
	"application/ogg": ".ogg",
	"audio/ogg":       ".ogg",
	"audio/wave":      ".wav",
	"audio/wav":       ".wav",
	"audio/mpeg":      ".mp3",
}

// ReportSource is the read side of the analysis pipeline.
type ReportSource interface {
	GetReport(ctx context.Context, sessionID string) (*models.AnalysisReport, error)
}

type InterviewHandler struct {
	svc      services.InterviewService
	reports  ReportSource
	uploader storage.Uploader // optional; audio upload is disabled without it
}

func NewInterviewHandler(svc services.InterviewService, reports ReportSource, uploader storage.Uploader) *InterviewHandler {
	return &InterviewHandler{svc: svc, reports: reports, uploader: uploader}
}

// owned loads the session and checks that the caller is its candidate.
func (h *InterviewHandler) owned(c *gin.Context, op string) (*models.InterviewSession, bool) {
	userID, ok := requireUserID(c)
	if !ok {
		return nil, false
	}
	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing session_id", nil))
		return nil, false
	}

	sess, err := h.svc.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if sess.CandidateID != userID {
		// same response as a missing session
		writeError(c, utils.E(utils.CodeNotFound, op, "session not found", nil))
		return nil, false
	}
	return sess, true
}

type startReq struct {
	CandidateName string `json:"candidate_name" binding:"required,max=200"`
	IsFirstTime   bool   `json:"is_first_time"`
}

func (h *InterviewHandler) Start(c *gin.Context) {
	const op = "InterviewHandler.Start"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req startReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid body", err))
		return
	}
	name := strings.TrimSpace(req.CandidateName)
	if name == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "candidate_name is required", nil))
		return
	}

	id, err := h.svc.StartSession(c.Request.Context(), userID, name, req.IsFirstTime)
	if err != nil {
		writeError(c, err)
		return
	}
	sess, err := h.svc.GetSession(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSessionView(sess))
}

func (h *InterviewHandler) Get(c *gin.Context) {
	sess, ok := h.owned(c, "InterviewHandler.Get")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newSessionView(sess))
}

func (h *InterviewHandler) CollectInfo(c *gin.Context) {
	const op = "InterviewHandler.CollectInfo"

	sess, ok := h.owned(c, op)
	if !ok {
		return
	}

	var req models.CandidateProfile
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid body", err))
		return
	}

	profile, err := h.svc.CollectInfo(c.Request.Context(), sess.SessionID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *InterviewHandler) Enter(c *gin.Context) {
	sess, ok := h.owned(c, "InterviewHandler.Enter")
	if !ok {
		return
	}

	plan, err := h.svc.EnterInterviewPhase(c.Request.Context(), sess.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *InterviewHandler) NextRound(c *gin.Context) {
	sess, ok := h.owned(c, "InterviewHandler.NextRound")
	if !ok {
		return
	}

	round, err := h.svc.StartNextRound(c.Request.Context(), sess.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	// nil round means the plan is used up
	c.JSON(http.StatusOK, gin.H{"round": round})
}

type answerReq struct {
	AnswerText      string  `json:"answer_text"`
	AudioURL        *string `json:"audio_url"`
	DurationSeconds int     `json:"duration_seconds" binding:"min=0"`
}

func (h *InterviewHandler) Answer(c *gin.Context) {
	const op = "InterviewHandler.Answer"

	sess, ok := h.owned(c, op)
	if !ok {
		return
	}

	var req answerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid body", err))
		return
	}
	// audio_url must name media uploaded through AnswerAudio for this session
	if req.AudioURL != nil {
		if h.uploader == nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "audio answers are not enabled", nil))
			return
		}
		if _, err := storage.AnswerObject(*req.AudioURL, h.uploader.Bucket(), sess.SessionID); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "audio_url must point to an uploaded answer of this session", err))
			return
		}
	}

	res, err := h.svc.SubmitAnswer(c.Request.Context(), sess.SessionID, services.AnswerInput{
		Text:            req.AnswerText,
		AudioURL:        req.AudioURL,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AnswerAudio stores a recorded answer and submits its URL. The transcript
// is produced later by the analysis pipeline.
func (h *InterviewHandler) AnswerAudio(c *gin.Context) {
	const op = "InterviewHandler.AnswerAudio"

	if h.uploader == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "audio upload is not configured", nil))
		return
	}
	sess, ok := h.owned(c, op)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing multipart field 'file'", err))
		return
	}
	if fh.Size <= 0 || fh.Size > maxAudioBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "file too large (max 10MB)", nil))
		return
	}

	var duration int
	if raw := c.PostForm("duration_seconds"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "duration_seconds must be a non-negative integer", err))
			return
		}
		duration = d
	}

	file, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	head = head[:n]
	ct := http.DetectContentType(head)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ext, ok := audioExt[ct]
	if !ok {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid content type (must be webm, ogg, wav or mp3)", nil))
		return
	}

	objectName := storage.AnswerPrefix(sess.SessionID) + uuid.NewString() + ext
	url, err := h.uploader.Upload(c.Request.Context(), objectName, ct, io.MultiReader(bytes.NewReader(head), file))
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "failed to store audio", err))
		return
	}

	res, err := h.svc.SubmitAnswer(c.Request.Context(), sess.SessionID, services.AnswerInput{
		AudioURL:        &url,
		DurationSeconds: duration,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audio_url": url, "result": res})
}

func (h *InterviewHandler) Skip(c *gin.Context) {
	sess, ok := h.owned(c, "InterviewHandler.Skip")
	if !ok {
		return
	}

	res, err := h.svc.SkipCurrentRound(c.Request.Context(), sess.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *InterviewHandler) End(c *gin.Context) {
	sess, ok := h.owned(c, "InterviewHandler.End")
	if !ok {
		return
	}

	sum, err := h.svc.EndInterview(c.Request.Context(), sess.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *InterviewHandler) Report(c *gin.Context) {
	sess, ok := h.owned(c, "InterviewHandler.Report")
	if !ok {
		return
	}

	rep, err := h.reports.GetReport(c.Request.Context(), sess.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}
