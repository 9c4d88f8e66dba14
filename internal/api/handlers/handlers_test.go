package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/yoointerview/internal/api/handlers"
	"github.com/yoockh/yoointerview/internal/api/routes"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/generation"
	"github.com/yoockh/yoointerview/internal/providers/media"
	"github.com/yoockh/yoointerview/internal/queue"
	"github.com/yoockh/yoointerview/internal/repositories/memory"
	"github.com/yoockh/yoointerview/internal/services"
)

type stubGen struct{}

func (stubGen) GenerateQuestions(_ context.Context, req generation.QuestionRequest) ([]models.Question, error) {
	qs := make([]models.Question, req.Count)
	for i := range qs {
		qs[i] = models.Question{Text: fmt.Sprintf("Question %d", i+1), SuggestedTimeSeconds: 120}
	}
	return qs, nil
}

func (stubGen) ScoreAnswer(context.Context, generation.ScoreRequest) (*generation.AnswerScore, error) {
	return &generation.AnswerScore{Score: 8, Feedback: "good"}, nil
}

func (stubGen) GenerateReport(_ context.Context, req generation.ReportRequest) (*models.AnalysisReport, error) {
	return &models.AnalysisReport{SessionID: req.Session.SessionID, OverallScore: 80, Tips: "more examples"}, nil
}

type stubFinalizer struct{}

func (stubFinalizer) Finalize(context.Context, string, string, string) (*media.Result, error) {
	return &media.Result{Transcript: "spoken answer", DurationSeconds: 30}, nil
}

type memUploader struct {
	mu      sync.Mutex
	objects map[string]string
}

func (u *memUploader) Upload(_ context.Context, name, contentType string, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[name] = contentType
	return "gs://answers-bucket/" + name, nil
}

func (u *memUploader) Bucket() string { return "answers-bucket" }

type chanSubscriber struct {
	ch chan string
}

func (s *chanSubscriber) Subscribe(context.Context, string) (<-chan string, func() error, error) {
	return s.ch, func() error { return nil }, nil
}

// fakeAuth trusts the X-User and X-Role headers.
func fakeAuth(c *gin.Context) {
	if u := c.GetHeader("X-User"); u != "" {
		c.Set("user_id", u)
		role := c.GetHeader("X-Role")
		if role == "" {
			role = "user"
		}
		c.Set("role", role)
	}
	c.Next()
}

type env struct {
	router    *gin.Engine
	analysis  services.AnalysisService
	uploader  *memUploader
	statusSub *chanSubscriber
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	sessions := memory.NewSessionRepo()
	var analysis services.AnalysisService
	interview := services.NewInterviewService(sessions, services.NewRoundManager(stubGen{}, log),
		services.EnqueuerFunc(func(ctx context.Context, id string, prio int) (*models.AnalysisTask, error) {
			return analysis.Enqueue(ctx, id, prio)
		}), services.NewKeyedLocker(), services.InterviewConfig{}, log)
	analysis = services.NewAnalysisService(memory.NewTaskRepo(), memory.NewReportRepo(), queue.NewMemory(),
		interview, stubGen{}, stubFinalizer{}, nil, services.AnalysisConfig{MaxRetries: 1}, log)

	e := &env{
		analysis:  analysis,
		uploader:  &memUploader{objects: map[string]string{}},
		statusSub: &chanSubscriber{ch: make(chan string, 4)},
	}
	e.router = gin.New()
	routes.RegisterRoutes(e.router, routes.Deps{
		Interview: handlers.NewInterviewHandler(interview, analysis, e.uploader),
		Admin:     handlers.NewAdminHandler(analysis, interview),
		WS:        handlers.NewWSHandler(interview, analysis, e.statusSub),
		Auth:      fakeAuth,
	})
	return e
}

func (e *env) call(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	if user == "ops" {
		req.Header.Set("X-Role", "admin")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// startReady creates a session for user and drives it to the in_progress phase.
func (e *env) startReady(t *testing.T, user string) string {
	t.Helper()
	w := e.call(t, http.MethodPost, "/interviews", user, gin.H{"candidate_name": "Rina", "is_first_time": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var view handlers.SessionView
	decode(t, w, &view)
	require.NotEmpty(t, view.Introduction)

	w = e.call(t, http.MethodPut, "/interviews/"+view.SessionID+"/profile", user,
		gin.H{"target_job": "Data Engineer", "skills": []string{"SQL"}, "requested_rounds": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.call(t, http.MethodPost, "/interviews/"+view.SessionID+"/start", user, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var plan services.PlanResult
	decode(t, w, &plan)
	require.Equal(t, 3, plan.TotalRounds)
	return view.SessionID
}

func (e *env) answerAll(t *testing.T, user, id string) {
	t.Helper()
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/interviews/"+id+"/rounds/next", user, nil).Code)
		w := e.call(t, http.MethodPost, "/interviews/"+id+"/answer", user, gin.H{"answer_text": "answer"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
}

func TestInterviewFlow(t *testing.T) {
	e := newEnv(t)
	id := e.startReady(t, "cand-1")
	base := "/interviews/" + id

	for i := 1; i <= 3; i++ {
		w := e.call(t, http.MethodPost, base+"/rounds/next", "cand-1", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var next struct {
			Round *models.InterviewRound `json:"round"`
		}
		decode(t, w, &next)
		require.NotNil(t, next.Round)
		assert.Equal(t, i, next.Round.RoundNumber)

		if i == 2 {
			w = e.call(t, http.MethodPost, base+"/skip", "cand-1", nil)
		} else {
			w = e.call(t, http.MethodPost, base+"/answer", "cand-1", gin.H{"answer_text": "my answer", "duration_seconds": 40})
		}
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res services.AnswerResult
		decode(t, w, &res)
		assert.Equal(t, i == 3, res.IsCompleted)
	}

	w := e.call(t, http.MethodPost, base+"/rounds/next", "cand-1", nil)
	assert.JSONEq(t, `{"round":null}`, w.Body.String())

	w = e.call(t, http.MethodGet, base, "cand-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"plan"`)

	w = e.call(t, http.MethodPost, base+"/end", "cand-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sum models.InterviewSummary
	decode(t, w, &sum)
	assert.Equal(t, 2, sum.AnsweredRounds)
	assert.Equal(t, 1, sum.SkippedRounds)
	require.NotEmpty(t, sum.AnalysisTaskID)

	w = e.call(t, http.MethodGet, base+"/report", "cand-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	processed, err := e.analysis.Next(context.Background(), "test-worker")
	require.NoError(t, err)
	require.True(t, processed)

	w = e.call(t, http.MethodGet, base+"/report", "cand-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rep models.AnalysisReport
	decode(t, w, &rep)
	assert.Equal(t, 80.0, rep.OverallScore)
	assert.Equal(t, sum.AnalysisTaskID, rep.TaskID)
}

func TestSessionOwnership(t *testing.T) {
	e := newEnv(t)
	id := e.startReady(t, "cand-1")

	assert.Equal(t, http.StatusNotFound, e.call(t, http.MethodGet, "/interviews/"+id, "cand-2", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.call(t, http.MethodPost, "/interviews/"+id+"/end", "cand-2", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.call(t, http.MethodGet, "/interviews/"+id, "", nil).Code)
}

func TestErrorMapping(t *testing.T) {
	e := newEnv(t)

	w := e.call(t, http.MethodPost, "/interviews", "cand-1", gin.H{"is_first_time": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := e.startReady(t, "cand-1")

	// profile is frozen once the interview is underway
	w = e.call(t, http.MethodPut, "/interviews/"+id+"/profile", "cand-1", gin.H{"target_job": "PM"})
	assert.Equal(t, http.StatusConflict, w.Code)
	var apiErr handlers.APIError
	decode(t, w, &apiErr)
	assert.Equal(t, "FAILED_PRECONDITION", string(apiErr.Code))

	// nothing in progress yet
	w = e.call(t, http.MethodPost, "/interviews/"+id+"/answer", "cand-1", gin.H{"answer_text": "x"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.call(t, http.MethodGet, "/interviews/missing", "cand-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func wavBytes() []byte {
	b := []byte("RIFF\x24\x00\x00\x00WAVEfmt ")
	return append(b, make([]byte, 64)...)
}

func TestAnswerAudio(t *testing.T) {
	e := newEnv(t)
	id := e.startReady(t, "cand-1")
	require.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/interviews/"+id+"/rounds/next", "cand-1", nil).Code)

	upload := func(data []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "answer.wav")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.WriteField("duration_seconds", "35"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/interviews/"+id+"/answer/audio", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("X-User", "cand-1")
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		return w
	}

	w := upload([]byte("plain text, not audio"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = upload(wavBytes())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		AudioURL string                 `json:"audio_url"`
		Result   services.AnswerResult `json:"result"`
	}
	decode(t, w, &out)
	assert.True(t, strings.HasPrefix(out.AudioURL, "gs://answers-bucket/answers/"+id+"/"))
	assert.True(t, strings.HasSuffix(out.AudioURL, ".wav"))
	assert.Equal(t, 1, out.Result.RoundNumber)
	// audio answers are scored by the pipeline after transcription
	assert.Nil(t, out.Result.Score)

	require.Len(t, e.uploader.objects, 1)
	for _, ct := range e.uploader.objects {
		assert.Equal(t, "audio/wave", ct)
	}

	require.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/interviews/"+id+"/rounds/next", "cand-1", nil).Code)
	for _, foreign := range []string{
		"http://169.254.169.254/computeMetadata/v1/",
		"gs://other-bucket/answers/" + id + "/a.wav",
		"gs://answers-bucket/answers/someone-else/a.wav",
	} {
		w = e.call(t, http.MethodPost, "/interviews/"+id+"/answer", "cand-1", gin.H{"audio_url": foreign})
		assert.Equal(t, http.StatusBadRequest, w.Code, foreign)
	}
	w = e.call(t, http.MethodPost, "/interviews/"+id+"/answer", "cand-1", gin.H{"audio_url": out.AudioURL})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAdminSurface(t *testing.T) {
	e := newEnv(t)
	id := e.startReady(t, "cand-1")
	e.answerAll(t, "cand-1", id)
	require.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/interviews/"+id+"/end", "cand-1", nil).Code)

	assert.Equal(t, http.StatusForbidden, e.call(t, http.MethodGet, "/admin/tasks", "cand-1", nil).Code)

	w := e.call(t, http.MethodGet, "/admin/tasks?status=queued", "ops", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page struct {
		Tasks []models.AnalysisTask `json:"tasks"`
		Total int64                 `json:"total"`
	}
	decode(t, w, &page)
	require.EqualValues(t, 1, page.Total)
	taskID := page.Tasks[0].TaskID

	w = e.call(t, http.MethodGet, "/admin/tasks/"+taskID, "ops", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// only failed tasks can be retried
	w = e.call(t, http.MethodPost, "/admin/tasks/"+taskID+"/retry", "ops", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.call(t, http.MethodGet, "/admin/queue/stats", "ops", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats services.QueueStats
	decode(t, w, &stats)
	assert.EqualValues(t, 1, stats.ByStatus[models.TaskQueued])

	w = e.call(t, http.MethodGet, "/admin/sessions/"+id, "ops", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"plan"`)

	var apiErr handlers.APIError
	w = e.call(t, http.MethodGet, "/admin/tasks?limit=abc", "ops", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.call(t, http.MethodPost, "/admin/sessions/"+id+"/regenerate", "ops", gin.H{"priority": 500})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	decode(t, w, &apiErr)
	assert.Equal(t, "INVALID_ARGUMENT", string(apiErr.Code))

	w = e.call(t, http.MethodPost, "/admin/sessions/evict?max_age=1h", "ops", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"evicted":0}`, w.Body.String())
}

func TestAnalysisStatusStream(t *testing.T) {
	e := newEnv(t)
	id := e.startReady(t, "cand-1")

	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/interviews/" + id + "/analysis"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"X-User": []string{"cand-1"}})
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	e.statusSub.ch <- `{"type":"analysis_status","status":"running"}`

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"analysis_status","status":"running"}`, string(msg))

	_, resp, err = websocket.DefaultDialer.Dial(url, http.Header{"X-User": []string{"cand-2"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
