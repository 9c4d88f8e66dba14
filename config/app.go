package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
)

type InterviewSettings struct {
	QuestionCount         int
	MaxGenerationAttempts int
	AnalysisPriority      int
	SessionMaxAge         time.Duration
	EvictionSchedule      string
	SessionCacheTTL       time.Duration
}

type AISettings struct {
	Provider        string
	GeminiAPIKey    string
	GeminiModel     string
	VertexProjectID string
	VertexLocation  string
	CredentialsFile string
	QuestionTimeout time.Duration
	ScoreTimeout    time.Duration
	ReportTimeout   time.Duration
}

type MediaSettings struct {
	Bucket   string
	Timeout  time.Duration
	MaxBytes int64
}

type AnalysisSettings struct {
	Workers      int
	MaxRetries   int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	LeaseTTL     time.Duration
	PollInterval time.Duration
	Queue        string // memory | redis
}

// App holds every typed setting. It is read once at startup and never
// mutated afterwards.
type App struct {
	Port      string
	MongoDB   string
	Store     string // durable | memory
	JWTSecret string

	// optional token checks
	JWTIssuer   string
	JWTAudience string

	Interview InterviewSettings
	AI        AISettings
	Media     MediaSettings
	Analysis  AnalysisSettings
}

func LoadApp() (*App, error) {
	return loadApp(os.Getenv)
}

type envReader struct {
	get  func(string) string
	errs []error
}

func (r *envReader) str(key, def string) string {
	if v := strings.TrimSpace(r.get(key)); v != "" {
		return v
	}
	return def
}

func (r *envReader) int(key string, def int) int {
	v := strings.TrimSpace(r.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.get(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func (r *envReader) check(ok bool, format string, args ...any) {
	if !ok {
		r.errs = append(r.errs, fmt.Errorf(format, args...))
	}
}

func loadApp(getenv func(string) string) (*App, error) {
	r := &envReader{get: getenv}

	app := &App{
		Port:        r.str("PORT", "8080"),
		MongoDB:     r.str("MONGO_DB", "yoointerview"),
		Store:       strings.ToLower(r.str("STORE_BACKEND", "durable")),
		JWTSecret:   r.str("SUPABASE_JWT_SECRET", ""),
		JWTIssuer:   r.str("SUPABASE_JWT_ISSUER", ""),
		JWTAudience: r.str("SUPABASE_JWT_AUDIENCE", "authenticated"),
		Interview: InterviewSettings{
			QuestionCount:         r.int("INTERVIEW_QUESTION_COUNT", 0),
			MaxGenerationAttempts: r.int("INTERVIEW_MAX_GENERATION_ATTEMPTS", 3),
			AnalysisPriority:      r.int("ANALYSIS_DEFAULT_PRIORITY", 0),
			SessionMaxAge:         r.duration("SESSION_MAX_AGE", 24*time.Hour),
			EvictionSchedule:      r.str("SESSION_EVICTION_SCHEDULE", "@every 10m"),
			SessionCacheTTL:       r.duration("SESSION_CACHE_TTL", 30*time.Minute),
		},
		AI: AISettings{
			Provider:        strings.ToLower(r.str("AI_PROVIDER", "gemini")),
			GeminiAPIKey:    r.str("GEMINI_API_KEY", ""),
			GeminiModel:     r.str("GEMINI_MODEL", ""),
			VertexProjectID: r.str("VERTEX_PROJECT_ID", ""),
			VertexLocation:  r.str("VERTEX_LOCATION", "us-central1"),
			CredentialsFile: r.str("GOOGLE_CREDENTIALS_FILE", ""),
			QuestionTimeout: r.duration("AI_QUESTION_TIMEOUT", 30*time.Second),
			ScoreTimeout:    r.duration("AI_SCORE_TIMEOUT", 15*time.Second),
			ReportTimeout:   r.duration("AI_REPORT_TIMEOUT", 30*time.Second),
		},
		Media: MediaSettings{
			Bucket:   r.str("MEDIA_BUCKET", ""),
			Timeout:  r.duration("MEDIA_TIMEOUT", 30*time.Second),
			MaxBytes: int64(r.int("MEDIA_MAX_BYTES", 10<<20)),
		},
		Analysis: AnalysisSettings{
			Workers:      r.int("ANALYSIS_WORKERS", 2),
			MaxRetries:   r.int("ANALYSIS_MAX_RETRIES", 3),
			BackoffBase:  r.duration("ANALYSIS_BACKOFF_BASE", time.Second),
			BackoffMax:   r.duration("ANALYSIS_BACKOFF_MAX", 5*time.Minute),
			LeaseTTL:     r.duration("ANALYSIS_LEASE_TTL", 10*time.Minute),
			PollInterval: r.duration("ANALYSIS_POLL_INTERVAL", time.Second),
			Queue:        strings.ToLower(r.str("ANALYSIS_QUEUE", "redis")),
		},
	}

	r.check(app.Store == "durable" || app.Store == "memory", "STORE_BACKEND must be durable or memory, got %q", app.Store)
	r.check(app.Analysis.Queue == "redis" || app.Analysis.Queue == "memory", "ANALYSIS_QUEUE must be redis or memory, got %q", app.Analysis.Queue)
	r.check(app.AI.Provider == "gemini" || app.AI.Provider == "vertex", "AI_PROVIDER must be gemini or vertex, got %q", app.AI.Provider)
	r.check(app.Interview.QuestionCount == 0 || (app.Interview.QuestionCount >= 3 && app.Interview.QuestionCount <= 15),
		"INTERVIEW_QUESTION_COUNT must be between 3 and 15")
	r.check(app.Interview.MaxGenerationAttempts >= 1, "INTERVIEW_MAX_GENERATION_ATTEMPTS must be at least 1")
	r.check(models.PriorityInRange(app.Interview.AnalysisPriority),
		"ANALYSIS_DEFAULT_PRIORITY must be between %d and %d", models.MinPriority, models.MaxPriority)
	r.check(app.Interview.SessionMaxAge > 0, "SESSION_MAX_AGE must be positive")
	r.check(app.Analysis.Workers >= 1, "ANALYSIS_WORKERS must be at least 1")
	r.check(app.Analysis.MaxRetries >= 0, "ANALYSIS_MAX_RETRIES must not be negative")
	r.check(app.Analysis.BackoffBase > 0 && app.Analysis.BackoffMax >= app.Analysis.BackoffBase,
		"ANALYSIS_BACKOFF_MAX must be at least ANALYSIS_BACKOFF_BASE")
	r.check(app.Analysis.LeaseTTL > 0, "ANALYSIS_LEASE_TTL must be positive")
	if app.AI.Provider == "vertex" {
		r.check(app.AI.VertexProjectID != "", "VERTEX_PROJECT_ID is required for the vertex provider")
	}

	if len(r.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(r.errs...))
	}
	return app, nil
}
