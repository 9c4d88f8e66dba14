// Package bootstrap wires stores, providers and services from config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/config"
	"github.com/yoockh/yoointerview/internal/cache"
	"github.com/yoockh/yoointerview/internal/events"
	"github.com/yoockh/yoointerview/internal/jobs"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/prompts"
	"github.com/yoockh/yoointerview/internal/providers/generation"
	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/providers/media"
	"github.com/yoockh/yoointerview/internal/providers/stt"
	"github.com/yoockh/yoointerview/internal/queue"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/repositories/memory"
	mongorepo "github.com/yoockh/yoointerview/internal/repositories/mongo"
	"github.com/yoockh/yoointerview/internal/repositories/postgres"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/storage"
	"github.com/yoockh/yoointerview/internal/workers"
)

// Runtime is the assembled core. Close releases every connection it opened.
type Runtime struct {
	Interview services.InterviewService
	Analysis  services.AnalysisService
	Janitor   *jobs.SessionJanitor
	Workers   *workers.AnalysisWorkerPool

	// optional surfaces; nil when the backing service is not configured
	Uploader storage.Uploader
	Status   *events.RedisPubSub

	closers []func() error
}

func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type stores struct {
	sessions repositories.SessionRepository
	tasks    repositories.TaskRepository
	reports  repositories.ReportRepository
}

func Build(ctx context.Context, app *config.App, log *logrus.Logger) (rt *Runtime, err error) {
	rt = &Runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()

	var rdb *redis.Client
	if app.Store == "durable" || app.Analysis.Queue == "redis" {
		if err := config.InitRedis(); err != nil {
			return nil, fmt.Errorf("redis init: %w", err)
		}
		rdb = config.RedisClient
		rt.closers = append(rt.closers, rdb.Close)
		log.Info("Redis connected")
	}

	st, err := rt.buildStores(ctx, app, rdb, log)
	if err != nil {
		return nil, err
	}

	var q queue.Queue = queue.NewMemory()
	if app.Analysis.Queue == "redis" {
		q = queue.NewRedis(rdb, "analysis")
	}

	var pub events.Publisher = events.Discard{}
	if rdb != nil {
		rt.Status = events.NewRedisPubSub(rdb)
		pub = rt.Status
	}

	gen, err := rt.buildGeneration(ctx, app, log)
	if err != nil {
		return nil, err
	}
	finalizer := rt.buildFinalizer(ctx, app, log)

	var analysis services.AnalysisService
	enqueue := services.EnqueuerFunc(func(ctx context.Context, sessionID string, priority int) (*models.AnalysisTask, error) {
		return analysis.Enqueue(ctx, sessionID, priority)
	})

	rt.Interview = services.NewInterviewService(
		st.sessions,
		services.NewRoundManager(gen, log),
		enqueue,
		services.NewKeyedLocker(),
		services.InterviewConfig{
			QuestionCount:         app.Interview.QuestionCount,
			MaxGenerationAttempts: app.Interview.MaxGenerationAttempts,
			AnalysisPriority:      app.Interview.AnalysisPriority,
		},
		log,
	)
	analysis = services.NewAnalysisService(st.tasks, st.reports, q, rt.Interview, gen, finalizer, pub,
		services.AnalysisConfig{
			MaxRetries:  app.Analysis.MaxRetries,
			BackoffBase: app.Analysis.BackoffBase,
			BackoffMax:  app.Analysis.BackoffMax,
			LeaseTTL:    app.Analysis.LeaseTTL,
		}, log)
	rt.Analysis = analysis

	rt.Janitor = jobs.NewSessionJanitor(rt.Interview, jobs.JanitorConfig{
		Schedule: app.Interview.EvictionSchedule,
		MaxAge:   app.Interview.SessionMaxAge,
	}, log)
	rt.Workers = &workers.AnalysisWorkerPool{
		Tasks:        analysis,
		NumWorkers:   app.Analysis.Workers,
		PollInterval: app.Analysis.PollInterval,
		Logger:       log,
	}
	return rt, nil
}

func (rt *Runtime) buildStores(ctx context.Context, app *config.App, rdb *redis.Client, log *logrus.Logger) (*stores, error) {
	if app.Store == "memory" {
		log.Warn("using in-memory stores; sessions and tasks are lost on restart")
		return &stores{
			sessions: memory.NewSessionRepo(),
			tasks:    memory.NewTaskRepo(),
			reports:  memory.NewReportRepo(),
		}, nil
	}

	if err := config.InitMongo(); err != nil {
		return nil, fmt.Errorf("mongodb init: %w", err)
	}
	rt.closers = append(rt.closers, func() error { return config.CloseMongo(context.Background()) })
	if err := config.EnsureMongoIndexes(app.MongoDB); err != nil {
		return nil, fmt.Errorf("mongodb indexes: %w", err)
	}
	log.Info("MongoDB connected")

	if err := config.InitPostgres(); err != nil {
		return nil, fmt.Errorf("postgres init: %w", err)
	}
	rt.closers = append(rt.closers, config.ClosePostgres)
	if err := postgres.Migrate(config.PostgresDB.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	log.Info("PostgreSQL connected")

	sessions := repositories.NewCachedSessionRepo(
		mongorepo.NewSessionRepo(config.MongoClient.Database(app.MongoDB)),
		cache.NewRedisCache(rdb, "interview"),
		app.Interview.SessionCacheTTL,
		log,
	)
	return &stores{
		sessions: sessions,
		tasks:    postgres.NewTaskRepo(config.PostgresDB),
		reports:  postgres.NewReportRepo(config.PostgresDB),
	}, nil
}

func (rt *Runtime) buildGeneration(ctx context.Context, app *config.App, log *logrus.Logger) (generation.Client, error) {
	provider, err := llm.New(ctx, llm.Config{
		Provider:        app.AI.Provider,
		APIKey:          app.AI.GeminiAPIKey,
		Model:           app.AI.GeminiModel,
		ProjectID:       app.AI.VertexProjectID,
		Location:        app.AI.VertexLocation,
		CredentialsFile: app.AI.CredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	rt.closers = append(rt.closers, provider.Close)

	pm, err := prompts.NewManager()
	if err != nil {
		return nil, fmt.Errorf("prompts: %w", err)
	}
	log.WithField("provider", provider.Name()).Info("generation client ready")
	return generation.NewClient(provider, pm, generation.Timeouts{
		Questions: app.AI.QuestionTimeout,
		Score:     app.AI.ScoreTimeout,
		Report:    app.AI.ReportTimeout,
	}, log), nil
}

// buildFinalizer never fails startup: without speech credentials, tasks with
// audio answers fail and retry while text-only sessions still get reports.
func (rt *Runtime) buildFinalizer(ctx context.Context, app *config.App, log *logrus.Logger) media.Finalizer {
	f := &media.STTFinalizer{
		Bucket:   app.Media.Bucket,
		MaxBytes: app.Media.MaxBytes,
		Timeout:  app.Media.Timeout,
		Logger:   log,
	}

	if app.Media.Bucket != "" {
		g, err := storage.NewGCS(ctx, app.Media.Bucket, app.AI.CredentialsFile)
		if err != nil {
			log.WithError(err).Warn("cloud storage unavailable; audio upload disabled")
		} else {
			rt.closers = append(rt.closers, g.Close)
			f.Objects = g
			rt.Uploader = g
		}
	}

	sp, err := stt.NewGoogleSpeech(ctx, app.AI.CredentialsFile)
	if err != nil {
		log.WithError(err).Warn("speech provider unavailable; audio answers will not be transcribed")
		return f
	}
	rt.closers = append(rt.closers, sp.Close)
	f.STT = sp
	return f
}
