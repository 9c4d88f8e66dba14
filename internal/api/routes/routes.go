package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoointerview/internal/api/handlers"
	"github.com/yoockh/yoointerview/internal/api/middleware"
	"github.com/yoockh/yoointerview/internal/metrics"
)

type Deps struct {
	Interview *handlers.InterviewHandler
	Admin     *handlers.AdminHandler
	WS        *handlers.WSHandler

	// Auth authenticates every route except /ping and /metrics.
	Auth gin.HandlerFunc
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(metrics.GinMiddleware())

	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	auth := r.Group("/")
	auth.Use(d.Auth)

	iv := auth.Group("/interviews")
	iv.POST("", d.Interview.Start)
	iv.GET("/:session_id", d.Interview.Get)
	iv.PUT("/:session_id/profile", d.Interview.CollectInfo)
	iv.POST("/:session_id/start", d.Interview.Enter)
	iv.POST("/:session_id/rounds/next", d.Interview.NextRound)
	iv.POST("/:session_id/answer", d.Interview.Answer)
	iv.POST("/:session_id/answer/audio", d.Interview.AnswerAudio)
	iv.POST("/:session_id/skip", d.Interview.Skip)
	iv.POST("/:session_id/end", d.Interview.End)
	iv.GET("/:session_id/report", d.Interview.Report)

	// WebSocket
	if d.WS != nil {
		auth.GET("/ws/interviews/:session_id/analysis", d.WS.AnalysisStatus)
	}

	admin := auth.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/tasks", d.Admin.ListTasks)
	admin.GET("/tasks/:task_id", d.Admin.GetTask)
	admin.POST("/tasks/:task_id/retry", d.Admin.RetryTask)
	admin.GET("/queue/stats", d.Admin.QueueStats)
	admin.POST("/queue/recover", d.Admin.Recover)
	admin.GET("/sessions/:session_id", d.Admin.GetSession)
	admin.POST("/sessions/:session_id/regenerate", d.Admin.Regenerate)
	admin.POST("/sessions/:session_id/fail", d.Admin.FailSession)
	admin.POST("/sessions/evict", d.Admin.EvictSessions)
}
