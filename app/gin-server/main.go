package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yoockh/yoointerview/config"
	"github.com/yoockh/yoointerview/internal/api/handlers"
	"github.com/yoockh/yoointerview/internal/api/middleware"
	"github.com/yoockh/yoointerview/internal/api/routes"
	"github.com/yoockh/yoointerview/internal/bootstrap"
	"github.com/yoockh/yoointerview/internal/logger"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	if err := run(log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(log *logrus.Logger) error {
	app, err := config.LoadApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Build(ctx, app, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.WithError(err).Warn("shutdown: close connections")
		}
	}()

	// tasks left queued or leased by a previous process
	if n, err := rt.Analysis.Recover(ctx); err != nil {
		log.WithError(err).Warn("analysis recovery failed")
	} else if n > 0 {
		log.WithField("requeued", n).Info("analysis tasks recovered")
	}

	if err := rt.Janitor.Start(); err != nil {
		return err
	}
	defer rt.Janitor.Stop()

	var status handlers.StatusSubscriber
	if rt.Status != nil {
		status = rt.Status
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Interview: handlers.NewInterviewHandler(rt.Interview, rt.Analysis, rt.Uploader),
		Admin:     handlers.NewAdminHandler(rt.Analysis, rt.Interview),
		WS:        handlers.NewWSHandler(rt.Interview, rt.Analysis, status),
		Auth: middleware.JWTAuth(middleware.JWTConfig{
			Secret:   app.JWTSecret,
			Issuer:   app.JWTIssuer,
			Audience: app.JWTAudience,
		}),
	})

	srv := &http.Server{
		Addr:              ":" + app.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.Workers.Run(gctx)
	})
	g.Go(func() error {
		log.WithField("port", app.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
