package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/macrolog/internal/audit"
	auditdomain "github.com/smallbiznis/macrolog/internal/audit/domain"
	"github.com/smallbiznis/macrolog/internal/auth/oauth"
	"github.com/smallbiznis/macrolog/internal/backup"
	"github.com/smallbiznis/macrolog/internal/catalog"
	catalogdomain "github.com/smallbiznis/macrolog/internal/catalog/domain"
	"github.com/smallbiznis/macrolog/internal/clock"
	"github.com/smallbiznis/macrolog/internal/config"
	"github.com/smallbiznis/macrolog/internal/observability"
	obsmiddleware "github.com/smallbiznis/macrolog/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/macrolog/internal/observability/metrics"
	obstracing "github.com/smallbiznis/macrolog/internal/observability/tracing"
	"github.com/smallbiznis/macrolog/internal/providers"
	"github.com/smallbiznis/macrolog/internal/ratelimit"
	"github.com/smallbiznis/macrolog/internal/session"
	"github.com/smallbiznis/macrolog/internal/tracker"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	catalog.Module,
	oauth.Module,
	backup.Module,
	session.Module,
	ratelimit.Module,
	providers.Module,
	tracker.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	clock      clock.Clock
	sessions   *session.Manager
	oauthsvc   oauth.Service
	catalogSvc catalogdomain.Service
	tracker    *tracker.Service
	goals      *config.GoalsHolder
	limiter    *ratelimit.Limiter
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Clock      clock.Clock
	Sessions   *session.Manager
	OAuthsvc   oauth.Service
	CatalogSvc catalogdomain.Service
	Tracker    *tracker.Service
	Goals      *config.GoalsHolder
	Limiter    *ratelimit.Limiter  `optional:"true"`
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		clock:      p.Clock,
		sessions:   p.Sessions,
		oauthsvc:   p.OAuthsvc,
		catalogSvc: p.CatalogSvc,
		tracker:    p.Tracker,
		goals:      p.Goals,
		limiter:    p.Limiter,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerSessionRoutes()
	svc.registerAuthRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerSessionRoutes() {
	r := s.engine.Group("/session")

	r.POST("", s.SessionCreateRateLimit(), s.CreateSession)
	r.GET("", s.SessionRequired(), s.GetSession)
	r.DELETE("", s.SessionRequired(), s.DeleteSession)
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth", s.SessionRequired())

	auth.GET("/authorize", s.Authorize)
	auth.GET("/callback", s.AuthCallback)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/foods", s.ListFoods)

	tracked := api.Group("", s.SessionRequired())
	{
		tracked.POST("/entries", s.WriteRateLimit(), s.RegisterEntry)
		tracked.GET("/entries", s.ListEntries)

		tracked.GET("/summary", s.GetSummary)
		tracked.GET("/summary/report", s.GetSummaryReport)

		tracked.POST("/day/close", s.WriteRateLimit(), s.CloseDay)

		tracked.GET("/backups", s.ListBackups)
	}
}
