package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	apikeydomain "github.com/smallbiznis/apicredits/internal/apikey/domain"
	"github.com/smallbiznis/apicredits/internal/config"
	creditdomain "github.com/smallbiznis/apicredits/internal/credit/domain"
	meteringdomain "github.com/smallbiznis/apicredits/internal/metering/domain"
	"github.com/smallbiznis/apicredits/internal/observability"
	obsmiddleware "github.com/smallbiznis/apicredits/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/apicredits/internal/observability/metrics"
	obstracing "github.com/smallbiznis/apicredits/internal/observability/tracing"
	"github.com/smallbiznis/apicredits/internal/payment/checkout"
	"github.com/smallbiznis/apicredits/internal/payment/webhook"
	"github.com/smallbiznis/apicredits/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
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
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger, shutdowner fx.Shutdowner) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
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
	engine      *gin.Engine
	cfg         config.Config
	creditSvc   creditdomain.Service
	apiKeySvc   apikeydomain.Service
	meteringSvc meteringdomain.Service
	checkoutSvc *checkout.Service
	webhookSvc  *webhook.Service
	packages    *config.PackageCatalogHolder
	limiter     *ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	CreditSvc   creditdomain.Service
	APIKeySvc   apikeydomain.Service
	MeteringSvc meteringdomain.Service
	CheckoutSvc *checkout.Service
	WebhookSvc  *webhook.Service
	Packages    *config.PackageCatalogHolder
	Limiter     *ratelimit.Limiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		creditSvc:   p.CreditSvc,
		apiKeySvc:   p.APIKeySvc,
		meteringSvc: p.MeteringSvc,
		checkoutSvc: p.CheckoutSvc,
		webhookSvc:  p.WebhookSvc,
		packages:    p.Packages,
		limiter:     p.Limiter,
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()
	svc.registerMeteredRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Provider callbacks carry no caller identity; the user comes from the
// signed event metadata.
func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/api/webhook", s.HandleStripeWebhook)
	s.engine.POST("/api/webhooks/stripe", s.HandleStripeWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.UserContext())
	{
		api.POST("/create-checkout", s.CheckoutRateLimit(), s.CreateCheckout)

		api.GET("/credits", s.GetCredits)
		api.POST("/credits", s.AddCredits)
		api.GET("/credits/packages", s.ListCreditPackages)

		api.GET("/keys", s.ListAPIKeys)
		api.POST("/keys", s.CreateAPIKey)
		api.DELETE("/keys", s.RevokeAPIKey)
		api.DELETE("/keys/:id", s.RevokeAPIKey)
		api.POST("/keys/:id/rotate", s.RotateAPIKey)

		api.GET("/history", s.ListHistory)
		api.GET("/usage", s.GetUsage)
	}
}

func (s *Server) registerMeteredRoutes() {
	v1 := s.engine.Group("/v1", s.APIKeyRequired(), s.MeteredRateLimit())
	{
		v1.POST("/requests", s.RecordRequest)
	}
}
