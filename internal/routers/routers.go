package routers

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/receivr-io/receivr/internal/handlers"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const name = "github.com/receivr-io/receivr/internal/routers"

type APIRouterOptions struct {
	Logger         *zap.SugaredLogger
	Api            *handlers.API
	IdentityHeader string
	// MaxConcurrentRegistrations bounds in flight registrations; 0 means unbounded.
	MaxConcurrentRegistrations int
}

func NewAPIRouter(o APIRouterOptions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	loggerMiddleware := ginzap.GinzapWithConfig(o.Logger.Desugar(), &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{
				zap.String("traceID", trace.SpanFromContext(c.Request.Context()).SpanContext().TraceID().String()),
			}
		},
	})

	r.Use(otelgin.Middleware(name, otelgin.WithPropagators(
		propagation.TraceContext{},
	)))
	r.Use(ginzap.RecoveryWithZap(o.Logger.Desugar(), true))

	newPrometheus().Use(r)

	api := r.Group("/api", loggerMiddleware, TrustForwardedUser(o.Logger, o.IdentityHeader))
	{
		register := []gin.HandlerFunc{o.Api.RegisterDevice}
		if o.MaxConcurrentRegistrations > 0 {
			register = append([]gin.HandlerFunc{LimitConcurrency(NewLimiter(o.MaxConcurrentRegistrations))}, register...)
		}
		api.POST("/devices/register", register...)
	}

	// Don't log the health/readiness checks.
	private := r.Group("/private")
	{
		private.GET("/live", o.Api.Live)
		private.GET("/ready", o.Api.Ready)
	}

	return r
}

func newPrometheus() *ginprometheus.Prometheus {
	p := ginprometheus.NewPrometheus("receivr_api")
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		if route := c.FullPath(); route != "" {
			return route
		}
		return "unmatched"
	}
	return p
}
