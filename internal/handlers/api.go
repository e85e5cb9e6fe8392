package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/receivr-io/receivr/internal/models"
	"github.com/receivr-io/receivr/internal/registration"
	"github.com/receivr-io/receivr/internal/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer("github.com/receivr-io/receivr/internal/handlers")
}

// Registrar runs the device registration protocol.
type Registrar interface {
	Register(ctx context.Context, subject string, request models.RegisterDevice) (*registration.Result, error)
}

// ReadinessCheck reports whether a backing service can take requests.
type ReadinessCheck func(ctx context.Context) error

type API struct {
	logger    *zap.SugaredLogger
	registrar Registrar
	readiness map[string]ReadinessCheck
}

func NewAPI(
	logger *zap.SugaredLogger,
	registrar Registrar,
	readiness map[string]ReadinessCheck,
) *API {
	return &API{
		logger:    logger,
		registrar: registrar,
		readiness: readiness,
	}
}

func (api *API) Logger(ctx context.Context) *zap.SugaredLogger {
	return util.WithTrace(ctx, api.logger)
}

func (api *API) SendInternalServerError(c *gin.Context, err error) {
	SendInternalServerError(c, api.logger, err)
}

func SendInternalServerError(c *gin.Context, logger *zap.SugaredLogger, err error) {
	ctx := c.Request.Context()
	util.WithTrace(ctx, logger).Errorw("internal server error", "error", err)

	c.JSON(http.StatusInternalServerError, models.InternalServerError{
		BaseError: models.BaseError{
			Error: "internal server error",
		},
		TraceId: util.TraceID(ctx),
	})
}

// GetCurrentSubject returns the subject the authenticating gateway verified, or "".
func (api *API) GetCurrentSubject(c *gin.Context) string {
	return c.GetString(gin.AuthUserKey)
}
