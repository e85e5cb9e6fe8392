package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/receivr-io/receivr/internal/alerts"
	"github.com/receivr-io/receivr/internal/credentials"
	"github.com/receivr-io/receivr/internal/database"
	"github.com/receivr-io/receivr/internal/email"
	"github.com/receivr-io/receivr/internal/handlers"
	"github.com/receivr-io/receivr/internal/registration"
	"github.com/receivr-io/receivr/internal/registry"
	"github.com/receivr-io/receivr/internal/routers"
	"github.com/receivr-io/receivr/internal/users"
	"github.com/receivr-io/receivr/internal/util"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.18.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	grpccredentials "google.golang.org/grpc/credentials"
	"gorm.io/gorm"
)

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer("apiserver")
}

func main() {
	app := &cli.Command{
		Name: "apiserver",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Value:   false,
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("RCVAPI_DEBUG"),
			},
			&cli.StringFlag{
				Name:    "listen",
				Value:   "0.0.0.0:8080",
				Usage:   "The address and port to listen for requests on",
				Sources: cli.EnvVars("RCVAPI_LISTEN"),
			},
			&cli.StringFlag{
				Name:    "environment",
				Value:   "development",
				Usage:   "Deployment environment, reported in traces and operator alerts",
				Sources: cli.EnvVars("RCVAPI_ENVIRONMENT"),
			},
			&cli.StringFlag{
				Name:    "db-host",
				Value:   "apiserver-db",
				Usage:   "Database host name",
				Sources: cli.EnvVars("RCVAPI_DB_HOST"),
			},
			&cli.StringFlag{
				Name:    "db-port",
				Value:   "5432",
				Usage:   "Database port",
				Sources: cli.EnvVars("RCVAPI_DB_PORT"),
			},
			&cli.StringFlag{
				Name:    "db-user",
				Value:   "apiserver",
				Usage:   "Database user",
				Sources: cli.EnvVars("RCVAPI_DB_USER"),
			},
			&cli.StringFlag{
				Name:    "db-password",
				Value:   "secret",
				Usage:   "Database password",
				Sources: cli.EnvVars("RCVAPI_DB_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "db-name",
				Value:   "apiserver",
				Usage:   "Database name",
				Sources: cli.EnvVars("RCVAPI_DB_NAME"),
			},
			&cli.StringFlag{
				Name:    "db-sslmode",
				Value:   "disable",
				Usage:   "Database ssl mode",
				Sources: cli.EnvVars("RCVAPI_DB_SSLMODE"),
			},
			&cli.StringFlag{
				Name:    "redis-server",
				Usage:   "Redis host:port address",
				Value:   "redis:6379",
				Sources: cli.EnvVars("RCVAPI_REDIS_SERVER"),
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database to be selected after connecting to the server.",
				Value:   1,
				Sources: cli.EnvVars("RCVAPI_REDIS_DB"),
			},
			&cli.StringFlag{
				Name:    "credential-store",
				Usage:   "Where device credentials are kept: redis or memory",
				Value:   "redis",
				Sources: cli.EnvVars("RCVAPI_CREDENTIAL_STORE"),
			},
			&cli.StringFlag{
				Name:    "ca-cert",
				Usage:   "Certificate authority cert",
				Sources: cli.EnvVars("RCVAPI_CA_CERT"),
			},
			&cli.StringFlag{
				Name:    "ca-key",
				Usage:   "Certificate authority key",
				Sources: cli.EnvVars("RCVAPI_CA_KEY"),
			},
			&cli.StringFlag{
				Name:    "device-endpoint",
				Usage:   "Endpoint devices connect to with their issued credential",
				Value:   "devices.receivr.local:8883",
				Sources: cli.EnvVars("RCVAPI_DEVICE_ENDPOINT"),
			},
			&cli.StringFlag{
				Name:    "policy-name",
				Usage:   "Authorization policy attached to every device credential",
				Value:   "receivr-device",
				Sources: cli.EnvVars("RCVAPI_POLICY_NAME"),
			},
			&cli.StringFlag{
				Name:    "identity-header",
				Usage:   "Request header carrying the authenticated caller subject",
				Value:   routers.DefaultIdentityHeader,
				Sources: cli.EnvVars("RCVAPI_IDENTITY_HEADER"),
			},
			&cli.StringFlag{
				Name:    "support-url",
				Usage:   "Support page linked from registration conflict responses",
				Value:   "https://support.receivr.io/registration",
				Sources: cli.EnvVars("RCVAPI_SUPPORT_URL"),
			},
			&cli.IntFlag{
				Name:    "max-concurrent-registrations",
				Usage:   "Registrations processed at once, further requests wait",
				Value:   32,
				Sources: cli.EnvVars("RCVAPI_MAX_CONCURRENT_REGISTRATIONS"),
			},
			&cli.IntFlag{
				Name:    "retry-attempts",
				Usage:   "Retries of a failed credential authority call",
				Value:   3,
				Sources: cli.EnvVars("RCVAPI_RETRY_ATTEMPTS"),
			},
			&cli.DurationFlag{
				Name:    "retry-wait",
				Usage:   "Initial wait between credential authority retries",
				Value:   100 * time.Millisecond,
				Sources: cli.EnvVars("RCVAPI_RETRY_WAIT"),
			},
			&cli.StringFlag{
				Name:    "smtp-host-port",
				Usage:   "SMTP server host:port address",
				Sources: cli.EnvVars("RCVAPI_SMTP_HOST_PORT"),
			},
			&cli.StringFlag{
				Name:    "smtp-user",
				Usage:   "SMTP server user name",
				Sources: cli.EnvVars("RCVAPI_SMTP_USER"),
			},
			&cli.StringFlag{
				Name:    "smtp-password",
				Usage:   "SMTP server password",
				Sources: cli.EnvVars("RCVAPI_SMTP_PASSWORD"),
			},
			&cli.BoolFlag{
				Name:    "smtp-tls",
				Usage:   "Use TLS to connect to the SMTP server",
				Sources: cli.EnvVars("RCVAPI_SMTP_TLS"),
			},
			&cli.StringFlag{
				Name:    "smtp-from",
				Usage:   "The from address to use for emails",
				Value:   "no-reply@receivr.io",
				Sources: cli.EnvVars("RCVAPI_SMTP_FROM"),
			},
			&cli.StringSliceFlag{
				Name:    "alert-recipients",
				Usage:   "Operator addresses that receive credential cleanup alerts",
				Sources: cli.EnvVars("RCVAPI_ALERT_RECIPIENTS"),
			},
			&cli.BoolFlag{
				Name:    "trace-insecure",
				Value:   false,
				Usage:   "Set OTLP endpoint to insecure mode",
				Sources: cli.EnvVars("RCVAPI_TRACE_INSECURE"),
			},
			&cli.StringFlag{
				Name:    "trace-endpoint",
				Value:   "",
				Usage:   "OTLP endpoint for trace data",
				Sources: cli.EnvVars("RCVAPI_TRACE_ENDPOINT_OTLP"),
			},
		},

		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, _ = signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)
			ctx, span := tracer.Start(ctx, "Run")
			defer span.End()
			withLoggerAndDB(ctx, command, func(logger *zap.Logger, db *gorm.DB) {
				pprof_init(ctx, command, logger)

				if err := database.Migrations().Migrate(ctx, db); err != nil {
					log.Fatal(err)
				}

				devices, err := registry.NewGormRegistry(db)
				if err != nil {
					log.Fatal(err)
				}

				redisClient := redis.NewClient(&redis.Options{
					Addr: command.String("redis-server"),
					DB:   int(command.Int("redis-db")),
				})
				defer util.IgnoreError(redisClient.Close)

				authority, err := newAuthority(command, logger.Sugar(), redisClient)
				if err != nil {
					log.Fatal(err)
				}

				smtpServer := email.SmtpServer{
					HostPort: command.String("smtp-host-port"),
					User:     command.String("smtp-user"),
					Password: command.String("smtp-password"),
				}
				if command.Bool("smtp-tls") {
					smtpServer.Tls = &tls.Config{MinVersion: tls.VersionTLS12}
				}
				sink := alerts.MultiSink{
					alerts.NewLogSink(logger.Sugar()),
					alerts.NewRedisStreamSink(redisClient, alerts.DefaultStream, 10000),
				}
				if smtpServer.HostPort != "" {
					sink = append(sink, alerts.NewEmailSink(smtpServer, command.String("smtp-from"), command.StringSlice("alert-recipients")))
				}

				metrics := registration.NewMetrics(prometheus.DefaultRegisterer)
				compensator := registration.NewCompensator(authority, sink, logger.Sugar(), command.String("environment"), metrics)
				coordinator := registration.NewCoordinator(registration.Dependencies{
					Registry:    devices,
					Authority:   authority,
					Callers:     users.NewResolver(db),
					Compensator: compensator,
					Logger:      logger.Sugar(),
					Metrics:     metrics,
					SupportURL:  command.String("support-url"),
				})

				readiness := map[string]handlers.ReadinessCheck{
					"database": func(ctx context.Context) error {
						sqlDB, err := db.DB()
						if err != nil {
							return err
						}
						return sqlDB.PingContext(ctx)
					},
				}
				if command.String("credential-store") == "redis" {
					readiness["redis"] = func(ctx context.Context) error {
						return redisClient.Ping(ctx).Err()
					}
				}

				api := handlers.NewAPI(logger.Sugar(), coordinator, readiness)
				router := routers.NewAPIRouter(routers.APIRouterOptions{
					Logger:                     logger.Sugar(),
					Api:                        api,
					IdentityHeader:             command.String("identity-header"),
					MaxConcurrentRegistrations: int(command.Int("max-concurrent-registrations")),
				})

				httpServer := &http.Server{
					Addr:              command.String("listen"),
					Handler:           router,
					ReadTimeout:       5 * time.Second,
					ReadHeaderTimeout: 5 * time.Second,
					WriteTimeout:      30 * time.Second,
				}
				defer util.IgnoreError(httpServer.Close)

				wg := &sync.WaitGroup{}
				serveErrors := make(chan error, 1)
				util.GoWithWaitGroup(wg, func() {
					logger.Sugar().Infow("listening", "address", httpServer.Addr)
					if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						serveErrors <- err
					}
				})

				// Wait for a shutdown signal or a server error
				select {
				case err = <-serveErrors:
				case <-ctx.Done():
				}

				// In flight registrations get 5 seconds to finish...
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
					logger.Sugar().Warnw("graceful shutdown did not complete", "error", shutdownErr)
				}
				wg.Wait()

				if err != nil {
					log.Fatal(err)
				}
			})
			return nil
		},
	}
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "rollback",
		Usage: "Rollback the last database migration",
		Action: func(ctx context.Context, command *cli.Command) error {

			withLoggerAndDB(ctx, command, func(logger *zap.Logger, db *gorm.DB) {
				if err := database.Migrations().RollbackLast(ctx, db); err != nil {
					log.Fatal(err)
				}
			})
			return nil
		},
	})

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newAuthority(command *cli.Command, logger *zap.SugaredLogger, client redis.UniversalClient) (credentials.Authority, error) {
	ca, err := loadCA(command, logger)
	if err != nil {
		return nil, err
	}
	signer := credentials.NewSigner(ca, 0)
	endpoint := command.String("device-endpoint")

	var authority credentials.Authority
	switch store := command.String("credential-store"); store {
	case "redis":
		authority = credentials.NewRedisAuthority(client, signer, endpoint, command.String("policy-name"))
	case "memory":
		logger.Warn("device credentials are kept in memory and will be lost on restart")
		authority = credentials.NewMemoryAuthority(signer, endpoint)
	default:
		return nil, fmt.Errorf("invalid --credential-store %q: must be redis or memory", store)
	}
	return credentials.NewRetryingAuthority(authority, logger, command.Duration("retry-wait"), int(command.Int("retry-attempts"))), nil
}

func loadCA(command *cli.Command, logger *zap.SugaredLogger) (credentials.CertificateKeyPair, error) {
	if command.String("ca-cert") != "" && command.String("ca-key") != "" {
		ca, err := credentials.ParseCertificateKeyPair([]byte(command.String("ca-cert")), []byte(command.String("ca-key")))
		if err != nil {
			return ca, fmt.Errorf("invalid --ca-cert or --ca-key values: %w", err)
		}
		return ca, nil
	}
	logger.Warn("no --ca-cert and --ca-key configured, generating an ephemeral development CA")
	ca, _, err := credentials.GenerateCA("receivr development CA", 365*24*time.Hour)
	return ca, err
}

func getLogger(command *cli.Command) *zap.Logger {
	var logger *zap.Logger
	var err error
	// set the log level
	if command.Bool("debug") {
		logConfig := zap.NewProductionConfig()
		logConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		logger, err = logConfig.Build()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal(err)
	}
	return logger
}

func withLoggerAndDB(ctx context.Context, command *cli.Command, f func(logger *zap.Logger, db *gorm.DB)) {
	logger := getLogger(command)
	defer util.IgnoreError(logger.Sync)
	cleanup := initTracer(logger.Sugar(), command.Bool("trace-insecure"), command.String("trace-endpoint"), command.String("environment"))
	defer func() {
		if cleanup == nil {
			return
		}
		if err := cleanup(ctx); err != nil {
			logger.Error(err.Error())
		}
	}()

	db, _, err := database.NewDatabase(
		ctx,
		logger.Sugar(),
		command.String("db-host"),
		command.String("db-user"),
		command.String("db-password"),
		command.String("db-name"),
		command.String("db-port"),
		command.String("db-sslmode"),
	)
	if err != nil {
		log.Fatal(err)
	}

	f(logger, db)
}

func initTracer(logger *zap.SugaredLogger, insecure bool, collector string, environment string) func(context.Context) error {
	if collector == "" {
		logger.Info("No collector endpoint configured")
		otel.SetTracerProvider(
			sdktrace.NewTracerProvider(
				sdktrace.WithSampler(sdktrace.AlwaysSample()),
			),
		)
		return nil
	}
	secureOption := otlptracegrpc.WithTLSCredentials(grpccredentials.NewClientTLSFromCert(nil, ""))
	if insecure {
		secureOption = otlptracegrpc.WithInsecure()
	}
	exporter, err := otlptrace.New(
		context.Background(),
		otlptracegrpc.NewClient(
			secureOption,
			otlptracegrpc.WithEndpoint(collector),
		),
	)
	if err != nil {
		logger.Errorf("Unable to create open telemetry exporter: %s", err.Error())
		return nil
	}

	if environment == "" {
		environment = "development"
	}

	otel.SetTracerProvider(
		sdktrace.NewTracerProvider(
			sdktrace.WithResource(resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName("apiserver"),
				semconv.DeploymentEnvironment(environment),
			)),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithBatcher(exporter),
		),
	)
	return exporter.Shutdown
}
