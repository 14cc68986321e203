package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/graphloom/backend/internal/graphstore"
	"github.com/OFFIS-RIT/graphloom/backend/internal/queue"
	mid "github.com/OFFIS-RIT/graphloom/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/graphloom/backend/internal/storage"
	"github.com/OFFIS-RIT/graphloom/backend/internal/util"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/graph"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/logger"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/query"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("correlation_id", func(fl validator.FieldLevel) bool {
		return util.IsCorrelationID(fl.Field().String())
	})
	return v
}

// New builds the echo instance with middleware and routes for app.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: newValidator()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(util.GetEnvString("BODY_LIMIT", "64M")))

	RegisterRoutes(e)
	return e
}

// Init wires the graph store, pipeline and optional queue and object store
// from the environment and serves until SIGINT or SIGTERM.
func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, closeStore, err := graphstore.Open(ctx, graphstore.ConfigFromEnv())
	if err != nil {
		logger.Fatal("Failed to open graph store", "err", err)
	}
	defer closeStore()

	pipeline, err := graph.NewPipeline(graph.NewPipelineParams{
		Store:           s,
		ParallelUpserts: int(util.GetEnvNumeric("INGEST_PARALLEL_UPSERTS", 8)),
		MaxRetries:      int(util.GetEnvNumeric("INGEST_MAX_RETRIES", 3)),
	})
	if err != nil {
		logger.Fatal("Failed to create ingest pipeline", "err", err)
	}

	app := &mid.App{
		Pipeline:    pipeline,
		Query:       query.NewService(s),
		InlineLimit: int(util.GetEnvNumeric("INGEST_INLINE_LIMIT", 256*1024)),
	}

	if util.GetEnv("RABBITMQ_HOST") != "" {
		que, err := queue.Init()
		if err != nil {
			logger.Fatal("Failed to connect to queue", "err", err)
		}
		defer que.Close()
		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
			logger.Fatal("Failed to set up queues", "err", err)
		}
		app.Queue = queue.NewChannelPublisher(ch)
	} else {
		logger.Info("RABBITMQ_HOST not set, asynchronous ingestion disabled")
	}

	if bucket := util.GetEnv("AWS_BUCKET"); bucket != "" {
		client, err := storage.NewS3Client(ctx)
		if err != nil {
			logger.Fatal("Failed to create S3 client", "err", err)
		}
		app.Payloads = storage.NewObjectStore(client, bucket)
	}

	e := New(app)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
