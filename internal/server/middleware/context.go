package middleware

import (
	"context"

	"github.com/OFFIS-RIT/graphloom/backend/internal/queue"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/query"

	"github.com/labstack/echo/v4"
)

// Publisher hands a message to the ingest queue.
type Publisher interface {
	Publish(queueName string, data []byte) error
}

// PayloadStore keeps request bodies too large to travel inline.
type PayloadStore interface {
	PutFile(ctx context.Context, key string, data []byte) (string, error)
}

// App holds the long-lived dependencies shared by all handlers. Queue and
// Payloads are optional; asynchronous ingestion is disabled without Queue.
type App struct {
	Pipeline queue.Ingester
	Query    query.GraphQueryClient
	Queue    Publisher
	Payloads PayloadStore

	// InlineLimit is the largest body in bytes that is queued inline when
	// Payloads is set.
	InlineLimit int
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
