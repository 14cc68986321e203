package routes

import (
	"fmt"
	"io"
	"net/http"

	"github.com/OFFIS-RIT/graphloom/backend/internal/queue"
	"github.com/OFFIS-RIT/graphloom/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/graphloom/backend/internal/util"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/graph"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

const CorrelationHeader = "X-Correlation-ID"

// PostIngestHandler ingests extractor records. The body is a list of
// records, a single record or {"records": [...]}.
//
// With ?async=true the records are queued for the worker and 202 is
// returned with the correlation id. Otherwise the ingest result is returned.
func PostIngestHandler(c echo.Context) error {
	type ingestParams struct {
		Async         bool
		CorrelationID string `validate:"omitempty,correlation_id"`
	}

	type queuedResponse struct {
		Message       string `json:"message"`
		CorrelationID string `json:"correlation_id"`
		ObjectKey     string `json:"object_key,omitempty"`
	}

	params := new(ingestParams)
	params.CorrelationID = c.Request().Header.Get(CorrelationHeader)
	if err := echo.QueryParamsBinder(c).Bool("async", &params.Async).BindError(); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request params"})
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}
	records, err := graph.DecodeRecords(body)
	if err != nil {
		logger.Debug("[Server] Rejected ingest body", "err", err)
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	correlationID := params.CorrelationID
	if correlationID == "" {
		correlationID = util.NewCorrelationID()
	}
	c.Response().Header().Set(CorrelationHeader, correlationID)

	if !params.Async {
		result, err := app.Pipeline.Ingest(ctx, records)
		if err != nil {
			status := statusFor(err)
			logger.Error("[Server] Ingest failed", "correlation_id", correlationID, "status", status, "err", err)
			return c.JSON(status, errorResponse{Error: messageFor(status)})
		}
		return c.JSON(http.StatusOK, result)
	}

	if app.Queue == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "Asynchronous ingestion is not configured"})
	}

	var msg []byte
	var objectKey string
	if app.Payloads != nil && len(body) > app.InlineLimit {
		objectKey, err = app.Payloads.PutFile(ctx, fmt.Sprintf("ingest/%s.json", correlationID), body)
		if err == nil {
			msg, err = queue.NewObjectIngestMsg(correlationID, objectKey)
		}
	} else {
		msg, err = queue.NewIngestMsg(correlationID, records)
	}
	if err == nil {
		err = app.Queue.Publish(queue.IngestQueue, msg)
	}
	if err != nil {
		logger.Error("[Server] Failed to queue ingest", "correlation_id", correlationID, "err", err)
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "Failed to queue records"})
	}

	logger.Info("[Server] Queued ingest", "correlation_id", correlationID, "records", len(records), "object_key", objectKey)
	return c.JSON(http.StatusAccepted, queuedResponse{
		Message:       "Records queued",
		CorrelationID: correlationID,
		ObjectKey:     objectKey,
	})
}
