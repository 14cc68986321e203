package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/graphloom/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetGraphHandler returns all nodes and edges for visualization.
func GetGraphHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	view, err := app.Query.GetGraph(ctx)
	if err != nil {
		status := statusFor(err)
		logger.Error("[Server] Failed to load graph", "status", status, "err", err)
		return c.JSON(status, errorResponse{Error: messageFor(status)})
	}

	return c.JSON(http.StatusOK, view)
}
