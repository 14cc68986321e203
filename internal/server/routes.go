package server

import (
	"github.com/OFFIS-RIT/graphloom/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	// Visualization clients predate the /api prefix.
	e.GET("/graph_data", routes.GetGraphHandler)

	apiRoutes := e.Group("/api")
	apiRoutes.GET("/graph", routes.GetGraphHandler)
	apiRoutes.POST("/ingest", routes.PostIngestHandler)
}
