package server

import (
	"github.com/fusegraph/fusegraph/internal/server/middleware"
	"github.com/fusegraph/fusegraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Query routes
	apiRoutes.POST("/query", routes.QueryHandler, middleware.RequirePermission("query.run"))

	// Ingestion routes
	apiRoutes.POST("/ingest", routes.IngestHandler, middleware.RequirePermission("ingest.submit"))
	apiRoutes.GET("/debts", routes.GetDebtsHandler, middleware.RequirePermission("ingest.view:debt"))

	// Graph routes
	apiRoutes.GET("/graph/stats", routes.GetGraphStatsHandler, middleware.RequirePermission("graph.view:stats"))
}
