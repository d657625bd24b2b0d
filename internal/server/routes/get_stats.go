package routes

import (
	"net/http"

	"github.com/fusegraph/fusegraph/internal/server/middleware"
	"github.com/fusegraph/fusegraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetGraphStatsHandler reports the size of the knowledge graph.
func GetGraphStatsHandler(c echo.Context) error {
	type statsResponse struct {
		Message string `json:"message"`
		Nodes   int64  `json:"nodes"`
		Edges   int64  `json:"edges"`
	}

	ctx := c.Request().Context()
	graph := c.(*middleware.AppContext).App.Graph

	stats, err := graph.Stats(ctx)
	if err != nil {
		logger.Error("[Graph] Failed to query graph stats", "err", err)
		return c.JSON(http.StatusInternalServerError, statsResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, statsResponse{
		Message: "OK",
		Nodes:   stats.Nodes,
		Edges:   stats.Edges,
	})
}
