package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/fusegraph/fusegraph/internal/server/middleware"
	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/engine"
	"github.com/fusegraph/fusegraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// QueryHandler answers one natural-language question with cited
// evidence.
func QueryHandler(c echo.Context) error {
	type queryFilters struct {
		NotBefore *time.Time `json:"not_before"`
		NotAfter  *time.Time `json:"not_after"`
		Sources   []string   `json:"sources"`
	}

	type queryRequest struct {
		Text    string       `json:"text" validate:"required"`
		Filters queryFilters `json:"filters"`
	}

	type queryResponse struct {
		Message string         `json:"message"`
		Answer  *engine.Answer `json:"answer,omitempty"`
	}

	data := new(queryRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	eng := c.(*middleware.AppContext).App.Engine

	answer, err := eng.Query(ctx, data.Text, common.Filters{
		NotBefore: data.Filters.NotBefore,
		NotAfter:  data.Filters.NotAfter,
		Sources:   data.Filters.Sources,
	})
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidFilter):
			return c.JSON(http.StatusBadRequest, queryResponse{
				Message: err.Error(),
			})
		case errors.Is(err, common.ErrInsufficientEvidence):
			return c.JSON(http.StatusUnprocessableEntity, queryResponse{
				Message: "Not enough evidence to answer this query",
			})
		default:
			logger.Error("[Query] Query failed", "err", err)
			return c.JSON(http.StatusInternalServerError, queryResponse{
				Message: "Internal server error",
			})
		}
	}

	return c.JSON(http.StatusOK, queryResponse{
		Message: "OK",
		Answer:  answer,
	})
}
