package routes

import (
	"net/http"

	"github.com/fusegraph/fusegraph/internal/server/middleware"
	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetDebtsHandler lists outstanding reconciliation debts for operator
// cleanup.
func GetDebtsHandler(c echo.Context) error {
	type debtsResponse struct {
		Message string                      `json:"message"`
		Debts   []common.ReconciliationDebt `json:"debts"`
	}

	ctx := c.Request().Context()
	debts := c.(*middleware.AppContext).App.Debts

	list, err := debts.List(ctx)
	if err != nil {
		logger.Error("[Debts] Failed to list debts", "err", err)
		return c.JSON(http.StatusInternalServerError, debtsResponse{
			Message: "Internal server error",
		})
	}
	if list == nil {
		list = []common.ReconciliationDebt{}
	}

	return c.JSON(http.StatusOK, debtsResponse{
		Message: "OK",
		Debts:   list,
	})
}
