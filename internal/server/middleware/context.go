package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/fusegraph/fusegraph/pkg/engine"
	"github.com/fusegraph/fusegraph/pkg/graphstore"
	"github.com/fusegraph/fusegraph/pkg/ingest"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// App bundles the shared dependencies handlers reach through the
// request context.
type App struct {
	Queue  *amqp091.Channel
	Key    *keyfunc.Keyfunc
	Engine *engine.Engine
	Graph  graphstore.Store
	Debts  ingest.DebtStore

	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
