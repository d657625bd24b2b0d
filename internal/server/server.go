package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fusegraph/fusegraph/internal/app"
	"github.com/fusegraph/fusegraph/internal/queue"
	mid "github.com/fusegraph/fusegraph/internal/server/middleware"
	"github.com/fusegraph/fusegraph/internal/util"
	"github.com/fusegraph/fusegraph/pkg/engine"
	"github.com/fusegraph/fusegraph/pkg/gen"
	genoai "github.com/fusegraph/fusegraph/pkg/gen/openai"
	"github.com/fusegraph/fusegraph/pkg/link"
	"github.com/fusegraph/fusegraph/pkg/logger"

	"github.com/MicahParks/keyfunc/v3"
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

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	jwksUrl := util.GetEnv("AUTH_URL") + "/jwks"
	k, err := keyfunc.NewDefault([]string{jwksUrl})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	gateway, err := app.NewEmbedGateway()
	if err != nil {
		logger.Fatal("Failed to create embedding gateway", "err", err)
	}

	stores, err := app.NewStores(ctx, gateway.Dimension())
	if err != nil {
		logger.Fatal("Failed to create stores", "err", err)
	}
	defer stores.Close()

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}

	if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	cfg := engine.ConfigFromEnv()

	var classifier engine.IntentClassifier
	if util.GetEnv("AI_CHAT_KEY") != "" {
		classifier, err = engine.NewChatClassifier(engine.NewChatClassifierParams{
			Model:   util.GetEnv("AI_CHAT_MODEL"),
			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),
		})
		if err != nil {
			logger.Fatal("Failed to create chat classifier", "err", err)
		}
	}

	var generator gen.Generator
	if util.GetEnv("AI_CHAT_KEY") != "" {
		generator, err = genoai.NewChatGenerator(genoai.NewChatGeneratorParams{
			Model:   util.GetEnv("AI_CHAT_MODEL"),
			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),
		})
		if err != nil {
			logger.Fatal("Failed to create chat generator", "err", err)
		}
	}

	resolver := link.NewLexicalResolver(stores.Graph, 0)
	planner := engine.NewPlanner(gateway, classifier, cfg)
	retriever := engine.NewRetriever(stores.Index, stores.Graph, resolver, cfg)
	eng := engine.New(planner, retriever, generator, cfg)

	masterAPIKey := util.GetEnv("MASTER_API_KEY")
	masterUserID, _ := strconv.ParseInt(util.GetEnv("MASTER_USER_ID"), 10, 64)
	masterUserRole := util.GetEnv("MASTER_USER_ROLE")

	e.Use(mid.AppContextMiddleware(&mid.App{
		Queue:  ch,
		Key:    &k,
		Engine: eng,
		Graph:  stores.Graph,
		Debts:  stores.Debts,

		MasterAPIKey:   masterAPIKey,
		MasterUserID:   masterUserID,
		MasterUserRole: masterUserRole,
	}))
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
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
