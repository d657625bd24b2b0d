package main

import (
	"github.com/fusegraph/fusegraph/internal/server"
	"github.com/fusegraph/fusegraph/internal/util"
	"github.com/fusegraph/fusegraph/pkg/logger"
	"github.com/fusegraph/fusegraph/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
