package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"coinbazar/internal/bazarapi"
	"coinbazar/internal/logger"
	"coinbazar/internal/server"
)

func main() {
	server.ConfigLoad()
	cfg := server.GlobalConfig

	app := bazarapi.Init(cfg.Options())
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Ledger.EnsureHealthCheck(ctx); err != nil {
		logger.Errorf("health check marker: %v", err)
	}

	bot, err := server.StartBot(app, cfg)
	if err != nil {
		logger.Errorf("telegram bot: %v", err)
	}
	if bot != nil {
		defer bot.Stop()
	}

	jobs, err := server.StartJobs(app, ctx.Done())
	if err != nil {
		logger.Errorf("jobs: %v", err)
	} else {
		defer jobs.Stop()
	}

	if err := server.ApiInit(ctx, app, cfg); err != nil {
		logger.Errorf("http server: %v", err)
	}
	logger.Infof("shutting down")
}
