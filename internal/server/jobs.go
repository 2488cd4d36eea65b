package server

import (
	"context"
	"time"

	"coinbazar/internal/app"
	"coinbazar/internal/bazarapi"
	"coinbazar/internal/logger"

	"github.com/robfig/cron/v3"
)

// StartJobs schedules the periodic maintenance work. Stop the returned cron
// on shutdown.
func StartJobs(a *bazarapi.App, stop <-chan struct{}) (*cron.Cron, error) {
	go app.DoEvery(time.Minute, stop, func(time.Time) {
		a.Conns.Prune()
	})

	c := cron.New()
	if _, err := c.AddFunc("@every 10m", func() { healthJob(a) }); err != nil {
		return nil, err
	}
	if _, err := c.AddFunc("@hourly", func() { statsJob(a) }); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func healthJob(a *bazarapi.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Ledger.EnsureHealthCheck(ctx); err != nil {
		logger.Errorf("health check marker: %v", err)
	}
}

func statsJob(a *bazarapi.App) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_, stats, err := a.Ledger.ListUsers(ctx)
	if err != nil {
		logger.Errorf("stats job: %v", err)
		return
	}
	logger.Infof("users: %d, coins: %d, balance: $%.4f, earned: $%.4f, connections: %d",
		stats.TotalUsers, stats.TotalCoins, stats.TotalBalance, stats.TotalEarned, a.Conns.Len())
}
