package server

import (
	"coinbazar/internal/bazarapi"
	"coinbazar/internal/logger"
	"coinbazar/internal/telegram"
)

// StartBot begins long polling for the chat commands. It returns nil without
// error when no token is configured.
func StartBot(app *bazarapi.App, cfg Config) (*telegram.Bot, error) {
	if cfg.TelegramToken == "" {
		logger.Infof("TELEGRAM_TOKEN not set, chat bot disabled")
		return nil, nil
	}
	bot, err := telegram.NewBot(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	commands := telegram.NewCommands(app.Ledger, app.Options.DashboardURL, bot, app.Pool)
	if err := bot.Start(commands); err != nil {
		return nil, err
	}
	return bot, nil
}
