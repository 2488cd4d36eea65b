package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"coinbazar/internal/logger"
	"coinbazar/internal/model"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
)

// Bot is the long-polling runtime that feeds chat commands into Commands.
type Bot struct {
	Api      *gotgbot.Bot
	commands *Commands
	updater  *ext.Updater
}

func NewBot(token string) (*Bot, error) {
	api, err := gotgbot.NewBot(token, nil)
	if err != nil {
		return nil, err
	}

	return &Bot{
		Api: api,
	}, nil
}

// Notify sends an HTML message to chatID.
func (b *Bot) Notify(_ context.Context, chatID int64, text string) error {
	_, err := b.Api.SendMessage(chatID, text, &gotgbot.SendMessageOpts{ParseMode: ParseModeHTML})
	return err
}

// Start registers the command handlers and begins polling in the background.
func (b *Bot) Start(commands *Commands) error {
	b.commands = commands

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(_ *gotgbot.Bot, _ *ext.Context, err error) ext.DispatcherAction {
			logger.Errorf("telegram update failed: %v", err)
			return ext.DispatcherActionNoop
		},
		Panic: func(_ *gotgbot.Bot, _ *ext.Context, r interface{}) {
			logger.Errorf("telegram handler panicked: %v", r)
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	dispatcher.AddHandler(handlers.NewCommand("start", b.onStart))
	dispatcher.AddHandler(handlers.NewCommand("addbalance", b.onAddBalance))
	dispatcher.AddHandler(handlers.NewCommand("profile", b.onProfile))
	dispatcher.AddHandler(handlers.NewCommand("resetuser", b.onResetUser))

	b.updater = ext.NewUpdater(dispatcher, nil)
	err := b.updater.StartPolling(b.Api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &gotgbot.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &gotgbot.RequestOpts{
				Timeout: 10 * time.Second,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("start polling: %w", err)
	}
	logger.Infof("telegram bot @%s polling", b.Api.User.Username)
	return nil
}

func (b *Bot) Stop() {
	if b.updater == nil {
		return
	}
	if err := b.updater.Stop(); err != nil {
		logger.Errorf("telegram updater stop: %v", err)
	}
}

// commandArgs splits the text after the command on single spaces.
func commandArgs(text string) []string {
	parts := strings.Split(strings.TrimSpace(text), " ")
	args := make([]string, 0, len(parts))
	for _, p := range parts[1:] {
		if p != "" {
			args = append(args, p)
		}
	}
	return args
}

func profileOf(u *gotgbot.User) model.ProfileMeta {
	return model.ProfileMeta{
		TelegramId: u.Id,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
	}
}

func (b *Bot) reply(ctx *ext.Context, out OutboundMessage) error {
	opts := &gotgbot.SendMessageOpts{ParseMode: out.ParseMode}
	if len(out.Buttons) > 0 {
		row := make([]gotgbot.InlineKeyboardButton, 0, len(out.Buttons))
		for _, btn := range out.Buttons {
			button := gotgbot.InlineKeyboardButton{Text: btn.Text, Url: btn.URL}
			if btn.WebApp != nil {
				button.WebApp = &gotgbot.WebAppInfo{Url: btn.WebApp.URL}
			}
			row = append(row, button)
		}
		opts.ReplyMarkup = gotgbot.InlineKeyboardMarkup{
			InlineKeyboard: [][]gotgbot.InlineKeyboardButton{row},
		}
	}
	_, err := ctx.EffectiveMessage.Reply(b.Api, out.Text, opts)
	return err
}

func (b *Bot) onStart(_ *gotgbot.Bot, ctx *ext.Context) error {
	args := commandArgs(ctx.EffectiveMessage.Text)
	referrer := ""
	if len(args) > 0 {
		referrer = args[0]
	}
	user := ctx.EffectiveUser
	out := b.commands.OnStart(context.Background(), strconv.FormatInt(user.Id, 10), referrer, profileOf(user))
	return b.reply(ctx, out)
}

func (b *Bot) onAddBalance(_ *gotgbot.Bot, ctx *ext.Context) error {
	out := b.commands.OnAddBalance(context.Background(), ctx.EffectiveUser.Id, commandArgs(ctx.EffectiveMessage.Text))
	return b.reply(ctx, out)
}

func (b *Bot) onProfile(_ *gotgbot.Bot, ctx *ext.Context) error {
	out := b.commands.OnProfile(context.Background(), strconv.FormatInt(ctx.EffectiveUser.Id, 10))
	return b.reply(ctx, out)
}

func (b *Bot) onResetUser(_ *gotgbot.Bot, ctx *ext.Context) error {
	out := b.commands.OnResetUser(context.Background(), profileOf(ctx.EffectiveUser), commandArgs(ctx.EffectiveMessage.Text))
	return b.reply(ctx, out)
}
