package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"coinbazar/internal/app"
	"coinbazar/internal/ledger"
	"coinbazar/internal/logger"
	"coinbazar/internal/model"
	"coinbazar/internal/worker"
)

const ParseModeHTML = "HTML"

type WebApp struct {
	URL string `json:"url"`
}

// InlineButton is one inline keyboard button: a plain link or a web app.
type InlineButton struct {
	Text   string  `json:"text"`
	URL    string  `json:"url,omitempty"`
	WebApp *WebApp `json:"web_app,omitempty"`
}

// OutboundMessage is a formatted chat reply.
type OutboundMessage struct {
	Text      string
	ParseMode string
	Buttons   []InlineButton
}

// Notifier delivers a message to a chat outside of a reply.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Commands turns chat commands into ledger calls. Ledger failures become
// generic replies and are never returned.
type Commands struct {
	ledger       *ledger.Service
	dashboardURL string
	notifier     Notifier
	pool         *worker.Pool
}

func NewCommands(l *ledger.Service, dashboardURL string, notifier Notifier, pool *worker.Pool) *Commands {
	return &Commands{
		ledger:       l,
		dashboardURL: dashboardURL,
		notifier:     notifier,
		pool:         pool,
	}
}

func reply(text string) OutboundMessage {
	return OutboundMessage{Text: text, ParseMode: ParseModeHTML}
}

// EscapeHTML makes user supplied text safe inside an HTML parse-mode message.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

func displayName(p model.ProfileMeta) string {
	if p.FirstName == "" {
		return "User"
	}
	return p.FirstName
}

// OnStart registers a first-time user, credits the referrer when there is
// one, and answers with the dashboard button.
func (c *Commands) OnStart(ctx context.Context, userID string, referrerID string, profile model.ProfileMeta) OutboundMessage {
	logger.Infof("start: user %s referrer %q", userID, referrerID)

	exists, err := c.ledger.Exists(ctx, userID)
	if err != nil {
		logger.Errorf("start %s: %v", userID, err)
		return reply("❌ An error occurred. Please try again.")
	}

	isNew := !exists
	if isNew {
		if profile.TelegramId == 0 {
			profile.TelegramId, _ = strconv.ParseInt(userID, 10, 64)
		}
		if _, err := c.ledger.CreateUser(ctx, userID, profile); err != nil {
			logger.Errorf("start %s: create user: %v", userID, err)
			return reply("❌ An error occurred. Please try again.")
		}
		logger.Infof("created user %s", userID)
	} else if err := c.ledger.TouchLogin(ctx, userID); err != nil {
		logger.Errorf("start %s: touch login: %v", userID, err)
	}

	if isNew && referrerID != "" && referrerID != userID {
		c.referral(ctx, userID, referrerID, profile)
	}

	name := EscapeHTML(displayName(profile))
	text := fmt.Sprintf("👋 <b>Welcome back %s!</b>\n\nClick below to continue earning:", name)
	if isNew {
		text = fmt.Sprintf("👋 <b>Welcome %s!</b>\n\n🎉 You're all set! Click below to start earning:", name)
	}
	out := reply(text)
	out.Buttons = []InlineButton{{Text: "🚀 Open Dashboard", WebApp: &WebApp{URL: c.dashboardURL}}}
	return out
}

func (c *Commands) referral(ctx context.Context, userID string, referrerID string, profile model.ProfileMeta) {
	ref, err := c.ledger.ApplyReferral(ctx, userID, referrerID)
	if err != nil {
		logger.Errorf("referral %s -> %s: %v", referrerID, userID, err)
		return
	}

	chatID, err := strconv.ParseInt(referrerID, 10, 64)
	if err != nil || c.notifier == nil || c.pool == nil {
		return
	}
	text := fmt.Sprintf("🎉 New referral! %s joined using your link. You earned $%s!",
		EscapeHTML(displayName(profile)), strconv.FormatFloat(ref.BonusAmount, 'f', -1, 64))
	queued := c.pool.TryExec(worker.TaskFunc(func() {
		if err := c.notifier.Notify(context.Background(), chatID, text); err != nil {
			logger.Errorf("could not notify referrer %d: %v", chatID, err)
			return
		}
		logger.Infof("notified referrer %d", chatID)
	}))
	if !queued {
		logger.Errorf("referrer notice for %d dropped: queue full", chatID)
	}
}

// OnAddBalance handles "/addbalance <userId> <type> <amount>".
func (c *Commands) OnAddBalance(ctx context.Context, callerID int64, args []string) OutboundMessage {
	if len(args) < 3 {
		return reply("Usage: /addbalance <userId> <type> <amount>\nTypes: " + strings.Join(ledger.AdjustableFields, ", "))
	}
	target, field := args[0], args[1]
	amount, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return reply("Invalid amount")
	}

	_, err = c.ledger.AdminAdjust(ctx, target, field, amount, callerID)
	switch {
	case err == nil:
		return reply(fmt.Sprintf("✅ Added %s %s to user %s", strconv.FormatFloat(amount, 'f', -1, 64), field, EscapeHTML(target)))
	case errors.Is(err, ledger.ErrInvalidField):
		return reply("Invalid type. Use: " + strings.Join(ledger.AdjustableFields, ", "))
	case errors.Is(err, ledger.ErrInvalidAmount):
		return reply("Invalid amount")
	case errors.Is(err, ledger.ErrNotFound):
		return reply("User not found")
	}
	logger.Errorf("addbalance %s %s %v: %v", target, field, amount, err)
	return reply("❌ Failed to add balance.")
}

// OnProfile renders the caller's counters.
func (c *Commands) OnProfile(ctx context.Context, userID string) OutboundMessage {
	u, err := c.ledger.GetUser(ctx, userID)
	if errors.Is(err, ledger.ErrNotFound) {
		return reply("❌ User profile not found. Use /start first.")
	}
	if err != nil {
		logger.Errorf("profile %s: %v", userID, err)
		return reply("❌ Error fetching profile.")
	}

	var sb strings.Builder
	sb.WriteString("👤 <b>Your Profile</b>\n\n")
	fmt.Fprintf(&sb, "💰 Balance: $%.4f\n", u.Balance)
	fmt.Fprintf(&sb, "🪙 Coins: %d\n", u.Coins)
	fmt.Fprintf(&sb, "🔑 Keys: %d\n", u.Keys)
	fmt.Fprintf(&sb, "💎 Diamonds: %d\n", u.Diamonds)
	fmt.Fprintf(&sb, "📺 Ads Watched: %d\n", u.AdsWatched())
	fmt.Fprintf(&sb, "👥 Referrals: %d\n", len(u.Referrals))
	fmt.Fprintf(&sb, "📊 Total Earned: $%.4f\n", u.TotalEarned)
	fmt.Fprintf(&sb, "📅 Member since: %s", app.MemberSince(u.JoinDate))
	return reply(sb.String())
}

// OnResetUser handles "/resetuser [userId]"; without an argument the caller
// resets their own record.
func (c *Commands) OnResetUser(ctx context.Context, caller model.ProfileMeta, args []string) OutboundMessage {
	target := strconv.FormatInt(caller.TelegramId, 10)
	if len(args) > 0 {
		target = args[0]
	}
	if _, err := c.ledger.ResetUser(ctx, target, caller); err != nil {
		logger.Errorf("resetuser %s: %v", target, err)
		return reply("❌ Error resetting user data.")
	}
	return reply(fmt.Sprintf("✅ User %s data has been reset to defaults.", EscapeHTML(target)))
}
