package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"coinbazar/internal/app"
	"coinbazar/internal/logger"
	"coinbazar/internal/metrics"
	"coinbazar/internal/telegram"

	"github.com/gin-gonic/gin"
)

type NotificationParams struct {
	telegram.Broadcast
	BotToken string `json:"botToken"`
}

type TokenParams struct {
	BotToken string `json:"botToken"`
}

type MembershipParams struct {
	UserId       flexID `json:"userId"`
	Username     string `json:"username"`
	Channel      string `json:"channel"`
	ConnectionId string `json:"connectionId"`
	TaskId       string `json:"taskId"`
	TaskName     string `json:"taskName"`
}

// SendNotification broadcasts a message to every stored user, one chat at a
// time.
func SendNotification(c *gin.Context) {
	a := getApp(c)
	var params NotificationParams
	if err := c.ShouldBindJSON(&params); err != nil {
		fail(c, http.StatusBadRequest, "Message or image required")
		return
	}
	logger.Infof("notification request: message %d chars, image %t, %d buttons, token given %t",
		len(params.Message), params.ImageURL != "", len(params.Buttons), params.BotToken != "")

	if params.Message == "" && params.ImageURL == "" {
		fail(c, http.StatusBadRequest, "Message or image required")
		return
	}
	token := a.ChatToken(params.BotToken)
	if token == "" {
		fail(c, http.StatusBadRequest, "Bot token is required")
		return
	}

	chatIDs, err := a.Ledger.ChatIDs(c.Request.Context())
	if err != nil {
		logger.Errorf("send notification: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to send notifications")
		return
	}
	if len(chatIDs) == 0 {
		fail(c, http.StatusNotFound, "No users found in database")
		return
	}

	res := a.BotAPI.Broadcast(c.Request.Context(), token, chatIDs, params.Broadcast, a.Options.BroadcastDelay)
	metrics.Broadcast(res.Successful, res.Failed)
	if res.Successful == 0 && res.InvalidToken {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Invalid bot token. Please check your bot token in the admin panel.",
			"details": "The bot token provided is not valid or the bot has been deleted.",
		})
		return
	}
	respond(c, gin.H{
		"sentTo":  res.Successful,
		"message": fmt.Sprintf("Notifications sent: %d successful, %d failed", res.Successful, res.Failed),
		"stats": gin.H{
			"totalUsers": res.Total,
			"successful": res.Successful,
			"failed":     res.Failed,
		},
		"errors":    res.Errors,
		"timestamp": app.NowIso(),
	})
}

// TestNotification checks a bot token with getMe.
func TestNotification(c *gin.Context) {
	a := getApp(c)
	var params TokenParams
	_ = c.ShouldBindJSON(&params)
	if params.BotToken == "" {
		fail(c, http.StatusBadRequest, "Bot token is required for testing")
		return
	}

	info, err := a.BotAPI.GetMe(c.Request.Context(), params.BotToken)
	if err != nil {
		logger.Errorf("test notification: %v", err)
		details := "Could not reach the Telegram API"
		var apiErr *telegram.APIError
		if errors.As(err, &apiErr) {
			details = apiErr.Description
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid bot token",
			"details": details,
		})
		return
	}
	respond(c, gin.H{
		"message": "Bot token is valid",
		"botInfo": info,
	})
}

func CheckMembership(c *gin.Context) {
	a := getApp(c)
	var params MembershipParams
	_ = c.ShouldBindJSON(&params)
	if params.UserId == "" || strings.TrimSpace(params.Channel) == "" {
		fail(c, http.StatusBadRequest, "Missing required fields: userId and channel are required")
		return
	}
	if params.ConnectionId != "" {
		a.Conns.Touch(params.ConnectionId)
	}

	isMember, err := a.BotAPI.CheckMembership(c.Request.Context(), a.Options.TelegramToken, string(params.UserId), params.Channel)
	if err != nil {
		logger.Errorf("check membership %s in %s: %v", params.UserId, params.Channel, errors.Unwrap(err))
		message := "Failed to check membership"
		var memberErr *telegram.MembershipError
		if errors.As(err, &memberErr) {
			message = memberErr.Message
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":  false,
			"error":    message,
			"isMember": false,
		})
		return
	}
	respond(c, gin.H{
		"isMember":  isMember,
		"checkedAt": app.NowIso(),
		"userId":    params.UserId,
		"channel":   params.Channel,
	})
}
