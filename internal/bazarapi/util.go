package bazarapi

import (
	"context"
	"encoding/json"
	"fmt"

	"coinbazar/internal/logger"
	"coinbazar/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	MessageTargetSync = "sync"
)

// WsResponseData is pushed to dashboard websockets.
type WsResponseData struct {
	Target string           `json:"target"` // Websocket message type: 'sync'
	UserId string           `json:"user_id"`
	User   model.UserRecord `json:"user"`
	Config AppConfig        `json:"app_config"`
}

// SyncChannel is the redis channel carrying record updates for userID.
func SyncChannel(userID string) string {
	return fmt.Sprintf("user_sync@%s", userID)
}

func SyncPayload(userID string, user model.UserRecord) ([]byte, error) {
	return json.Marshal(WsResponseData{
		Target: MessageTargetSync,
		UserId: userID,
		User:   user,
		Config: *CurrentAppConfig,
	})
}

// PublishSync announces a changed record to every subscribed websocket.
func PublishSync(ctx context.Context, rdb *redis.Client, userID string, user model.UserRecord) error {
	if rdb == nil {
		return nil
	}
	payload, err := SyncPayload(userID, user)
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, SyncChannel(userID), payload).Err()
}

func (a *App) publishSync(userID string, user model.UserRecord) {
	if err := PublishSync(context.Background(), a.Rdb, userID, user); err != nil {
		logger.Errorf("publish sync %s: %v", userID, err)
	}
}

// ChatToken picks the bot token for an outbound call: the caller's when
// given, the configured one otherwise.
func (a *App) ChatToken(token string) string {
	if token != "" {
		return token
	}
	return a.Options.TelegramToken
}
