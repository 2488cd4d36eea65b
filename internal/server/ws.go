package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"coinbazar/internal/bazarapi"
	"coinbazar/internal/ledger"
	"coinbazar/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	pingPeriod = 3 * time.Second
	pongWait   = 9 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsHandler streams a user's record: a snapshot on connect, every change
// published on the user's sync channel, and a fresh snapshot whenever the
// client sends "sync".
func wsHandler(c *gin.Context) {
	app := c.MustGet("app").(*bazarapi.App)
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing required query: userId"})
		return
	}
	snapshot := func(ctx context.Context) ([]byte, error) {
		user, err := app.Ledger.GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		return bazarapi.SyncPayload(userID, user)
	}
	first, err := snapshot(c.Request.Context())
	if errors.Is(err, ledger.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch user data"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("Socket: failed to set websocket upgrade: %+v", err)
		return
	}
	defer conn.Close()

	var mu sync.Mutex // serializes writes to the connection
	write := func(messageType int, data []byte) error {
		mu.Lock()
		defer mu.Unlock()
		return conn.WriteMessage(messageType, data)
	}
	if err := write(websocket.TextMessage, first); err != nil {
		logger.Errorf("Socket: failed to send data: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var lastPong atomic.Int64
	lastPong.Store(time.Now().UnixNano())
	conn.SetPongHandler(func(string) error {
		lastPong.Store(time.Now().UnixNano())
		return nil
	})

	if app.Rdb != nil {
		pubsub := app.Rdb.Subscribe(ctx, bazarapi.SyncChannel(userID))
		defer pubsub.Close()
		go func() {
			for msg := range pubsub.Channel() {
				if err := write(websocket.TextMessage, []byte(msg.Payload)); err != nil {
					cancel()
					return
				}
			}
		}()
	}

	go func() {
		defer cancel()
		for {
			messageType, p, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.TextMessage || string(p) != "sync" {
				continue
			}
			data, err := snapshot(ctx)
			if err != nil {
				logger.Errorf("Socket: sync %s: %v", userID, err)
				continue
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(time.Unix(0, lastPong.Load())) > pongWait {
				logger.Infof("Socket: client %s did not respond to ping, closing connection", userID)
				return
			}
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
