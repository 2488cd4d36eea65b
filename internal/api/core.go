package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"coinbazar/internal/app"
	"coinbazar/internal/bazarapi"
	"coinbazar/internal/ledger"
	"coinbazar/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/process"
)

const Version = "1.0.0"

// Endpoints is advertised by the root route and the 404 handler.
var Endpoints = []string{
	"GET  /",
	"GET  /api/health",
	"GET  /api/test",
	"GET  /api/user/:userId",
	"POST /api/user/:userId/update",
	"GET  /api/users",
	"POST /api/spin/process",
	"POST /api/ads/watch",
	"POST /api/telegram/check-membership",
	"POST /api/send-notification",
	"POST /api/test-notification",
	"POST /api/frontend/connect",
	"GET  /api/connections",
	"GET  /api/database/status",
	"POST /api/admin/user/:userId/adjust",
	"GET  /ws",
}

func getApp(c *gin.Context) *bazarapi.App {
	return c.MustGet("app").(*bazarapi.App)
}

// respond writes {"success": true, ...payload}.
func respond(c *gin.Context, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

// failErr maps a ledger error onto a status; downstream failures get the
// handler's own message instead of internals.
func failErr(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		fail(c, http.StatusNotFound, "User not found")
	case errors.Is(err, ledger.ErrInsufficientBalance):
		fail(c, http.StatusBadRequest, "Insufficient balance")
	case errors.Is(err, ledger.ErrInvalidPayload):
		fail(c, http.StatusBadRequest, "Invalid updates data")
	case errors.Is(err, ledger.ErrInvalidField),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidSlot),
		errors.Is(err, ledger.ErrInvalidPrize),
		errors.Is(err, ledger.ErrInvalidReferral):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		logger.Errorf("%s: %v", fallback, err)
		fail(c, http.StatusInternalServerError, fallback)
	}
}

func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Telegram Bot & Tasks Backend Server is running!",
		"timestamp": app.NowIso(),
		"version":   Version,
		"endpoints": Endpoints,
	})
}

func Test(c *gin.Context) {
	respond(c, gin.H{
		"message":   "Server is running and connected to frontend!",
		"timestamp": app.NowIso(),
		"database":  "Connected to Firebase",
		"bot":       "Telegram Bot is running",
	})
}

func megabytes(b uint64) string {
	return fmt.Sprintf("%d MB", b/1024/1024)
}

func memoryInfo() gin.H {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	mem := gin.H{
		"heapTotal": megabytes(ms.HeapSys),
		"heapUsed":  megabytes(ms.HeapAlloc),
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := p.MemoryInfo(); err == nil {
			mem["rss"] = megabytes(info.RSS)
		}
	}
	return mem
}

func Health(c *gin.Context) {
	a := getApp(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	botStatus := "error"
	if a.Options.TelegramToken != "" {
		if _, err := a.BotAPI.GetMe(ctx, a.Options.TelegramToken); err == nil {
			botStatus = "running"
		}
	}

	stats := a.Conns.Stats()
	environment := a.Options.Environment
	if environment == "" {
		environment = "development"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"timestamp":    app.NowIso(),
		"uptime":       time.Since(a.Started).Seconds(),
		"database":     a.Ledger.StoreStatus(ctx),
		"telegram_bot": botStatus,
		"connections": gin.H{
			"total":        stats.Total,
			"active":       stats.Active,
			"unique_users": stats.Unique,
		},
		"memory":      memoryInfo(),
		"environment": environment,
	})
}

func DatabaseStatus(c *gin.Context) {
	a := getApp(c)
	_, stats, err := a.Ledger.ListUsers(c.Request.Context())
	if err != nil {
		logger.Errorf("database status: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to get database status")
		return
	}
	respond(c, gin.H{
		"database": "Firebase Realtime Database",
		"stats": gin.H{
			"totalUsers":   stats.TotalUsers,
			"totalBalance": stats.TotalBalance,
			"totalCoins":   stats.TotalCoins,
			"storageUsed":  "N/A",
		},
		"collections": gin.H{
			"users":        true,
			"referrals":    true,
			"transactions": true,
			"spins":        true,
			"ads":          true,
		},
	})
}

func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success":            false,
		"error":              "Endpoint not found",
		"path":               c.Request.URL.RequestURI(),
		"availableEndpoints": Endpoints,
	})
}
