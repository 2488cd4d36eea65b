package api

import (
	"net/http"

	"coinbazar/internal/app"
	"coinbazar/internal/connections"

	"github.com/gin-gonic/gin"
)

type ConnectParams struct {
	Timestamp       string                 `json:"timestamp"`
	UserAgent       string                 `json:"userAgent"`
	FrontendVersion string                 `json:"frontendVersion"`
	UserData        map[string]interface{} `json:"userData"`
}

func FrontendConnect(c *gin.Context) {
	a := getApp(c)
	var params ConnectParams
	_ = c.ShouldBindJSON(&params)

	conn := a.Conns.Register(connections.Info{
		UserAgent:       params.UserAgent,
		FrontendVersion: params.FrontendVersion,
		UserData:        params.UserData,
		IP:              c.ClientIP(),
		Origin:          c.GetHeader("Origin"),
	})
	respond(c, gin.H{
		"message":      "Frontend connection registered successfully",
		"connectionId": conn.ID,
		"serverTime":   app.NowIso(),
	})
}

func Connections(c *gin.Context) {
	a := getApp(c)
	stats := a.Conns.Stats()
	c.JSON(http.StatusOK, gin.H{
		"total_connections":  stats.Total,
		"active_connections": stats.Active,
		"unique_users":       stats.Unique,
		"connection_details": gin.H{
			"max_stored":       stats.Max,
			"cleanup_interval": "5 minutes",
		},
		"recent_connections": stats.Recent,
	})
}
