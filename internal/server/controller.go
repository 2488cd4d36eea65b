package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"coinbazar/internal/api"
	"coinbazar/internal/api/middleware"
	"coinbazar/internal/bazarapi"
	"coinbazar/internal/logger"
	"coinbazar/internal/metrics"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"success": false,
		"error":   "Too many requests. Try again in " + time.Until(info.ResetTime).String(),
	})
}

// rateLimiter limits each IP to cfg.RateLimit requests per second, counted in
// the App's redis when it is configured and in memory otherwise.
func rateLimiter(app *bazarapi.App, cfg Config) gin.HandlerFunc {
	if cfg.RateLimit == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	var store ratelimit.Store
	if app.Rdb != nil {
		store = ratelimit.RedisStore(&ratelimit.RedisOptions{
			RedisClient: app.Rdb,
			Rate:        time.Second,
			Limit:       cfg.RateLimit,
		})
	} else {
		store = ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
			Rate:  time.Second,
			Limit: cfg.RateLimit,
		})
	}
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})
}

// NewRouter wires every HTTP route onto a gin engine.
func NewRouter(app *bazarapi.App, cfg Config) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.Use(gin.Logger(), middleware.Recovery(), metrics.Gin())
	mw := rateLimiter(app, cfg)
	corsConfig := cors.Config{
		AllowOrigins:  cfg.Origins(),
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		MaxAge:        24 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.App(app))

	router.GET("/", api.Root)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/ws", mw, wsHandler)

	routes := router.Group("/api")
	{
		routes.GET("/health", api.Health)
		routes.GET("/test", mw, api.Test)
		routes.GET("/user/:userId", mw, api.GetUser)
		routes.POST("/user/:userId/update", mw, api.UpdateUser)
		routes.GET("/users", mw, api.GetUsers)
		routes.POST("/spin/process", mw, api.ProcessSpin)
		routes.POST("/ads/watch", mw, api.WatchAd)
		routes.POST("/telegram/check-membership", mw, api.CheckMembership)
		routes.POST("/send-notification", mw, api.SendNotification)
		routes.POST("/test-notification", mw, api.TestNotification)
		routes.POST("/frontend/connect", mw, api.FrontendConnect)
		routes.GET("/connections", mw, api.Connections)
		routes.GET("/database/status", mw, api.DatabaseStatus)
		routes.POST("/admin/user/:userId/adjust", mw, api.AdjustUser)
	}
	router.NoRoute(api.NotFound)
	return router
}

// ApiInit serves the router on cfg.Port until ctx is cancelled.
func ApiInit(ctx context.Context, app *bazarapi.App, cfg Config) error {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(app, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[ CoinBazar backend is up and listening to :%s ]", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
