package bazarapi

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"coinbazar/internal/connections"
	"coinbazar/internal/ledger"
	"coinbazar/internal/logger"
	"coinbazar/internal/store"
	"coinbazar/internal/telegram"
	"coinbazar/internal/worker"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const appConfigKey = "app_config"

// App carries the shared dependencies handed to every HTTP handler.
type App struct {
	Rdb     *redis.Client // nil when no redis is configured
	Store   store.Store
	Ledger  *ledger.Service
	BotAPI  *telegram.BotAPI
	Conns   *connections.Registry
	Pool    *worker.Pool
	Options Options
	Started time.Time
}

// Options are the process settings App is built from.
type Options struct {
	FirebaseURL    string
	FirebaseAuth   string
	TelegramToken  string
	TelegramAPIURL string
	DashboardURL   string
	RedisAddr      string
	RedisPassword  string
	WorkerSpeed    int
	WorkerQueue    int
	BroadcastDelay time.Duration
	Environment    string
}

type AppConfig struct {
	Settings AppSettings `json:"settings"`
}

type AppSettings struct {
	Ref RefSettings `json:"ref"`
	Ads AdSettings  `json:"ads"`
}

type RefSettings struct {
	Bonus float64 `json:"bonus"` // $ credited to the referrer
}

type AdSettings struct {
	RewardCoins int64 `json:"reward_coins"`
	RewardKeys  int64 `json:"reward_keys"`
}

var (
	DefaultAppConfig = &AppConfig{
		Settings: AppSettings{
			Ref: RefSettings{
				Bonus: ledger.DefaultReferralBonus,
			},
			Ads: AdSettings{
				RewardCoins: ledger.DefaultAdCoins,
				RewardKeys:  ledger.DefaultAdKeys,
			},
		},
	}
	CurrentAppConfig = DefaultAppConfig
)

// LedgerSettings maps the reward settings onto the ledger.
func (c *AppConfig) LedgerSettings() ledger.Settings {
	return ledger.Settings{
		ReferralBonus: c.Settings.Ref.Bonus,
		AdCoins:       c.Settings.Ads.RewardCoins,
		AdKeys:        c.Settings.Ads.RewardKeys,
	}
}

// Init connects to redis and the document store and builds the App.
func Init(opts Options) *App {
	redisClient := setupRedis(opts)
	return New(opts, setupStore(opts), redisClient)
}

// New builds an App around an existing store. rdb may be nil.
func New(opts Options, st store.Store, rdb *redis.Client) *App {
	if opts.DashboardURL == "" {
		opts.DashboardURL = "https://cbot-phi.vercel.app"
	}
	CurrentAppConfig = loadAppConfig(context.Background(), rdb)

	app := &App{
		Rdb:     rdb,
		Store:   st,
		Ledger:  ledger.New(st, CurrentAppConfig.LedgerSettings()),
		BotAPI:  telegram.NewBotAPI(opts.TelegramAPIURL),
		Conns:   connections.NewRegistry(connections.DefaultMax, connections.DefaultTTL),
		Pool:    worker.NewPool(opts.WorkerSpeed, opts.WorkerQueue),
		Options: opts,
		Started: time.Now(),
	}
	app.Ledger.OnChange(app.publishSync)
	return app
}

// Close drains queued side effects and releases connections.
func (a *App) Close() {
	a.Pool.Close()
	a.Pool.Wait()
	if a.Rdb != nil {
		if err := a.Rdb.Close(); err != nil {
			logger.Errorf("redis close: %v", err)
		}
	}
}

// loadAppConfig reads the cached reward settings, seeding the cache with the
// defaults when it is empty or unreadable.
func loadAppConfig(ctx context.Context, rdb *redis.Client) *AppConfig {
	if rdb == nil {
		return DefaultAppConfig
	}
	raw, _ := rdb.Get(ctx, appConfigKey).Result()
	if len(raw) > 0 {
		var cfg AppConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err == nil {
			return &cfg
		}
		logger.Errorf("app_config in redis is unreadable, using defaults")
	}
	current, _ := json.Marshal(DefaultAppConfig)
	if err := rdb.Set(ctx, appConfigKey, current, 0).Err(); err != nil {
		logger.Errorf("seed app_config: %v", err)
	}
	return DefaultAppConfig
}

func setupRedis(opts Options) *redis.Client {
	if opts.RedisAddr == "" {
		return nil
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       0,
	})
	return redisClient
}

func setupStore(opts Options) store.Store {
	if opts.FirebaseURL == "" {
		logger.Infof("FIREBASE_DB_URL not set, using in-memory store")
		return store.NewMemory()
	}
	return store.NewFirebase(opts.FirebaseURL, opts.FirebaseAuth)
}

// LoadEnv loads .env files, most specific first. Variables already set win.
func LoadEnv() {
	env := os.Getenv("APP_ENV")
	if "" == env {
		env = "development"
	}

	godotenv.Load(".env." + env + ".local")

	if "test" != env {
		godotenv.Load(".env.local")
	}
	godotenv.Load(".env." + env)
	godotenv.Load()
}
