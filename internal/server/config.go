package server

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"coinbazar/internal/bazarapi"
	"coinbazar/internal/logger"
)

type Config struct {
	Port             string `json:"port"`
	AllowedOrigins   string `json:"allowedOrigins"` // comma separated
	FirebaseDbUrl    string `json:"firebaseDbUrl"`
	FirebaseAuth     string `json:"firebaseAuth"`
	TelegramToken    string `json:"telegramToken"`
	TelegramApiUrl   string `json:"telegramApiUrl"`
	DashboardUrl     string `json:"dashboardUrl"`
	RedisAddr        string `json:"redisAddr"`
	RedisPassword    string `json:"redisPassword"`
	FileLog          string `json:"fileLog"`
	WorkerSpeed      int    `json:"workerSpeed"`
	WorkerQueue      int    `json:"workerQueue"`
	BroadcastDelayMs int    `json:"broadcastDelayMs"`
	RateLimit        uint   `json:"rateLimit"` // requests per second per IP
	Environment      string `json:"environment"`
}

var GlobalConfig Config
var PathFile string

func defaultConfig() Config {
	return Config{
		Port: "3001",
		AllowedOrigins: strings.Join([]string{
			"https://cbot-phi.vercel.app",
			"https://coinbazar-admin.vercel.app",
			"http://localhost:3000",
			"http://localhost:5173",
		}, ","),
		DashboardUrl:     "https://cbot-phi.vercel.app",
		WorkerSpeed:      4,
		WorkerQueue:      256,
		BroadcastDelayMs: 150,
		RateLimit:        100,
	}
}

// ConfigLoad reads the JSON config named by argv[1] (default ./config.json,
// optional), then applies environment overrides and sets up logging.
func ConfigLoad() {
	if len(os.Args) > 1 {
		PathFile = os.Args[1]
	} else {
		PathFile = "./config.json"
	}

	cfg, err := readConfig(PathFile)
	if err != nil {
		panic(err)
	}
	bazarapi.LoadEnv()
	applyEnv(&cfg, os.Getenv)
	GlobalConfig = cfg

	logger.SetLogger(GlobalConfig.FileLog)
}

func readConfig(path string) (Config, error) {
	cfg := defaultConfig()
	configFile, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	defer configFile.Close()
	jsonParser := json.NewDecoder(configFile)
	if err := jsonParser.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, err := strconv.Atoi(getenv(key)); err == nil {
			*dst = v
		}
	}
	str("PORT", &cfg.Port)
	str("ALLOWED_ORIGINS", &cfg.AllowedOrigins)
	str("FIREBASE_DB_URL", &cfg.FirebaseDbUrl)
	str("FIREBASE_AUTH", &cfg.FirebaseAuth)
	str("TELEGRAM_TOKEN", &cfg.TelegramToken)
	str("TELEGRAM_API_URL", &cfg.TelegramApiUrl)
	str("DASHBOARD_URL", &cfg.DashboardUrl)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("REDIS_PASSWORD", &cfg.RedisPassword)
	str("FILE_LOG", &cfg.FileLog)
	str("APP_ENV", &cfg.Environment)
	num("WORKER_SPEED", &cfg.WorkerSpeed)
	num("WORKER_QUEUE", &cfg.WorkerQueue)
	num("BROADCAST_DELAY_MS", &cfg.BroadcastDelayMs)
	if v, err := strconv.ParseUint(getenv("RATE_LIMIT"), 10, 32); err == nil {
		cfg.RateLimit = uint(v)
	}
}

// Origins splits AllowedOrigins into the cors allow-list.
func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Options converts the config into what bazarapi.Init needs.
func (c Config) Options() bazarapi.Options {
	return bazarapi.Options{
		FirebaseURL:    c.FirebaseDbUrl,
		FirebaseAuth:   c.FirebaseAuth,
		TelegramToken:  c.TelegramToken,
		TelegramAPIURL: c.TelegramApiUrl,
		DashboardURL:   c.DashboardUrl,
		RedisAddr:      c.RedisAddr,
		RedisPassword:  c.RedisPassword,
		WorkerSpeed:    c.WorkerSpeed,
		WorkerQueue:    c.WorkerQueue,
		BroadcastDelay: time.Duration(c.BroadcastDelayMs) * time.Millisecond,
		Environment:    c.Environment,
	}
}
