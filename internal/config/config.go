package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 通知の送り先
const (
	NotifyBackendLog   = "log"
	NotifyBackendKafka = "kafka"
	NotifyBackendRedis = "redis"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	JWTSecret string // JWT検証シークレット

	GoEnv    string // dev/prod
	FEURL    string // フロントURL（CORS）
	LogLevel string // DEBUG/INFO/WARN/ERROR

	CheckoutTimeout time.Duration // チェックアウト1回の上限

	NotifyBackend   string // log/kafka/redis
	NotifyWorkers   int
	NotifyQueueSize int

	KafkaBrokers []string
	KafkaTopic   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	CheckoutRatePerMinute int // ユーザーごとのチェックアウト回数/分
	CheckoutRateBurst     int
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port:      os.Getenv("PORT"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		GoEnv:     os.Getenv("GO_ENV"),
		FEURL:     os.Getenv("FE_URL"),
		LogLevel:  getenv("LOG_LEVEL", "INFO"),

		NotifyBackend: strings.ToLower(getenv("NOTIFY_BACKEND", NotifyBackendLog)),
		KafkaBrokers:  splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:    getenv("KAFKA_TOPIC", "order-events"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisChannel:  getenv("REDIS_CHANNEL", "order-events"),
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}

	var err error
	if cfg.CheckoutTimeout, err = getDuration("CHECKOUT_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.NotifyWorkers, err = getInt("NOTIFY_WORKERS", 2); err != nil {
		return Config{}, err
	}
	if cfg.NotifyQueueSize, err = getInt("NOTIFY_QUEUE_SIZE", 256); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.CheckoutRatePerMinute, err = getInt("CHECKOUT_RATE_PER_MINUTE", 10); err != nil {
		return Config{}, err
	}
	if cfg.CheckoutRateBurst, err = getInt("CHECKOUT_RATE_BURST", 3); err != nil {
		return Config{}, err
	}

	//通知先ごとの必須
	switch cfg.NotifyBackend {
	case NotifyBackendLog:
	case NotifyBackendKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return Config{}, fmt.Errorf("KAFKA_BROKERS is required when NOTIFY_BACKEND=kafka")
		}
	case NotifyBackendRedis:
		if cfg.RedisAddr == "" {
			return Config{}, fmt.Errorf("REDIS_ADDR is required when NOTIFY_BACKEND=redis")
		}
	default:
		return Config{}, fmt.Errorf("NOTIFY_BACKEND must be one of log, kafka, redis")
	}

	return cfg, nil
}

// ":8080" 形式のアドレス
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getenv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}

func splitCSV(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
