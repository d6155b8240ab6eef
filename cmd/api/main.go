package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"ecbackend/internal/config"
	"ecbackend/internal/handler"
	"ecbackend/internal/infra/db"
	"ecbackend/internal/infra/logging"
	"ecbackend/internal/infra/notify"
	infraRepo "ecbackend/internal/infra/repository"
	"ecbackend/internal/metrics"
	"ecbackend/internal/middleware"
	"ecbackend/internal/server"
	"ecbackend/internal/usecase"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

// NOTIFY_BACKENDで送り先を選ぶ
func newPublisher(cfg config.Config, logger *log.Logger) notify.Publisher {
	switch cfg.NotifyBackend {
	case config.NotifyBackendKafka:
		return notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	case config.NotifyBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return notify.NewRedisPublisher(client, cfg.RedisChannel)
	default:
		return notify.NewLogPublisher(logger)
	}
}

func main() {
	//.envは無くても環境変数で動く
	if err := godotenv.Load("../.env"); err != nil {
		log.Warnj(log.JSON{"msg": "no .env file, using process environment", "error": err.Error()})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalj(log.JSON{"msg": "invalid config", "error": err.Error()})
	}
	logger := logging.New("api", cfg.LogLevel)

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		logger.Fatalj(log.JSON{"msg": "db connect failed", "error": err.Error()})
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Fatalj(log.JSON{"msg": "db migrate failed", "error": err.Error()})
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	m := metrics.New()

	//通知（投げっぱなし）
	dispatcher := notify.NewDispatcher(newPublisher(cfg, logger), notify.DispatcherOptions{
		Workers:   cfg.NotifyWorkers,
		QueueSize: cfg.NotifyQueueSize,
		Logger:    logging.New("notify", cfg.LogLevel),
		Metrics:   m,
	})
	dispatcher.Start()

	//Usecase生成
	carts := usecase.NewCartStore(txm)
	checkout := usecase.NewCheckoutCoordinator(usecase.CheckoutDeps{
		Tx:       txm,
		Carts:    carts,
		Factory:  usecase.NewOrderFactory(&realClock{}, &uuidGenerator{}),
		Notifier: dispatcher,
		Metrics:  m,
		Logger:   logging.New("checkout", cfg.LogLevel),
		Timeout:  cfg.CheckoutTimeout,
	})
	lifecycle := usecase.NewOrderLifecycleManager(usecase.LifecycleDeps{
		Tx:       txm,
		Clock:    &realClock{},
		Notifier: dispatcher,
		Metrics:  m,
		Logger:   logging.New("lifecycle", cfg.LogLevel),
	})
	query := usecase.NewOrderQuery(txm)

	//Handler生成
	limiter := middleware.NewUserRateLimiter(cfg.CheckoutRatePerMinute, cfg.CheckoutRateBurst)
	e := server.New(cfg, logger, m)
	server.RegisterRoutes(e, cfg, m, userRepo,
		handler.NewCartHandler(carts),
		handler.NewOrderHandler(checkout, lifecycle, query, limiter),
		handler.NewAdminOrderHandler(lifecycle, query),
	)

	//Server起動（SIGINT/SIGTERMで止める）
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infoj(log.JSON{"msg": "server starting", "addr": cfg.Addr(), "env": cfg.GoEnv, "notify": cfg.NotifyBackend})
	if err := server.Start(ctx, e, cfg.Addr()); err != nil {
		logger.Errorj(log.JSON{"msg": "server stopped", "error": err.Error()})
	}

	//残った通知を送り切ってから終わる
	if err := dispatcher.Close(); err != nil {
		logger.Warnj(log.JSON{"msg": "notify close failed", "error": err.Error()})
	}
	logger.Infoj(log.JSON{"msg": "server stopped"})
}
