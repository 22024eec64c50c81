package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"hermes/internal/adapters/clickhouse"
	"hermes/internal/adapters/config"
	"hermes/internal/adapters/errors/noop"
	"hermes/internal/adapters/errors/sentry"
	"hermes/internal/adapters/exchange"
	"hermes/internal/adapters/kafka"
	"hermes/internal/adapters/postgres"
	"hermes/internal/adapters/redis"
	"hermes/internal/adapters/telegram"
	"hermes/internal/consumers"
	"hermes/internal/domain/cycle"
	"hermes/internal/domain/signal"
	"hermes/internal/events"
	"hermes/internal/metrics"
	chrepo "hermes/internal/repository/clickhouse"
	pgrepo "hermes/internal/repository/postgres"
	"hermes/internal/services/autoexec"
	"hermes/internal/services/eligibility"
	"hermes/internal/services/notify"
	"hermes/internal/workers"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	// Databases
	pg, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pg.Close()

	// Repositories
	signalRepo := pgrepo.NewSignalRepository(pg.DB())
	userRepo := pgrepo.NewUserRepository(pg.DB())
	tradeRepo := pgrepo.NewTradeRepository(pg.DB())
	cycleRepo := pgrepo.NewCycleRepository(pg.DB())
	portfolioRepo := pgrepo.NewPortfolioRepository(pg.DB())

	// Notification deduplication, Redis-backed when configured
	dedup, memDedup := initDedup(cfg, log)

	// Notification channels
	channel := initChannels(cfg, log)
	notifier := notify.NewNotifier(dedup, channel)

	// Event stream
	publisher, producer := initPublisher(cfg, log)
	if producer != nil {
		defer producer.Close()
	}

	// Trade audit log
	tradeLog := initTradeLog(cfg, log)
	var auditor autoexec.Auditor
	if tradeLog != nil {
		auditor = tradeLog
	}

	// Exchange gateway
	gateway := initGateway(cfg, log)

	// Services
	signalService := signal.NewService(signalRepo)
	cycleService := cycle.NewService(cycleRepo)
	filter := eligibility.NewFilter(userRepo, portfolioRepo, cfg.Engine.SignalSuppressionWindow)

	engine := autoexec.NewEngine(
		signalRepo,
		userRepo,
		tradeRepo,
		portfolioRepo,
		cycleService,
		filter,
		gateway,
		notifier,
		publisher,
		auditor,
		autoexec.Config{
			BuyAllocation:      decimal.NewFromFloat(cfg.Engine.BuyAllocation),
			GatewayTimeout:     cfg.Engine.GatewayTimeout,
			MaxConcurrentUsers: cfg.Engine.MaxConcurrentUsers,
		},
	)

	// Workers
	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(workers.NewAutoExecWorker(engine, cfg.Engine.Interval, true))
	if memDedup != nil {
		scheduler.RegisterWorker(workers.NewDedupGCWorker(memDedup, cfg.Notifications.GCInterval))
	}

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr); err != nil {
				log.Errorf("Metrics server error: %v", err)
			}
		}()
	}

	log.Info("System initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if tradeLog != nil {
		tradeLog.Start(ctx)
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := tradeLog.Stop(stopCtx); err != nil {
				log.Warnf("Trade log stop: %v", err)
			}
		}()
	}

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Inbound signal ingestion from the event stream
	if cfg.Kafka.Enabled() {
		consumer := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
			Topic:   kafka.TopicSignalRegistered,
		})
		signalConsumer := consumers.NewSignalConsumer(consumer, signalService)
		go func() {
			if err := signalConsumer.Start(ctx); err != nil {
				log.Errorf("Signal consumer stopped: %v", err)
			}
		}()
	}

	waitForShutdown(ctx, cancel, scheduler, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// initDedup picks the dedup registry backend. The second return is
// non-nil only for the in-memory registry, which needs a GC worker.
func initDedup(cfg *config.Config, log *logger.Logger) (notify.Deduplicator, *notify.MemoryDeduplicator) {
	if cfg.Redis.Enabled() {
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Info("Notification dedup registry: redis")
		return notify.NewRedisDeduplicator(client, cfg.Notifications.Cooldown), nil
	}

	log.Info("Notification dedup registry: in-memory")
	mem := notify.NewMemoryDeduplicator(cfg.Notifications.Cooldown)
	return mem, mem
}

// initChannels builds the notification delivery channels
func initChannels(cfg *config.Config, log *logger.Logger) notify.Channel {
	var channels []notify.Channel

	if cfg.Telegram.BotToken != "" {
		bot, err := telegram.NewBot(cfg.Telegram.BotToken)
		if err != nil {
			log.Warnf("Failed to initialize Telegram bot: %v", err)
		} else {
			channels = append(channels, telegram.NewNotifier(bot))
			log.Info("Telegram notification channel initialized")
		}
	}

	if len(channels) == 0 {
		log.Warn("No notification channels configured, using log channel")
		channels = append(channels, notify.NewLogChannel())
	}

	return notify.NewMultiChannel(channels...)
}

// initPublisher wires the Kafka event stream when brokers are configured
func initPublisher(cfg *config.Config, log *logger.Logger) (events.Publisher, *kafka.Producer) {
	if !cfg.Kafka.Enabled() {
		log.Info("Kafka disabled, events will be discarded")
		return events.Noop{}, nil
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	log.Infow("Kafka producer initialized", "brokers", cfg.Kafka.Brokers)
	return producer, producer
}

// initTradeLog wires the ClickHouse trade audit log when configured
func initTradeLog(cfg *config.Config, log *logger.Logger) *chrepo.TradeLog {
	if !cfg.ClickHouse.Enabled() {
		log.Info("ClickHouse disabled, trade audit log off")
		return nil
	}

	client, err := clickhouse.NewClient(cfg.ClickHouse)
	if err != nil {
		log.Warnf("Failed to connect to ClickHouse, trade audit log off: %v", err)
		return nil
	}

	log.Info("ClickHouse trade audit log initialized")
	return chrepo.NewTradeLog(client.Conn())
}

// initGateway builds the exchange gateway. Live connectivity is not
// wired yet, so a disabled paper-trading flag is a startup error.
func initGateway(cfg *config.Config, log *logger.Logger) exchange.Gateway {
	if !cfg.Engine.PaperTrading {
		log.Fatal("Live trading gateway is not configured, set ENGINE_PAPER_TRADING=true")
	}

	paper := exchange.NewPaperGateway(nil, decimal.NewFromFloat(cfg.Engine.PaperStartingCapital))
	log.Infow("Paper trading gateway initialized",
		"starting_capital", cfg.Engine.PaperStartingCapital,
		"rate_limit_per_minute", cfg.Engine.ExchangeRateLimit,
	)
	return exchange.NewRateLimited(paper, cfg.Engine.ExchangeRateLimit)
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, scheduler *workers.Scheduler, errorTracker errors.Tracker, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	ossignal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	cancel()

	if err := scheduler.Stop(); err != nil {
		log.Warnf("Scheduler stop: %v", err)
	}

	if errorTracker != nil {
		if err := errorTracker.Flush(ctx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
