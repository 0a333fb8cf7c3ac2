package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/seat-booking/internal/config"
	"github.com/iliyamo/seat-booking/internal/database"
	"github.com/iliyamo/seat-booking/internal/handler"
	"github.com/iliyamo/seat-booking/internal/logger"
	"github.com/iliyamo/seat-booking/internal/middleware"
	"github.com/iliyamo/seat-booking/internal/queue"
	"github.com/iliyamo/seat-booking/internal/repository"
	"github.com/iliyamo/seat-booking/internal/router"
	"github.com/iliyamo/seat-booking/internal/service"
)

func main() {
	os.Exit(start())
}

// start owns every deferred cleanup so that they run before main exits
// with its status.
func start() int {
	_ = godotenv.Load() // a missing .env is fine; the environment wins

	cfg, err := config.Load()
	if err != nil {
		log.Printf("config: %v", err)
		return 1
	}
	if err := logger.Init(&logger.Config{
		Level:       cfg.LogLevel,
		ServiceName: "seat-booking",
		Development: !cfg.IsProduction(),
	}); err != nil {
		log.Printf("logger: %v", err)
		return 1
	}
	defer logger.Sync()
	lg := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Error("server stopped", zap.Error(err))
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg config.Config, lg *zap.Logger) error {
	db, err := database.Open(ctx, cfg.DSN(), cfg.DBMaxOpenConns)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	// Redis only backs the rate limiter; run without it when unreachable.
	var rdb *redis.Client
	if rc, err := config.NewRedisClient(ctx, config.LoadRedisConfig()); err != nil {
		lg.Warn("redis unavailable, rate limiting per instance", zap.Error(err))
	} else {
		rdb = rc
		defer rdb.Close()
	}

	opts := []service.Option{
		service.WithLockTTL(cfg.LockTTL),
		service.WithNotifyTimeout(cfg.NotifyTimeout),
		service.WithLogger(lg.Named("engine")),
	}
	var pub *queue.Publisher
	if cfg.RabbitURL != "" {
		pub = queue.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue, lg.Named("publisher"))
		opts = append(opts, service.WithNotifier(pub))
	}
	engine := service.NewEngine(repository.NewMySQLStore(db), opts...)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(lg.Named("http")))

	router.Register(e, router.Deps{
		Bookings:  handler.NewBookingHandler(engine, lg.Named("handler")),
		JWTSecret: cfg.JWTSecret,
		Limiter:   middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, lg.Named("ratelimit")),
		Ready:     handler.Ready(db),
	})

	addr := ":" + cfg.Port
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("listening",
			zap.String("addr", addr),
			zap.String("env", cfg.Env),
			zap.Duration("lock_ttl", engine.LockTTL()),
		)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := e.Shutdown(sctx)
		// let post-commit notifications drain before the publisher goes
		engine.Wait()
		if pub != nil {
			if cerr := pub.Close(); cerr != nil {
				lg.Warn("close publisher", zap.Error(cerr))
			}
		}
		lg.Info("shutdown complete")
		return err
	})
	return g.Wait()
}
