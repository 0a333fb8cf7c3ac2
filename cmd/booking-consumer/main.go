package main

// booking-consumer drains the booking event queue and appends one line per
// event to a log file.

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-booking/internal/logger"
	"github.com/iliyamo/seat-booking/internal/queue"
)

func main() {
	os.Exit(start())
}

func start() int {
	_ = godotenv.Load()

	if err := logger.Init(&logger.Config{
		Level:       getenv("LOG_LEVEL", "info"),
		ServiceName: "booking-consumer",
		Development: getenv("APP_ENV", "dev") == "dev",
	}); err != nil {
		log.Printf("logger: %v", err)
		return 1
	}
	defer logger.Sync()
	lg := logger.Get()

	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		lg.Error("RABBITMQ_URL is required")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &queue.Consumer{
		URL:      url,
		Queue:    getenv("RABBITMQ_QUEUE", queue.DefaultQueue),
		Prefetch: 10,
		Handle:   queue.FileSink(getenv("BOOKING_LOG_PATH", "logs/booking.log")),
		Log:      lg,
	}
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		lg.Error("consumer stopped", zap.Error(err))
		return 1
	}
	lg.Info("consumer stopped")
	return 0
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
