// Auditor consumes the lifecycle topics and appends each event to the
// order_events trail.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/omnisoho/fitshop/internal/audit"
	"github.com/omnisoho/fitshop/internal/config"
	kafkax "github.com/omnisoho/fitshop/internal/kafka"
	"github.com/omnisoho/fitshop/internal/postgres"
	"github.com/omnisoho/fitshop/internal/redisx"
	"github.com/omnisoho/fitshop/internal/shop"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	rec := &audit.Recorder{DB: db, Redis: rdb, Log: log}

	group := getenv("AUDIT_GROUP", "shop-auditor")
	workers := atoi(os.Getenv("AUDIT_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, shop.Topics(), workers, log)

	go func() {
		log.Info("auditor started",
			zap.String("group", group),
			zap.Strings("topics", shop.Topics()),
			zap.Int("workers", workers))
		if err := cons.Start(ctx, rec.HandleEvent); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down auditor")
	cancel()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
