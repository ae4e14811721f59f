// One-shot bulk sweep for the external cron/scheduler host. Exits zero even
// when the store is unreachable - a transient outage must not flap the cron
// job; the sweep logs and reports a zero-effect run instead.
package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/omnisoho/fitshop/internal/config"
	kafkax "github.com/omnisoho/fitshop/internal/kafka"
	"github.com/omnisoho/fitshop/internal/postgres"
	"github.com/omnisoho/fitshop/internal/sweeper"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Warn("db unreachable, zero-effect sweep", zap.Error(err))
		return
	}
	defer db.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	sw := &sweeper.Sweeper{
		DB:       db,
		Log:      log,
		Window:   cfg.SessionTimeout,
		Producer: prod,
		Service:  cfg.ServiceName + "-sweeper",
	}
	stats := sw.SweepAll(ctx)
	log.Info("sweep run complete",
		zap.Int("candidates", stats.Candidates),
		zap.Int("expired_orders", stats.ExpiredOrders),
		zap.Int("expired_carts", stats.ExpiredCarts))

	prod.Close()
	prod.WaitClosed()
}
