package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/omnisoho/fitshop/internal/cart"
	"github.com/omnisoho/fitshop/internal/catalog"
	"github.com/omnisoho/fitshop/internal/checkout"
	"github.com/omnisoho/fitshop/internal/config"
	"github.com/omnisoho/fitshop/internal/favorites"
	"github.com/omnisoho/fitshop/internal/httpx"
	kafkax "github.com/omnisoho/fitshop/internal/kafka"
	"github.com/omnisoho/fitshop/internal/postgres"
	"github.com/omnisoho/fitshop/internal/redisx"
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
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	// Redis (catalog read cache)
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka lifecycle event stream
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	sw := &sweeper.Sweeper{
		DB:       db,
		Log:      log,
		Window:   cfg.SessionTimeout,
		Producer: prod,
		Service:  cfg.ServiceName,
	}

	h := &httpx.ShopHandler{
		Catalog:   &catalog.Repo{DB: db, Redis: rdb, Log: log},
		Cart:      &cart.Repo{DB: db, Sweeper: sw, Log: log},
		Orders:    &checkout.Repo{DB: db, Sweeper: sw, Producer: prod, Log: log, Service: cfg.ServiceName},
		Favorites: &favorites.Repo{DB: db, Log: log},
		Log:       log,
	}
	router := httpx.NewRouter()
	h.Register(router)

	// in-process periodic sweep alongside the external cron host
	go sw.Run(ctx, cfg.SweepInterval)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // close inbox -> flush & close writer
	prod.WaitClosed() // drain
	cancel()
}
