package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/config"
	"github.com/ariefcatur/go-retail-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/logging"
	"github.com/ariefcatur/go-retail-orders/internal/redisx"
	"github.com/ariefcatur/go-retail-orders/internal/store"
	"github.com/ariefcatur/go-retail-orders/internal/telemetry"
	"github.com/joho/godotenv"
)

func main() {
	cfgPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logging.Base().Error("config", "err", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.ServiceName+"-inventory", cfg.LogLevel, cfg.LogFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.ServiceName+"-inventory", cfg.OtelEndpoint)
	if err != nil {
		log.Error("tracing", "err", err)
		os.Exit(1)
	}

	// DB
	db, closeDB, err := store.Open(ctx, cfg)
	if err != nil {
		log.Error("store", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer closeDB()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	recv := &inventory.Receiving{
		Store: db,
		Dedup: redisx.NewDedup(rdb),
		Log:   log,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.Brokers(), cfg.InventoryGroup, inventory.TopicGoodsReceived, cfg.InventoryWorkers, log)
	go func() {
		log.Info("inventory consumer started", "group", cfg.InventoryGroup, "topic", inventory.TopicGoodsReceived, "workers", cfg.InventoryWorkers)
		if err := cons.Start(ctx, recv.HandleGoodsReceived); err != nil {
			log.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	time.Sleep(500 * time.Millisecond)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = shutdownTracing(ctx2)
}
