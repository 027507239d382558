package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/auth"
	"github.com/ariefcatur/go-retail-orders/internal/config"
	"github.com/ariefcatur/go-retail-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/logging"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/payments"
	"github.com/ariefcatur/go-retail-orders/internal/redisx"
	"github.com/ariefcatur/go-retail-orders/internal/store"
	"github.com/ariefcatur/go-retail-orders/internal/telemetry"
	"github.com/go-chi/chi/v5"
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
	log := logging.Init(cfg.ServiceName, cfg.LogLevel, cfg.LogFile)
	if cfg.JWTSecret == "" {
		log.Error("jwt_secret is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.ServiceName, cfg.OtelEndpoint)
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
	cache := redisx.NewSummaryCache(rdb, log)

	// Kafka producer
	prod := kafkax.NewProducer(cfg.Brokers(), 1024, log)
	prod.Start(ctx)

	svc := orders.NewService(db, db, prod,
		orders.WithLogger(log),
		orders.WithProducerName(cfg.ServiceName),
	)
	gateway := cfg.Gateway()
	if err := gateway.Validate(); err != nil {
		log.Warn("online payments disabled", "err", err)
	}
	rec := payments.NewReconciler(gateway, db, svc, prod,
		payments.WithLogger(log),
		payments.WithProducerName(cfg.ServiceName),
	)

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{Service: svc, Cache: cache}
	ph := &httpx.PaymentsHandler{Reconciler: rec, Orders: svc, Cache: cache, ResultURL: cfg.PaymentResultURL}
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware([]byte(cfg.JWTSecret)))
		oh.Register(r)
		ph.Register(r, router)
	})

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // close inbox: flush and close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
	_ = shutdownTracing(ctx2)
}
