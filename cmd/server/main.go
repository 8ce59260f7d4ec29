package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tradingflow/server/internal/brokerage"
	"github.com/tradingflow/server/internal/brokerage/server"
	"github.com/tradingflow/server/internal/domain"
	"github.com/tradingflow/server/internal/exchange"
	"github.com/tradingflow/server/internal/exchange/binance"
	"github.com/tradingflow/server/internal/statecache"
	"github.com/tradingflow/server/pkg/config"
	"github.com/tradingflow/server/pkg/logger"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("TRADINGFLOW_CONFIG"), "yaml config file path (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}

	store, err := brokerage.OpenStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("open store failed: %v", err)
	}
	defer store.Close()

	cache, err := statecache.Open(cfg.CacheDir)
	if err != nil {
		log.Fatalf("open state cache failed: %v", err)
	}
	defer cache.Close()

	factories := map[domain.Exchange]exchange.Factory{
		domain.ExchangeBinance: binance.NewFactory(cfg.Binance.SpotBaseURL, cfg.Binance.FuturesBaseURL),
	}
	coordinator := brokerage.NewCoordinator(store, cache, factories)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.New(coordinator).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("brokerage gateway listening on %s", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)

	logger.Infof("server stopped")
}
