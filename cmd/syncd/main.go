// Package main runs the wallet balance synchronization daemon: it watches
// wallets over the Solana WebSocket endpoint, reconciles cached balances
// against chain state and serves status and metrics over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"

	"solana-wallet-sync/internal/config"
	"solana-wallet-sync/internal/observability"
	"solana-wallet-sync/internal/pricing"
	"solana-wallet-sync/internal/push"
	"solana-wallet-sync/internal/reconcile"
	"solana-wallet-sync/internal/solana"
	"solana-wallet-sync/internal/storage"
	chstore "solana-wallet-sync/internal/storage/clickhouse"
	"solana-wallet-sync/internal/storage/memory"
	"solana-wallet-sync/internal/storage/migrations"
	pgstore "solana-wallet-sync/internal/storage/postgres"
	walletsync "solana-wallet-sync/internal/sync"
	"solana-wallet-sync/internal/ws"
)

type stores struct {
	balances  storage.BalanceStore
	totals    storage.TotalsStore
	processed storage.ProcessedTxStore
	launched  storage.LaunchedTokenStore
	history   storage.BalanceHistoryStore
}

func main() {
	// Load .env if present; real env vars win.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("WALLET_SYNC_CONFIG"), "Path to YAML config file")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional, enables balance history)")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address (optional, enables push notifications)")
	priceAPI := flag.String("price-api", os.Getenv("PRICE_API_URL"), "Price API base URL")
	httpAddr := flag.String("http-addr", "", "Status/metrics HTTP address")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	wallets := flag.String("wallets", "", "Comma-separated wallet addresses to watch on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags override file values.
	if *rpcEndpoint != "" {
		cfg.Solana.RPCEndpoint = *rpcEndpoint
	}
	if *wsEndpoint != "" {
		cfg.Solana.WSEndpoint = *wsEndpoint
	}
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickhouseDSN = *clickhouseDSN
	}
	if *redisAddr != "" {
		cfg.Push.RedisAddr = *redisAddr
	}
	if *priceAPI != "" {
		cfg.Pricing.PriceAPIURL = *priceAPI
	}
	if *httpAddr != "" {
		cfg.HTTP.Addr = *httpAddr
	}

	logger := newLogger(cfg.Log)

	if cfg.Solana.RPCEndpoint == "" || cfg.Solana.WSEndpoint == "" {
		logger.Error("rpc and ws endpoints are required (flags, env or config file)")
		os.Exit(1)
	}
	if !*useMemory && cfg.Storage.PostgresDSN == "" {
		logger.Error("postgres DSN is required (use --use-memory for in-memory storage)")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, cfg.Storage, *useMemory, logger)
	if err != nil {
		logger.Error("creating stores", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	metrics := observability.NewMetrics("wallet_sync")

	var pricer *pricing.HTTPPriceClient
	if cfg.Pricing.PriceAPIURL != "" {
		pricer = pricing.NewHTTPPriceClient(cfg.Pricing.PriceAPIURL,
			pricing.WithCacheTTL(cfg.Pricing.CacheTTL))
	}

	resolver := buildResolver(st.launched, pricer, logger, metrics)

	var publisher push.Publisher = push.NopPublisher{}
	if cfg.Push.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Push.RedisAddr,
			Password: cfg.Push.RedisPassword,
			DB:       cfg.Push.RedisDB,
		})
		defer client.Close()
		publisher = push.NewRedisPublisher(client, cfg.Push.Channel, logger)
		logger.Info("push notifications enabled", "channel", cfg.Push.Channel)
	}

	rpc := solana.NewHTTPClient(cfg.Solana.RPCEndpoint)

	engineOpts := []reconcile.Option{
		reconcile.WithMetrics(metrics),
		reconcile.WithPublisher(publisher),
	}
	if st.history != nil {
		engineOpts = append(engineOpts, reconcile.WithHistory(st.history))
	}

	var solPricer reconcile.SolPricer
	if pricer != nil {
		solPricer = pricer
	}
	engine := reconcile.NewEngine(st.balances, st.totals, st.processed, rpc,
		resolver, solPricer, logger, engineOpts...)

	wsCfg := ws.DefaultConfig(cfg.Solana.WSEndpoint)
	wsCfg.HeartbeatInterval = cfg.Connection.HeartbeatInterval
	wsCfg.SendGap = cfg.Connection.SendGap
	wsCfg.BackoffFloor = cfg.Connection.BackoffFloor
	wsCfg.BackoffCap = cfg.Connection.BackoffCap
	wsCfg.JitterMax = cfg.Connection.JitterMax
	wsCfg.MaxFailures = cfg.Connection.MaxFailures

	svcCfg := walletsync.Config{
		BatchGap:        cfg.Refresh.BatchGap,
		RefreshAttempts: cfg.Refresh.Attempts,
		RefreshInterval: cfg.Refresh.Interval,
	}

	service := walletsync.New(svcCfg, wsCfg, engine, st.totals, logger, metrics)
	defer service.Close()

	if list := splitWallets(*wallets); len(list) > 0 {
		logger.Info("subscribing startup wallets", "count", len(list))
		if err := service.BatchSubscribe(ctx, list); err != nil {
			logger.Warn("startup batch subscribe interrupted", "error", err)
		}
	}

	httpServer := startHTTPServer(cfg.HTTP.Addr, service, logger)

	logger.Info("wallet sync daemon started",
		"ws_endpoint", cfg.Solana.WSEndpoint, "http_addr", cfg.HTTP.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	cancel()
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func createStores(ctx context.Context, cfg config.StorageConfig, useMemory bool, logger *slog.Logger) (*stores, func(), error) {
	if useMemory {
		return &stores{
			balances:  memory.NewBalanceStore(),
			totals:    memory.NewTotalsStore(),
			processed: memory.NewProcessedTxStore(),
			launched:  memory.NewLaunchedTokenStore(),
			history:   memory.NewBalanceHistoryStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	st := &stores{
		balances:  pgstore.NewBalanceStore(pool),
		totals:    pgstore.NewTotalsStore(pool),
		processed: pgstore.NewProcessedTxStore(pool),
		launched:  pgstore.NewLaunchedTokenStore(pool),
	}
	cleanup := func() { pool.Close() }

	// ClickHouse history is optional.
	if cfg.ClickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		st.history = chstore.NewBalanceHistoryStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
		logger.Info("balance history enabled")
	}

	return st, cleanup, nil
}

func buildResolver(launched storage.LaunchedTokenStore, pricer *pricing.HTTPPriceClient, logger *slog.Logger, metrics *observability.Metrics) *pricing.Chain {
	var p pricing.Pricer
	if pricer != nil {
		p = pricer
	}

	tiers := []pricing.Resolver{
		pricing.NewLaunchedResolver(launched, p, logger),
		pricing.NewStaticResolver(p),
	}
	if pricer != nil {
		tiers = append(tiers, pricing.NewExternalResolver(pricer))
	}
	return pricing.NewChain(logger, metrics, tiers...)
}

func splitWallets(s string) []string {
	if s == "" {
		return nil
	}
	var list []string
	for _, w := range strings.Split(s, ",") {
		if w = strings.TrimSpace(w); w != "" {
			list = append(list, w)
		}
	}
	return list
}

func startHTTPServer(addr string, service *walletsync.Service, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(service.Status())
	})

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
		}
	}()
	return server
}
