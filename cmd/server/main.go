// Package main runs the trading simulator server: ledgers (in-memory or
// PostgreSQL), an optional ClickHouse trade-history mirror, the quote
// cache, and the HTTP API plus Prometheus metrics endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tradesim/internal/api"
	"tradesim/internal/config"
	"tradesim/internal/observability"
	"tradesim/internal/portfolio"
	"tradesim/internal/quotes"
	"tradesim/internal/storage"
	chstore "tradesim/internal/storage/clickhouse"
	"tradesim/internal/storage/memory"
	"tradesim/internal/storage/migrations"
	pgstore "tradesim/internal/storage/postgres"
	"tradesim/internal/trading"
)

// ledgers holds the storage implementations picked at startup.
type ledgers struct {
	trades    storage.TradeLedger
	movements storage.CashLedger
	mirror    storage.TradeMirror
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("TRADESIM_CONFIG"), "Path to YAML config file (optional)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for the trade-history mirror (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	apiAddr := flag.String("api-addr", "", "HTTP API address (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config)")
	quoteBaseURL := flag.String("quote-base-url", "", "Quote endpoint base URL (overrides config)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := loadConfig(*configPath, logger)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Flags win over file and env values.
	if *postgresDSN != "" {
		cfg.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.ClickHouseDSN = *clickhouseDSN
	}
	if *useMemory {
		cfg.UseMemory = true
	}
	if *apiAddr != "" {
		cfg.API.Addr = *apiAddr
	}
	if *metricsAddr != "" {
		cfg.API.MetricsAddr = *metricsAddr
	}
	if *quoteBaseURL != "" {
		cfg.Quotes.BaseURL = *quoteBaseURL
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics("tradesim")

	stores, cleanup, err := createLedgers(ctx, cfg, metrics, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Quote pipeline: HTTP source behind the TTL cache.
	source := quotes.NewHTTPSource(cfg.Quotes.BaseURL, quotes.WithTimeout(cfg.Quotes.FetchTimeout))
	cache := quotes.NewCache(source,
		quotes.WithTTL(cfg.Quotes.TTL),
		quotes.WithFetchTimeout(cfg.Quotes.FetchTimeout),
		quotes.WithMetrics(metrics),
	)

	engineOpts := []trading.EngineOption{
		trading.WithLogger(log.New(os.Stdout, "[trading] ", log.LstdFlags|log.Lshortfile)),
		trading.WithMetrics(metrics),
	}
	if stores.mirror != nil {
		engineOpts = append(engineOpts, trading.WithMirror(stores.mirror))
	}
	engine := trading.NewEngine(stores.trades, stores.movements, engineOpts...)

	builder := portfolio.NewBuilder(stores.trades, stores.movements, cache,
		portfolio.WithLogger(log.New(os.Stdout, "[portfolio] ", log.LstdFlags|log.Lshortfile)),
		portfolio.WithMetrics(metrics),
	)

	apiServer := api.NewServer(cfg.API.Addr, engine, builder, cache, logger)
	if err := apiServer.Start(ctx); err != nil {
		logger.Fatalf("Failed to start API server: %v", err)
	}

	// Metrics + health endpoint.
	go startMetricsServer(cfg.API.MetricsAddr, logger)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Printf("Received signal %v, shutting down...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("API server shutdown: %v", err)
	}

	logger.Println("Shutdown complete")
}

// loadConfig builds the effective config: file (optional), then env.
func loadConfig(path string, logger *log.Logger) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load %s: %w", path, err)
		}
		cfg = loaded
		logger.Printf("Loaded config from %s", path)
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// createLedgers creates the configured storage implementations. The
// ClickHouse mirror is optional in both modes.
func createLedgers(ctx context.Context, cfg config.Config, metrics *observability.Metrics, logger *log.Logger) (*ledgers, func(), error) {
	stores := &ledgers{}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.UseMemory {
		stores.trades = memory.NewTradeLedger()
		stores.movements = memory.NewCashLedger()
		logger.Println("Using in-memory storage")
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}

		stores.trades = pgstore.NewTradeLedger(pool, pgstore.WithTradeLedgerMetrics(metrics))
		stores.movements = pgstore.NewCashLedger(pool, pgstore.WithCashLedgerMetrics(metrics))
		logger.Println("Using PostgreSQL storage")
	}

	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		cleanups = append(cleanups, func() { conn.Close() })

		stores.mirror = chstore.NewTradeHistoryStore(conn)
		logger.Println("ClickHouse trade-history mirror enabled")
	}

	return stores, cleanup, nil
}

// startMetricsServer serves Prometheus metrics and a liveness probe.
func startMetricsServer(addr string, logger *log.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
