package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mohamedkhairy/crypto-trader/internal/config"
	"github.com/mohamedkhairy/crypto-trader/internal/exchange"
	"github.com/mohamedkhairy/crypto-trader/internal/exec"
	"github.com/mohamedkhairy/crypto-trader/internal/feature"
	"github.com/mohamedkhairy/crypto-trader/internal/models"
	"github.com/mohamedkhairy/crypto-trader/internal/notify"
	"github.com/mohamedkhairy/crypto-trader/internal/risk"
	"github.com/mohamedkhairy/crypto-trader/internal/scanner"
	strategy "github.com/mohamedkhairy/crypto-trader/internal/signal"
	"github.com/mohamedkhairy/crypto-trader/internal/storage"
	"github.com/mohamedkhairy/crypto-trader/internal/trader"
	"github.com/mohamedkhairy/crypto-trader/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting trader service",
		logger.String("mode", cfg.Mode),
		logger.String("windows", cfg.Session.Windows),
		logger.String("timezone", cfg.Session.Timezone),
	)

	loc, err := time.LoadLocation(cfg.Session.Timezone)
	if err != nil {
		logger.Fatal("Failed to load timezone", logger.ErrorField(err))
	}
	schedule, err := trader.ParseSchedule(cfg.Session.Windows, loc)
	if err != nil {
		logger.Fatal("Failed to parse session windows", logger.ErrorField(err))
	}

	// Risk-state persistence and notifications live in Redis when configured.
	var (
		riskStore risk.Store      = risk.NewMemoryStore()
		notifier  notify.Notifier = notify.Noop{}
	)
	if cfg.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		defer redisClient.Close()

		riskStore, err = risk.NewRedisStore(redisClient, risk.DefaultRedisStoreConfig())
		if err != nil {
			logger.Fatal("Failed to initialize risk store", logger.ErrorField(err))
		}

		notifyCfg := notify.DefaultRedisConfig()
		notifyCfg.StreamName = cfg.Redis.EventStream
		notifier = notify.NewRedisNotifier(redisClient, notifyCfg)
	}

	// Trade recording is optional; the loop runs on memory when no DB is set.
	var tradeStore storage.TradeStore = storage.NewMemoryStore()
	if cfg.Database.Enabled() {
		pg, err := storage.NewPostgresStore(storage.PostgresConfig{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxConnections:  cfg.Database.MaxConnections,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			logger.Fatal("Failed to connect to trade database", logger.ErrorField(err))
		}
		defer pg.Close()
		tradeStore = pg
	}

	upbitCfg := exchange.DefaultUpbitConfig()
	upbitCfg.BaseURL = cfg.Exchange.BaseURL
	upbitCfg.Timeout = cfg.Exchange.RequestTimeout
	upbitCfg.MaxRetries = cfg.Exchange.MaxRetries
	upbitCfg.RequestsPerSec = cfg.Exchange.RequestsPerSec
	upbit := exchange.NewUpbitClient(upbitCfg, exchange.Credentials{
		AccessKey: cfg.Exchange.AccessKey,
		SecretKey: cfg.Exchange.SecretKey,
	})

	featureCfg := feature.DefaultConfig()
	featureCfg.CandleUnit = cfg.Scanner.CandleUnit
	features := feature.NewEngine(featureCfg)

	scanCfg := scanner.DefaultConfig()
	scanCfg.Benchmark = cfg.Scanner.Benchmark
	scanCfg.Workers = cfg.Scanner.Workers
	scanCfg.CandleUnit = cfg.Scanner.CandleUnit
	scanCfg.CandleCount = cfg.Scanner.CandleCount
	scanCfg.RVolThreshold = cfg.Scanner.RVolThreshold
	scanCfg.SpreadBPMax = cfg.Scanner.SpreadBPMax
	scanCfg.RequireTrend = cfg.Scanner.RequireTrend
	scanCfg.MinScore = cfg.Scanner.MinScore
	scanCfg.TopK = cfg.Scanner.CandidateCount
	scanCfg.Universe.MaxMarkets = cfg.Scanner.MaxMarkets
	scanCfg.Universe.MinTurnover24h = cfg.Scanner.MinTurnover24h
	scn := scanner.NewScanner(scanCfg, upbit, features)

	signals := strategy.NewEngine(strategy.DefaultConfig())

	riskMgr := risk.NewManager(risk.Config{
		PerTradeRiskPct:      cfg.Risk.PerTradeRiskPct,
		DailyDrawdownPct:     cfg.Risk.DailyDrawdownPct,
		MaxConsecutiveLosses: cfg.Risk.MaxConsecutiveLosses,
		MinOrderValue:        cfg.Risk.MinOrderValue,
		MaxPositionValue:     cfg.Risk.MaxPositionValue,
		MaxOpenPositions:     cfg.Risk.MaxOpenPositions,
	}, riskStore)

	// Order routing: simulated fills in paper mode, Upbit in live mode. Live
	// mode also watches the websocket ticker stream for stop/target exits.
	var gateway exchange.OrderGateway = upbit
	var stream *exchange.PriceStream
	if cfg.Mode == trader.ModePaper {
		gateway = exec.NewPaperGateway(exec.PaperConfig{
			InitialBalance: cfg.Paper.StartingEquity,
			SlippageBP:     cfg.Paper.SlippageBP,
			TakerFeePct:    cfg.Paper.TakerFeePct,
		})
	} else {
		streamCfg := exchange.DefaultStreamConfig()
		streamCfg.URL = cfg.Exchange.WebSocketURL
		stream = exchange.NewPriceStream(streamCfg, nil)
	}

	var tr *trader.Trader
	executor := exec.NewExecutor(exec.DefaultConfig(), gateway, func(ctx context.Context, event *models.PositionClose) {
		tr.HandleClose(ctx, event)
	})

	tr = trader.New(trader.Config{
		Mode:           cfg.Mode,
		ScanInterval:   cfg.Session.ScanInterval,
		CandleUnit:     cfg.Scanner.CandleUnit,
		StartingEquity: cfg.Paper.StartingEquity,
	}, schedule, scn, signals, riskMgr, executor, gateway, notifier, tradeStore, stream)

	if err := tr.Start(); err != nil {
		logger.Fatal("Failed to start trader", logger.ErrorField(err))
	}

	healthServer := startHealthServer(cfg.HealthPort, tr, riskMgr, executor)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		healthServer.Shutdown(shutdownCtx)
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down trader service")

	tr.Stop()
	notifier.Close()

	logger.Info("Trader service stopped")
}

// startHealthServer starts the HTTP server for health checks and metrics
func startHealthServer(port int, tr *trader.Trader, riskMgr *risk.Manager, executor *exec.Executor) *http.Server {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthHandler(tr, riskMgr, executor))
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		logger.Info("Health server listening", logger.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server failed", logger.ErrorField(err))
		}
	}()

	return server
}

func healthHandler(tr *trader.Trader, riskMgr *risk.Manager, executor *exec.Executor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := tr.GetStats()

		// State is nil until the first successful StartDay, for example while
		// the risk store is still unreachable.
		riskCheck := map[string]interface{}{"day_started": false}
		degraded := false
		if state := riskMgr.State(); state != nil {
			riskCheck = map[string]interface{}{
				"day_started":  true,
				"halted":       state.Halted,
				"realized_pnl": state.RealizedPnL,
				"trades":       state.Trades,
			}
			degraded = state.Halted
		} else {
			degraded = true
		}

		health := map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"checks": map[string]interface{}{
				"loop": map[string]interface{}{
					"cycles":     stats.Cycles,
					"last_cycle": stats.LastCycle,
					"last_error": stats.LastError,
				},
				"risk": riskCheck,
				"positions": map[string]interface{}{
					"open": len(executor.Positions()),
				},
			},
		}
		if degraded {
			health["status"] = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	}
}
