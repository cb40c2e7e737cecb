package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tortoise-guard/internal/antiraid"
	"tortoise-guard/internal/aoc"
	"tortoise-guard/internal/bot"
	"tortoise-guard/internal/cache"
	"tortoise-guard/internal/config"
	"tortoise-guard/internal/metrics"
	"tortoise-guard/internal/storage"
	"tortoise-guard/internal/suppress"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := storage.New(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	err = store.Migrate(ctx)
	cancel()
	if err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	var boardCache *cache.Leaderboard
	if cfg.RedisAddr != "" {
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		boardCache, err = cache.NewLeaderboard(ctx, cfg.RedisAddr, time.Duration(cfg.Points.CacheTTLSeconds)*time.Second)
		cancel()
		if err != nil {
			logger.Fatal("redis init failed", zap.Error(err))
		}
		defer func() {
			_ = boardCache.Close()
		}()
	}

	m := metrics.New()
	suppressed := suppress.NewSet()
	detector := antiraid.New(
		antiraid.PolicyFromConfig(cfg.AntiRaid),
		cfg.AntiRaid.BaitChannelID,
		logger,
		m,
	)

	var aocClient *aoc.Client
	if cfg.AoC.SessionCookie != "" {
		aocClient = aoc.NewClient(cfg.AoC.LeaderboardID, cfg.AoC.Year, cfg.AoC.SessionCookie)
	}

	botSvc, err := bot.New(cfg, logger, store, boardCache, detector, aocClient, suppressed, m)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started",
		zap.String("policy", cfg.AntiRaid.Policy))

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(botSvc.Health())
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if !botSvc.Ready() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		mux.Handle("/metrics", promhttp.Handler())
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}
