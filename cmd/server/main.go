package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/divvyhq/divvy/internal/cache"
	"github.com/divvyhq/divvy/internal/config"
	"github.com/divvyhq/divvy/internal/models"
	"github.com/divvyhq/divvy/internal/service"
	"github.com/divvyhq/divvy/internal/storage"
	"github.com/divvyhq/divvy/internal/storage/postgres"
	"github.com/divvyhq/divvy/internal/storage/sqlite"
	"github.com/divvyhq/divvy/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	store, err := newStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "driver", cfg.StorageDriver)

	balanceCache, err := newCache(cfg)
	if err != nil {
		slog.Error("Failed to initialize balance cache", "error", err)
		os.Exit(1)
	}

	groups := service.NewGroupService(store, balanceCache)
	balances := service.NewBalanceService(store, balanceCache)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	// Read-only debug surface. The caller identity comes from a plain
	// header: this process sits behind a gateway that owns authentication.
	mux.HandleFunc("GET /v0/groups", func(w http.ResponseWriter, r *http.Request) {
		list, err := groups.List(r.Context(), r.Header.Get("X-User-ID"))
		writeJSON(w, list, err)
	})
	mux.HandleFunc("GET /v0/groups/{id}/balances", func(w http.ResponseWriter, r *http.Request) {
		report, err := balances.GroupBalances(r.Context(), r.Header.Get("X-User-ID"), r.PathValue("id"))
		writeJSON(w, report, err)
	})
	mux.HandleFunc("GET /v0/balances", func(w http.ResponseWriter, r *http.Request) {
		report, err := balances.OverallBalances(r.Context(), r.Header.Get("X-User-ID"))
		writeJSON(w, report, err)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	slog.Info("Server starting", "addr", addr, "grace_window", cfg.GraceWindow)
	if err := server.ListenAndServe(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any, err error) {
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, models.ErrUnauthorized):
			http.Error(w, "forbidden", http.StatusForbidden)
		default:
			slog.Error("Request failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func newStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case "postgres":
		return postgres.New(postgres.Config{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			Name:     cfg.PostgresName,
			SSLMode:  cfg.PostgresSSLMode,
		})
	default:
		return sqlite.New(cfg.SQLitePath)
	}
}

func newCache(cfg *config.Config) (cache.Cache, error) {
	if cfg.RedisAddr == "" {
		slog.Info("Using in-process balance cache", "ttl", cfg.CacheTTL)
		return cache.NewMemory(cfg.CacheTTL), nil
	}
	slog.Info("Using Redis balance cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	return cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
}
