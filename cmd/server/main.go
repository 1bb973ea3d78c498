package main

import (
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/romba050/hand-written-digits/internal/config"
	"github.com/romba050/hand-written-digits/internal/handlers"
	"github.com/romba050/hand-written-digits/internal/history"
	"github.com/romba050/hand-written-digits/internal/model"
)

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	// A missing artifact is a degraded state, not a startup failure: the
	// server runs and inference endpoints report the condition.
	handle, err := model.Load(cfg.ModelPath)
	switch {
	case err == nil:
		logger.Info("model loaded", "path", cfg.ModelPath, "layers", len(handle.Layers()))
	case errors.Is(err, fs.ErrNotExist):
		handle = nil
		logger.Warn("model artifact not found, run the trainer first", "path", cfg.ModelPath)
	default:
		logger.Error("model load failed", "error", err, "path", cfg.ModelPath)
		os.Exit(1)
	}

	var predLog *history.Log
	if cfg.HistoryDB != "" {
		predLog, err = history.Open(cfg.HistoryDB)
		if err != nil {
			logger.Error("history db open failed", "error", err, "path", cfg.HistoryDB)
			os.Exit(1)
		}
		defer predLog.Close()
	}

	h := handlers.New(handle, cfg, predLog, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)
	h.Routes(r)

	logger.Info("server starting", "addr", cfg.Addr, "model_loaded", handle != nil)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
