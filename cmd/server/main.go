package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teatak/absa/config"
	"github.com/teatak/absa/internal/logging"
	"github.com/teatak/absa/internal/pipeline"
	"github.com/teatak/absa/tagger"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

// server holds the current tagger behind an RWMutex for hot reloading.
type server struct {
	cfg    *config.Config
	logger *zap.Logger

	mu     sync.RWMutex
	tagger *tagger.Tagger
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger := logging.Must(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	s := &server{cfg: cfg, logger: logger}
	// 1. Initial Load
	if err := s.reload(); err != nil {
		logger.Fatal("initial load failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server started", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/tag", s.withRequestID(s.handleTag))
	mux.HandleFunc("/reload", s.withRequestID(s.handleReload))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// reload rebuilds the tagger from disk and swaps it in. The old tagger
// stays in service if loading fails.
func (s *server) reload() error {
	s.logger.Info("reloading tagger")
	tg, err := pipeline.LoadTagger(s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tagger = tg
	s.mu.Unlock()
	s.logger.Info("tagger reloaded")
	return nil
}

func (s *server) current() *tagger.Tagger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tagger
}

type ctxKey struct{}

func (s *server) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	}
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

// Request/Response types
type TagRequest struct {
	Text   string `json:"text"`
	Unique bool   `json:"unique"`
}

type TagResponse struct {
	Aspects []tagger.Aspect `json:"aspects"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

func (s *server) handleTag(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{"method not allowed", requestID(r)})
		return
	}

	var req TagRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error(), requestID(r)})
		return
	}

	start := time.Now()
	aspects, err := s.current().Tag(req.Text)
	if err != nil {
		s.logger.Error("tagging failed", zap.String("request_id", requestID(r)), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error(), requestID(r)})
		return
	}
	if req.Unique {
		aspects = tagger.Unique(aspects)
	}
	if aspects == nil {
		aspects = []tagger.Aspect{}
	}
	s.logger.Debug("tagged",
		zap.String("request_id", requestID(r)),
		zap.Int("aspects", len(aspects)),
		zap.Duration("took", time.Since(start)))
	writeJSON(w, http.StatusOK, TagResponse{Aspects: aspects})
}

func (s *server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{"method not allowed", requestID(r)})
		return
	}
	if err := s.reload(); err != nil {
		s.logger.Error("reload failed", zap.String("request_id", requestID(r)), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error(), requestID(r)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
