// Package server exposes the extraction pipeline over HTTP and as an API
// Gateway HTTP API Lambda handler.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/picklr-io/ocrstack/internal/logging"
	"github.com/picklr-io/ocrstack/internal/ocr"
	"github.com/picklr-io/ocrstack/internal/store"
	"github.com/rs/zerolog"
)

const (
	defaultMaxBody  = 20 << 20
	shutdownTimeout = 10 * time.Second
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "Content-Type, X-Amz-Date, Authorization, X-Api-Key, X-Amz-Security-Token",
	"Access-Control-Allow-Methods": "GET, POST, OPTIONS, PUT, DELETE",
	"Access-Control-Max-Age":       "86400",
}

// Server routes extraction requests to a pipeline and persists generated
// documents in a store.
type Server struct {
	pipeline *ocr.Pipeline
	store    store.Store
	maxBody  int64
	handler  http.Handler
	log      zerolog.Logger
}

func New(pipeline *ocr.Pipeline, docs store.Store) *Server {
	s := &Server{
		pipeline: pipeline,
		store:    docs,
		maxBody:  defaultMaxBody,
		log:      logging.WithComponent("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /{$}", s.handleExtract)
	mux.HandleFunc("POST /extract-text/{$}", s.handleExtractDetailed)
	mux.HandleFunc("POST /process-image-to-word/{$}", s.handleProcessToWord)
	mux.HandleFunc("POST /create-word-document/{$}", s.handleCreateWord)
	mux.HandleFunc("GET /download/{filename}", s.handleDownload)

	s.handler = s.withLogging(withCORS(mux))
	return s
}

// Handler returns the HTTP handler with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("address", addr).Str("engine", s.pipeline.Engine().Name()).Msg("extraction server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// withCORS attaches the cross-origin headers to every response and answers
// preflight requests without reaching the routes.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range corsHeaders {
			w.Header().Set(k, v)
		}
		if r.Method == http.MethodOptions {
			writeJSON(w, http.StatusOK, map[string]string{"message": "CORS preflight successful"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.log.Info().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, label, message string) {
	writeJSON(w, status, errorBody{Error: label, Message: message})
}
