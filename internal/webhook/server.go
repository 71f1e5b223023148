package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vk/jobsmith/internal/ctxlog"
	"github.com/vk/jobsmith/internal/jenkins"
)

// Processor synchronizes the jobs of one pushed branch. *Synchronizer
// implements it; tests substitute a fake.
type Processor interface {
	Process(ctx context.Context, req PushRequest) (jenkins.PublishResult, error)
}

// Parser turns one webhook delivery into push requests.
type Parser func(ctx context.Context, header http.Header, body []byte) ([]PushRequest, error)

// Server is the webhook HTTP server. Stash posts to / or /stash, GitHub to
// /github. A GET (or an empty POST, which is what Stash's "Test Connection"
// button sends) answers with the version banner.
type Server struct {
	version     string
	parseStash  Parser
	parseGitHub Parser
	processor   Processor

	httpServer *http.Server
}

// NewServer wires the endpoint handlers to their parsers and the processor.
func NewServer(version string, parseStash, parseGitHub Parser, processor Processor) *Server {
	return &Server{
		version:     version,
		parseStash:  parseStash,
		parseGitHub: parseGitHub,
		processor:   processor,
	}
}

// Handler returns the server's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.endpoint(s.parseStash))
	mux.HandleFunc("/stash", s.endpoint(s.parseStash))
	mux.HandleFunc("/github", s.endpoint(s.parseGitHub))
	return mux
}

// endpoint is the handling shared by every route: read the delivery, parse
// it into push requests, process each one and report what changed.
func (s *Server) endpoint(parse Parser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.FromContext(r.Context()).With(
			"request_id", uuid.NewString(),
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
		ctx := ctxlog.WithLogger(r.Context(), logger)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			logger.Error("Failed to read request body", "error", err)
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		if r.Method == http.MethodGet || len(body) == 0 {
			logger.Info("I'm alive")
			fmt.Fprint(w, s.version)
			return
		}
		if !json.Valid(body) {
			logger.Info("POST body not in JSON format", "content_type", r.Header.Get("Content-Type"))
			http.Error(w, "only posts in JSON format accepted", http.StatusBadRequest)
			return
		}

		requests, err := parse(ctx, r.Header, body)
		if err != nil {
			var sigErr *SignatureError
			if errors.As(err, &sigErr) {
				logger.Error("Header signature does not match", "error", err)
				http.Error(w, err.Error(), http.StatusForbidden)
				return
			}
			logger.Error("Failed to parse push event", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logger.Info("Parsed push requests", "count", len(requests))

		var lines []string
		for _, request := range requests {
			logger.Info("Processing push request", "request", request.String())
			result, err := s.processor.Process(ctx, request)
			if err != nil {
				logger.Error("Failed to process push request", "request", request.String(), "error", err)
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			for _, name := range result.New {
				lines = append(lines, "NEW - "+name)
			}
			for _, name := range result.Updated {
				lines = append(lines, "UPD - "+name)
			}
			for _, name := range result.Deleted {
				lines = append(lines, "DEL - "+name)
			}
		}

		message := strings.Join(lines, "\n")
		logger.Info("Push requests processed", "output", message)
		fmt.Fprint(w, message)
	}
}

// ListenAndServe runs the server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	logger := ctxlog.FromContext(ctx)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Webhook server starting", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("Shutting down webhook server...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Webhook server shutdown failed", "error", err)
		return err
	}
	logger.Debug("Webhook server shut down gracefully.")
	return <-errCh
}
