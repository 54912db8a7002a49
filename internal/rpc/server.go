package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Aman-CERP/ragmcp/internal/artifact"
	"github.com/Aman-CERP/ragmcp/internal/embed"
	"github.com/Aman-CERP/ragmcp/internal/service"
)

const maxRequestBytes = 1 << 20

// Server serves the JSON-RPC endpoint over HTTP.
type Server struct {
	service *service.Retrieval
	http    *http.Server
	logger  *slog.Logger
}

// NewServer creates an HTTP server bound to addr.
func NewServer(svc *service.Retrieval, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		service: svc,
		logger:  logger.With(slog.String("component", "rpc")),
	}

	r := mux.NewRouter()
	r.HandleFunc("/rpc", s.handleRPC).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ListenAndServe blocks serving requests until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("RPC server listening", slog.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": s.service.Status().State})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req Request
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, NewErrorResponse(nil, ErrCodeParseError, "could not parse request body"))
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		writeJSON(w, http.StatusOK, NewErrorResponse(req.ID, ErrCodeInvalidRequest, "jsonrpc must be \"2.0\""))
		return
	}

	switch req.Method {
	case MethodQuery:
		writeJSON(w, http.StatusOK, s.handleQuery(r.Context(), req))
	case MethodStatus:
		writeJSON(w, http.StatusOK, NewSuccessResponse(req.ID, s.service.Status()))
	case MethodPing:
		writeJSON(w, http.StatusOK, NewSuccessResponse(req.ID, PingResult{Pong: true}))
	default:
		writeJSON(w, http.StatusOK, NewErrorResponse(req.ID, ErrCodeMethodNotFound, "unknown method: "+req.Method))
	}
}

func (s *Server) handleQuery(ctx context.Context, req Request) Response {
	var params QueryParams
	raw, err := json.Marshal(req.Params)
	if err == nil {
		err = json.Unmarshal(raw, &params)
	}
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "params must be an object with a query string")
	}
	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	results, err := s.service.Query(ctx, params.Query, params.K)
	if err != nil {
		code, msg := mapError(err)
		s.logger.Warn("query failed", slog.String("error", err.Error()))
		return NewErrorResponse(req.ID, code, msg)
	}

	out := make([]QueryResult, len(results))
	for i, res := range results {
		out[i] = QueryResult{
			ChunkID:  res.ChunkID,
			Text:     res.Text,
			Distance: res.Distance,
			Rank:     res.Rank,
		}
	}
	return NewSuccessResponse(req.ID, out)
}

// mapError converts service errors to JSON-RPC error codes.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidQuery):
		return ErrCodeInvalidParams, "query must be a non-empty string"
	case errors.Is(err, service.ErrNotReady):
		return ErrCodeServiceUnavailable, "artifacts are still loading, retry shortly"
	case errors.Is(err, artifact.ErrMissing):
		return ErrCodeServiceUnavailable, "no index found, run 'ragmcp index' first"
	case errors.Is(err, service.ErrUnavailable), errors.Is(err, service.ErrClosed):
		return ErrCodeServiceUnavailable, "retrieval service unavailable: " + err.Error()
	case errors.Is(err, embed.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout, "request timed out"
	default:
		return ErrCodeInternalError, "internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
