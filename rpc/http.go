package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"lifemarket/core/events"
	"lifemarket/core/state"
	"lifemarket/native/market"
	"lifemarket/observability/logging"
	"lifemarket/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestsPerSec  = 20
	requestBurst    = 40
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020

	codeMarketForbidden   = -32031
	codeMarketConflict    = -32032
	codeMarketValue       = -32033
	codeMarketUnsupported = -32034
	codeMarketTransfer    = -32035
	codeMarketExhausted   = -32036
	codeMarketPaused      = -32037
)

// Server exposes the settlement engine over JSON-RPC plus the websocket event
// stream and the Prometheus endpoint.
type Server struct {
	engine   *market.Engine
	store    *state.Manager
	registry *state.Registry
	ledger   *state.PaymentLedger
	stream   *events.Stream
	log      *slog.Logger
	metrics  *metrics.MarketMetrics

	authToken string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer wires the RPC surface. The auth token guards every mutating
// method; an empty token rejects all of them.
func NewServer(engine *market.Engine, store *state.Manager, registry *state.Registry, ledger *state.PaymentLedger, stream *events.Stream, authToken string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:    engine,
		store:     store,
		registry:  registry,
		ledger:    ledger,
		stream:    stream,
		log:       log,
		metrics:   metrics.Market(),
		authToken: strings.TrimSpace(authToken),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Router assembles the HTTP surface: the JSON-RPC endpoint, the websocket
// event stream, health, and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Post("/rpc", s.handleRPC)
	r.Get("/ws/events", s.handleEventsWS)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// Serve runs the HTTP server until the context is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("rpc server listening", "addr", addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeEngineError maps a settlement error onto the wire taxonomy. The status
// stays 200 for domain failures so batch clients keep reading responses.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	code := codeServerError
	switch market.KindOf(err) {
	case market.KindAuthorization:
		code = codeMarketForbidden
	case market.KindState:
		code = codeMarketConflict
	case market.KindValue:
		code = codeMarketValue
	case market.KindUnsupportedAsset:
		code = codeMarketUnsupported
	case market.KindTransferFailure:
		code = codeMarketTransfer
	case market.KindResourceExhausted:
		code = codeMarketExhausted
	case market.KindPaused:
		code = codeMarketPaused
	}
	writeError(w, http.StatusOK, id, code, err.Error(), nil)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"paused": s.engine.Paused(),
	})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	if !s.allowSource(clientSource(r)) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "request rate exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}
	if handler.mutating {
		if authErr := s.requireAuth(r); authErr != nil {
			s.log.Warn("rpc auth rejected",
				slog.String("method", req.Method),
				slog.String("source", clientSource(r)),
				logging.MaskField("authorization", r.Header.Get("Authorization")),
			)
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			s.metrics.ObserveRPC(req.Method, "unauthorized", time.Now())
			return
		}
	}

	started := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	handler.fn(recorder, r, req)
	outcome := "ok"
	if recorder.status >= http.StatusBadRequest {
		outcome = "error"
	}
	s.metrics.ObserveRPC(req.Method, outcome, started)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type methodHandler struct {
	fn       func(http.ResponseWriter, *http.Request, *RPCRequest)
	mutating bool
}

func (s *Server) methods() map[string]methodHandler {
	return map[string]methodHandler{
		"market_createListing":    {fn: s.handleCreateListing, mutating: true},
		"market_cancelListing":    {fn: s.handleCancelListing, mutating: true},
		"market_placeBid":         {fn: s.handlePlaceBid, mutating: true},
		"market_withdrawBid":      {fn: s.handleWithdrawBid, mutating: true},
		"market_acceptBid":        {fn: s.handleAcceptBid, mutating: true},
		"market_buy":              {fn: s.handleBuy, mutating: true},
		"market_withdrawRefund":   {fn: s.handleWithdrawRefund, mutating: true},
		"market_withdrawEarnings": {fn: s.handleWithdrawEarnings, mutating: true},
		"market_setFee":           {fn: s.handleSetFee, mutating: true},
		"market_setMaxFee":        {fn: s.handleSetMaxFee, mutating: true},
		"market_pause":            {fn: s.handlePause, mutating: true},
		"market_resume":           {fn: s.handleResume, mutating: true},
		"market_transferOperator": {fn: s.handleTransferOperator, mutating: true},
		"market_mintAsset":        {fn: s.handleMintAsset, mutating: true},
		"market_fundAccount":      {fn: s.handleFundAccount, mutating: true},
		"market_setApproval":      {fn: s.handleSetApproval, mutating: true},
		"market_getListing":       {fn: s.handleGetListing},
		"market_listListings":     {fn: s.handleListListings},
		"market_getBid":           {fn: s.handleGetBid},
		"market_getRefund":        {fn: s.handleGetRefund},
		"market_getEarnings":      {fn: s.handleGetEarnings},
		"market_getBalance":       {fn: s.handleGetBalance},
		"market_getFeeConfig":     {fn: s.handleGetFeeConfig},
		"market_status":           {fn: s.handleStatus},
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) allowSource(source string) bool {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSec), requestBurst)
		s.limiters[source] = limiter
	}
	return limiter.Allow()
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
