package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"settlr/audit"
	"settlr/crypto"
	"settlr/native/settlement"
	"settlr/native/token"
	"settlr/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "SETTLR_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeUnauthorized   = -32001
	codeServerError    = -32000

	codeSettlementInvalidParams = -32021
	codeSettlementNotFound      = -32022
	codeSettlementForbidden     = -32023
	codeSettlementConflict      = -32024
	codeSettlementInternal      = -32025
)

type Server struct {
	engine    *settlement.Engine
	state     settlement.State
	custody   *token.Ledger
	auditLog  *audit.Log
	authToken string
	logger    *slog.Logger
}

// NewServer wires the JSON-RPC surface over the settlement engine. The bearer
// token guarding mutating methods is read from the SETTLR_RPC_TOKEN
// environment variable.
func NewServer(engine *settlement.Engine, state settlement.State, custody *token.Ledger, auditLog *audit.Log, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		state:     state,
		custody:   custody,
		auditLog:  auditLog,
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
		logger:    logger,
	}
}

// Router assembles the HTTP routes: the JSON-RPC endpoint, a liveness probe
// and the prometheus metrics endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	return http.ListenAndServe(addr, s.Router())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info("http request",
			slog.String("requestId", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", recorder.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
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

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	if strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid_request", "method required")
		return
	}
	start := time.Now()
	defer func() {
		observability.Settlement().ObserveRPCDuration(req.Method, time.Since(start).Seconds())
	}()

	switch req.Method {
	case "settlement_initialize":
		s.withAuth(w, r, &req, s.handleSettlementInitialize)
	case "settlement_createPayment":
		s.withAuth(w, r, &req, s.handleSettlementCreatePayment)
	case "settlement_acceptPayment":
		s.withAuth(w, r, &req, s.handleSettlementAcceptPayment)
	case "settlement_rejectPayment":
		s.withAuth(w, r, &req, s.handleSettlementRejectPayment)
	case "settlement_markPaid":
		s.withAuth(w, r, &req, s.handleSettlementMarkPaid)
	case "settlement_registerMerchant":
		s.withAuth(w, r, &req, s.handleSettlementRegisterMerchant)
	case "settlement_updateMerchant":
		s.withAuth(w, r, &req, s.handleSettlementUpdateMerchant)
	case "settlement_getPayment":
		s.handleSettlementGetPayment(w, &req)
	case "settlement_getMerchantBankDetails":
		s.handleSettlementGetMerchantBankDetails(w, &req)
	case "settlement_getMerchantPaymentIds":
		s.handleSettlementGetMerchantPaymentIDs(w, &req)
	case "settlement_getPayerPaymentIds":
		s.handleSettlementGetPayerPaymentIDs(w, &req)
	case "audit_list":
		s.handleAuditList(w, &req)
	case "audit_listByType":
		s.handleAuditListByType(w, &req)
	case "audit_listByAddress":
		s.handleAuditListByAddress(w, &req)
	case "token_mint":
		s.withAuth(w, r, &req, s.handleTokenMint)
	case "token_balanceOf":
		s.handleTokenBalanceOf(w, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", req.Method)
	}
}

func (s *Server) withAuth(w http.ResponseWriter, r *http.Request, req *RPCRequest, handler func(http.ResponseWriter, *RPCRequest)) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	handler(w, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "rpc auth token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "bearer token required"}
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid token"}
	}
	return nil
}

func decodeSingleParam(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeSettlementInvalidParams, Message: "invalid_params", Data: "exactly one parameter object expected"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeSettlementInvalidParams, Message: "invalid_params", Data: err.Error()}
	}
	return nil
}

func parseAddress(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

// parseBigInt accepts any decimal integer. Handlers use it for fields whose
// range checks belong to the engine, so the engine's guard order is preserved.
func parseBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", trimmed)
	}
	return parsed, nil
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", trimmed)
	}
	if parsed.Sign() <= 0 {
		return nil, fmt.Errorf("integer must be positive, got %q", trimmed)
	}
	return parsed, nil
}
