package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"settlr/audit"
	"settlr/core/state"
	"settlr/crypto"
	"settlr/native/settlement"
	"settlr/native/token"
	"settlr/storage"
)

const testAuthToken = "test-secret"

func bech32Addr(fill byte) string {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return crypto.NewAddress(crypto.SettlrPrefix, addr[:]).String()
}

var (
	adminAddr    = bech32Addr(0xAD)
	tokenAddr    = bech32Addr(0x01)
	payerAddr    = bech32Addr(0x0B)
	merchantAddr = bech32Addr(0x0C)
)

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv(authTokenEnv, testAuthToken)

	db := storage.NewMemDB()
	auditLog, err := audit.NewLog(db)
	require.NoError(t, err)
	manager := state.NewManager(db)
	custody := token.NewLedger()

	engine := settlement.NewEngine()
	engine.SetState(manager)
	engine.SetCustodian(custody)
	engine.SetEmitter(auditLog)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })

	server := httptest.NewServer(NewServer(engine, manager, custody, auditLog, nil).Router())
	t.Cleanup(server.Close)
	return server
}

func call(t *testing.T, server *httptest.Server, authToken, method string, params interface{}) (int, rpcEnvelope) {
	t.Helper()
	reqBody := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		reqBody["params"] = []interface{}{params}
	}
	raw, err := json.Marshal(reqBody)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPost, server.URL+"/", bytes.NewReader(raw))
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+authToken)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope rpcEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, envelope
}

func mustCall(t *testing.T, server *httptest.Server, method string, params interface{}) json.RawMessage {
	t.Helper()
	status, envelope := call(t, server, testAuthToken, method, params)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, envelope.Error)
	return envelope.Result
}

func initializeLedger(t *testing.T, server *httptest.Server) {
	t.Helper()
	mustCall(t, server, "settlement_initialize", map[string]string{"caller": adminAddr, "token": tokenAddr})
	mustCall(t, server, "token_mint", map[string]string{"caller": adminAddr, "to": payerAddr, "amount": "10000000"})
}

func TestMintRequiresAdmin(t *testing.T) {
	server := newTestServer(t)

	// Before initialization there is no admin to authorize against.
	status, envelope := call(t, server, testAuthToken, "token_mint", map[string]string{
		"caller": adminAddr,
		"to":     payerAddr,
		"amount": "100",
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, codeSettlementConflict, envelope.Error.Code)

	mustCall(t, server, "settlement_initialize", map[string]string{"caller": adminAddr, "token": tokenAddr})

	status, envelope = call(t, server, testAuthToken, "token_mint", map[string]string{
		"caller": payerAddr,
		"to":     payerAddr,
		"amount": "100",
	})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, codeSettlementForbidden, envelope.Error.Code)

	// A rejected mint credits nothing.
	var balance tokenBalanceResult
	raw := mustCall(t, server, "token_balanceOf", map[string]string{"address": payerAddr})
	require.NoError(t, json.Unmarshal(raw, &balance))
	require.Equal(t, "0", balance.Balance)

	mustCall(t, server, "token_mint", map[string]string{"caller": adminAddr, "to": payerAddr, "amount": "100"})
	raw = mustCall(t, server, "token_balanceOf", map[string]string{"address": payerAddr})
	require.NoError(t, json.Unmarshal(raw, &balance))
	require.Equal(t, "100", balance.Balance)
}

func TestSettlementLifecycleOverRPC(t *testing.T) {
	server := newTestServer(t)
	initializeLedger(t, server)

	mustCall(t, server, "settlement_registerMerchant", map[string]string{
		"caller":        merchantAddr,
		"bankName":      "First Bank",
		"accountName":   "Acme Ltd",
		"accountNumber": "12345",
	})

	var created createPaymentResult
	raw := mustCall(t, server, "settlement_createPayment", map[string]string{
		"payer":     payerAddr,
		"merchant":  merchantAddr,
		"amount":    "5000000",
		"reference": "INV-001",
	})
	require.NoError(t, json.Unmarshal(raw, &created))
	require.Equal(t, uint64(1), created.ID)

	var payment paymentJSON
	raw = mustCall(t, server, "settlement_getPayment", map[string]uint64{"id": 1})
	require.NoError(t, json.Unmarshal(raw, &payment))
	require.Equal(t, "pending", payment.Status)
	require.Equal(t, "5000000", payment.Amount)
	require.Equal(t, payerAddr, payment.Payer)
	require.Equal(t, merchantAddr, payment.Merchant)

	mustCall(t, server, "settlement_acceptPayment", map[string]interface{}{
		"caller": merchantAddr,
		"id":     1,
		"rate":   "1500000000000000000000",
	})
	mustCall(t, server, "settlement_markPaid", map[string]interface{}{"caller": adminAddr, "id": 1})

	raw = mustCall(t, server, "settlement_getPayment", map[string]uint64{"id": 1})
	require.NoError(t, json.Unmarshal(raw, &payment))
	require.Equal(t, "paid", payment.Status)

	var balance tokenBalanceResult
	raw = mustCall(t, server, "token_balanceOf", map[string]string{"address": adminAddr})
	require.NoError(t, json.Unmarshal(raw, &balance))
	require.Equal(t, "5000000", balance.Balance)

	var ids paymentIDsResult
	raw = mustCall(t, server, "settlement_getMerchantPaymentIds", map[string]string{"address": merchantAddr})
	require.NoError(t, json.Unmarshal(raw, &ids))
	require.Equal(t, []uint64{1}, ids.IDs)
	raw = mustCall(t, server, "settlement_getPayerPaymentIds", map[string]string{"address": payerAddr})
	require.NoError(t, json.Unmarshal(raw, &ids))
	require.Equal(t, []uint64{1}, ids.IDs)
}

func TestMerchantBankDetailsOverRPC(t *testing.T) {
	server := newTestServer(t)
	initializeLedger(t, server)

	var details bankDetailsJSON
	raw := mustCall(t, server, "settlement_getMerchantBankDetails", map[string]string{"address": merchantAddr})
	require.NoError(t, json.Unmarshal(raw, &details))
	require.False(t, details.Registered)

	mustCall(t, server, "settlement_registerMerchant", map[string]string{
		"caller":        merchantAddr,
		"bankName":      "First Bank",
		"accountName":   "Acme Ltd",
		"accountNumber": "12345",
	})
	raw = mustCall(t, server, "settlement_getMerchantBankDetails", map[string]string{"address": merchantAddr})
	require.NoError(t, json.Unmarshal(raw, &details))
	require.True(t, details.Registered)
	require.Equal(t, ethcrypto.Keccak256Hash([]byte("First Bank")).Hex()[2:], details.BankNameHash)
}

func TestAuditLogOverRPC(t *testing.T) {
	server := newTestServer(t)
	initializeLedger(t, server)
	mustCall(t, server, "settlement_createPayment", map[string]string{
		"payer":     payerAddr,
		"merchant":  merchantAddr,
		"amount":    "5000000",
		"reference": "INV-001",
	})
	mustCall(t, server, "settlement_acceptPayment", map[string]interface{}{
		"caller": merchantAddr,
		"id":     1,
		"rate":   "1500",
	})

	var result auditListResult
	raw := mustCall(t, server, "audit_list", map[string]interface{}{"fromSequence": 0, "limit": 0})
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Len(t, result.Entries, 2)
	require.Equal(t, settlement.EventTypePaymentCreated, result.Entries[0].Type)
	require.Equal(t, "INV-001", result.Entries[0].Attributes["reference"])
	require.Equal(t, settlement.EventTypePaymentAccepted, result.Entries[1].Type)
	require.Equal(t, "1500", result.Entries[1].Attributes["lockedRate"])

	raw = mustCall(t, server, "audit_listByType", map[string]interface{}{"type": settlement.EventTypePaymentAccepted, "limit": 0})
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Len(t, result.Entries, 1)

	raw = mustCall(t, server, "audit_listByAddress", map[string]interface{}{"address": merchantAddr, "limit": 0})
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Len(t, result.Entries, 1)
	require.Equal(t, settlement.EventTypePaymentCreated, result.Entries[0].Type)
}

func TestErrorMappingOverRPC(t *testing.T) {
	server := newTestServer(t)
	initializeLedger(t, server)
	mustCall(t, server, "settlement_createPayment", map[string]string{
		"payer":     payerAddr,
		"merchant":  merchantAddr,
		"amount":    "5000000",
		"reference": "INV-001",
	})

	// Wrong caller accepting is forbidden.
	status, envelope := call(t, server, testAuthToken, "settlement_acceptPayment", map[string]interface{}{
		"caller": payerAddr,
		"id":     1,
		"rate":   "1500",
	})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, codeSettlementForbidden, envelope.Error.Code)

	// Unknown payment id.
	status, envelope = call(t, server, testAuthToken, "settlement_getPayment", map[string]uint64{"id": 99})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeSettlementNotFound, envelope.Error.Code)

	// Double initialize conflicts.
	status, envelope = call(t, server, testAuthToken, "settlement_initialize", map[string]string{"caller": adminAddr, "token": tokenAddr})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, codeSettlementConflict, envelope.Error.Code)

	// Reprocessing an accepted payment conflicts.
	mustCall(t, server, "settlement_acceptPayment", map[string]interface{}{
		"caller": merchantAddr,
		"id":     1,
		"rate":   "1500",
	})
	status, envelope = call(t, server, testAuthToken, "settlement_rejectPayment", map[string]interface{}{
		"caller": merchantAddr,
		"id":     1,
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, codeSettlementConflict, envelope.Error.Code)

	// Malformed amount is an invalid parameter.
	status, envelope = call(t, server, testAuthToken, "settlement_createPayment", map[string]string{
		"payer":     payerAddr,
		"merchant":  merchantAddr,
		"amount":    "-5",
		"reference": "INV-002",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeSettlementInvalidParams, envelope.Error.Code)

	// Malformed address is an invalid parameter.
	status, envelope = call(t, server, testAuthToken, "settlement_getMerchantBankDetails", map[string]string{"address": "not-bech32"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeSettlementInvalidParams, envelope.Error.Code)

	// Updating an unregistered merchant conflicts.
	status, envelope = call(t, server, testAuthToken, "settlement_updateMerchant", map[string]string{
		"caller":        merchantAddr,
		"bankName":      "First Bank",
		"accountName":   "Acme Ltd",
		"accountNumber": "12345",
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, codeSettlementConflict, envelope.Error.Code)
}

func TestAcceptRateGuardOrderOverRPC(t *testing.T) {
	server := newTestServer(t)
	initializeLedger(t, server)
	mustCall(t, server, "settlement_createPayment", map[string]string{
		"payer":     payerAddr,
		"merchant":  merchantAddr,
		"amount":    "5000000",
		"reference": "INV-001",
	})

	// The caller guard fires before the rate guard, even for a zero rate.
	status, envelope := call(t, server, testAuthToken, "settlement_acceptPayment", map[string]interface{}{
		"caller": payerAddr,
		"id":     1,
		"rate":   "0",
	})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, codeSettlementForbidden, envelope.Error.Code)

	// With the right caller a zero rate is an invalid parameter.
	status, envelope = call(t, server, testAuthToken, "settlement_acceptPayment", map[string]interface{}{
		"caller": merchantAddr,
		"id":     1,
		"rate":   "0",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeSettlementInvalidParams, envelope.Error.Code)

	// A malformed rate never reaches the engine.
	status, envelope = call(t, server, testAuthToken, "settlement_acceptPayment", map[string]interface{}{
		"caller": merchantAddr,
		"id":     1,
		"rate":   "not-a-number",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeSettlementInvalidParams, envelope.Error.Code)

	// The payment is still pending and acceptable.
	mustCall(t, server, "settlement_acceptPayment", map[string]interface{}{
		"caller": merchantAddr,
		"id":     1,
		"rate":   "1500",
	})
}

func TestAuthRequiredForMutatingMethods(t *testing.T) {
	server := newTestServer(t)

	status, envelope := call(t, server, "", "settlement_initialize", map[string]string{"caller": adminAddr, "token": tokenAddr})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, envelope.Error.Code)

	status, envelope = call(t, server, "wrong-token", "settlement_initialize", map[string]string{"caller": adminAddr, "token": tokenAddr})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, envelope.Error.Code)

	// Queries stay open.
	status, envelope = call(t, server, "", "settlement_getMerchantBankDetails", map[string]string{"address": merchantAddr})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, envelope.Error)
}

func TestRequestValidation(t *testing.T) {
	server := newTestServer(t)

	status, envelope := call(t, server, testAuthToken, "no_such_method", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, envelope.Error.Code)

	status, envelope = call(t, server, testAuthToken, "settlement_getPayment", nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeSettlementInvalidParams, envelope.Error.Code)

	resp, err := http.Post(server.URL+"/", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var parseEnvelope rpcEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parseEnvelope))
	require.Equal(t, codeParseError, parseEnvelope.Error.Code)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)
	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
