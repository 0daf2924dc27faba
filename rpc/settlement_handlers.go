package rpc

import (
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"settlr/crypto"
	"settlr/native/settlement"
	"settlr/native/token"
	"settlr/observability"
	"settlr/observability/logging"
)

type initializeParams struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
}

type createPaymentParams struct {
	Payer     string `json:"payer"`
	Merchant  string `json:"merchant"`
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
}

type acceptPaymentParams struct {
	Caller string `json:"caller"`
	ID     uint64 `json:"id"`
	Rate   string `json:"rate"`
}

type paymentActorParams struct {
	Caller string `json:"caller"`
	ID     uint64 `json:"id"`
}

type merchantDetailsParams struct {
	Caller        string `json:"caller"`
	BankName      string `json:"bankName"`
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
}

type paymentIDParams struct {
	ID uint64 `json:"id"`
}

type addressParams struct {
	Address string `json:"address"`
}

type statusResult struct {
	Status string `json:"status"`
}

type createPaymentResult struct {
	ID uint64 `json:"id"`
}

type paymentJSON struct {
	ID            uint64 `json:"id"`
	Payer         string `json:"payer"`
	Merchant      string `json:"merchant"`
	Amount        string `json:"amount"`
	CreatedAt     int64  `json:"createdAt"`
	ReferenceHash string `json:"referenceHash"`
	Status        string `json:"status"`
}

type bankDetailsJSON struct {
	BankNameHash      string `json:"bankNameHash"`
	AccountNameHash   string `json:"accountNameHash"`
	AccountNumberHash string `json:"accountNumberHash"`
	Registered        bool   `json:"registered"`
}

type paymentIDsResult struct {
	IDs []uint64 `json:"ids"`
}

var okResult = statusResult{Status: "ok"}

// writeSettlementError maps engine errors onto the JSON-RPC error surface:
// validation failures, authorization failures, state conflicts and missing
// records each carry a distinct code.
func writeSettlementError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, settlement.ErrInvalidToken),
		errors.Is(err, settlement.ErrInvalidMerchant),
		errors.Is(err, settlement.ErrInvalidAmount),
		errors.Is(err, settlement.ErrInvalidRate),
		errors.Is(err, settlement.ErrBankNameRequired),
		errors.Is(err, settlement.ErrAccountNameRequired),
		errors.Is(err, settlement.ErrAccountNumberRequired),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrInvalidRecipient):
		writeError(w, http.StatusBadRequest, id, codeSettlementInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, settlement.ErrOnlyAdmin),
		errors.Is(err, settlement.ErrNotYourPayment):
		writeError(w, http.StatusForbidden, id, codeSettlementForbidden, "forbidden", err.Error())
	case errors.Is(err, settlement.ErrAlreadyProcessed),
		errors.Is(err, settlement.ErrMustBeAcceptedFirst),
		errors.Is(err, settlement.ErrAlreadyInitialized),
		errors.Is(err, settlement.ErrNotInitialized),
		errors.Is(err, settlement.ErrNotRegistered),
		errors.Is(err, token.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, id, codeSettlementConflict, "conflict", err.Error())
	case errors.Is(err, settlement.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, id, codeSettlementNotFound, "not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeSettlementInternal, "internal_error", err.Error())
	}
}

func observeOperation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.Settlement().ObserveOperation(operation, outcome)
}

func (s *Server) handleSettlementInitialize(w http.ResponseWriter, req *RPCRequest) {
	var params initializeParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	tokenAddr, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	err = s.engine.Initialize(caller, tokenAddr)
	observeOperation("initialize", err)
	if err != nil {
		writeSettlementError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleSettlementCreatePayment(w http.ResponseWriter, req *RPCRequest) {
	var params createPaymentParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	payer, err := parseAddress(params.Payer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	merchant, err := parseAddress(params.Merchant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	payment, err := s.engine.CreatePayment(payer, merchant, amount, params.Reference)
	observeOperation("create_payment", err)
	if err != nil {
		writeSettlementError(w, req.ID, err)
		return
	}
	s.logger.Info("payment created",
		slog.Uint64("id", payment.ID),
		slog.String("payer", params.Payer),
		slog.String("merchant", params.Merchant),
		logging.MaskField("reference", params.Reference),
	)
	writeResult(w, req.ID, createPaymentResult{ID: payment.ID})
}

func (s *Server) handleSettlementAcceptPayment(w http.ResponseWriter, req *RPCRequest) {
	var params acceptPaymentParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	rate, err := parseBigInt(params.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	err = s.engine.AcceptPayment(caller, params.ID, rate)
	observeOperation("accept_payment", err)
	if err != nil {
		writeSettlementError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleSettlementRejectPayment(w http.ResponseWriter, req *RPCRequest) {
	var params paymentActorParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	err = s.engine.RejectPayment(caller, params.ID)
	observeOperation("reject_payment", err)
	if err != nil {
		writeSettlementError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleSettlementMarkPaid(w http.ResponseWriter, req *RPCRequest) {
	var params paymentActorParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	err = s.engine.MarkPaid(caller, params.ID)
	observeOperation("mark_paid", err)
	if err != nil {
		writeSettlementError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleSettlementRegisterMerchant(w http.ResponseWriter, req *RPCRequest) {
	s.handleMerchantDetails(w, req, false)
}

func (s *Server) handleSettlementUpdateMerchant(w http.ResponseWriter, req *RPCRequest) {
	s.handleMerchantDetails(w, req, true)
}

func (s *Server) handleMerchantDetails(w http.ResponseWriter, req *RPCRequest, update bool) {
	var params merchantDetailsParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	operation := "register_merchant"
	if update {
		err = s.engine.UpdateMerchant(caller, params.BankName, params.AccountName, params.AccountNumber)
		operation = "update_merchant"
	} else {
		err = s.engine.RegisterMerchant(caller, params.BankName, params.AccountName, params.AccountNumber)
	}
	observeOperation(operation, err)
	if err != nil {
		writeSettlementError(w, req.ID, err)
		return
	}
	s.logger.Info("merchant details committed",
		slog.String("merchant", params.Caller),
		logging.MaskField("bankName", params.BankName),
		logging.MaskField("accountName", params.AccountName),
		logging.MaskField("accountNumber", params.AccountNumber),
	)
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleSettlementGetPayment(w http.ResponseWriter, req *RPCRequest) {
	var params paymentIDParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	summary, err := s.engine.GetPayment(params.ID)
	if err != nil {
		writeSettlementError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, paymentToJSON(summary))
}

func (s *Server) handleSettlementGetMerchantBankDetails(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	merchant, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	details, err := s.engine.MerchantBankDetails(merchant)
	if err != nil {
		writeSettlementError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, bankDetailsJSON{
		BankNameHash:      hex.EncodeToString(details.BankNameHash[:]),
		AccountNameHash:   hex.EncodeToString(details.AccountNameHash[:]),
		AccountNumberHash: hex.EncodeToString(details.AccountNumberHash[:]),
		Registered:        details.BankNameHash != ([32]byte{}),
	})
}

func (s *Server) handleSettlementGetMerchantPaymentIDs(w http.ResponseWriter, req *RPCRequest) {
	s.handlePaymentIDs(w, req, true)
}

func (s *Server) handleSettlementGetPayerPaymentIDs(w http.ResponseWriter, req *RPCRequest) {
	s.handlePaymentIDs(w, req, false)
}

func (s *Server) handlePaymentIDs(w http.ResponseWriter, req *RPCRequest, merchant bool) {
	var params addressParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	var ids []uint64
	if merchant {
		ids, err = s.engine.MerchantPaymentIDs(addr)
	} else {
		ids, err = s.engine.PayerPaymentIDs(addr)
	}
	if err != nil {
		writeSettlementError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, paymentIDsResult{IDs: ids})
}

func paymentToJSON(summary *settlement.PaymentSummary) paymentJSON {
	if summary == nil {
		return paymentJSON{}
	}
	return paymentJSON{
		ID:            summary.ID,
		Payer:         crypto.NewAddress(crypto.SettlrPrefix, summary.Payer[:]).String(),
		Merchant:      crypto.NewAddress(crypto.SettlrPrefix, summary.Merchant[:]).String(),
		Amount:        summary.Amount.String(),
		CreatedAt:     summary.CreatedAt,
		ReferenceHash: hex.EncodeToString(summary.ReferenceHash[:]),
		Status:        summary.Status.String(),
	}
}
