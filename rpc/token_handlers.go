package rpc

import (
	"net/http"

	"settlr/native/settlement"
)

type tokenMintParams struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type tokenBalanceParams struct {
	Address string `json:"address"`
}

type tokenBalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func (s *Server) handleTokenMint(w http.ResponseWriter, req *RPCRequest) {
	var params tokenMintParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	to, err := parseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	// Minting backs account funding at bootstrap; only the ledger
	// administrator may do it.
	err = s.state.Update(func(txn settlement.Txn) error {
		meta, ok, err := txn.MetaGet()
		if err != nil {
			return err
		}
		if !ok {
			return settlement.ErrNotInitialized
		}
		if meta.Admin != caller {
			return settlement.ErrOnlyAdmin
		}
		return s.custody.Mint(txn, to, amount)
	})
	observeOperation("token_mint", err)
	if err != nil {
		writeSettlementError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleTokenBalanceOf(w http.ResponseWriter, req *RPCRequest) {
	var params tokenBalanceParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", err.Error())
		return
	}
	var balance string
	err = s.state.View(func(txn settlement.Txn) error {
		value, err := s.custody.BalanceOf(txn, addr)
		if err != nil {
			return err
		}
		balance = value.String()
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeSettlementInternal, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, tokenBalanceResult{Address: params.Address, Balance: balance})
}
