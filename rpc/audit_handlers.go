package rpc

import (
	"net/http"
	"strings"

	"settlr/audit"
)

type auditListParams struct {
	FromSequence uint64 `json:"fromSequence"`
	Limit        int    `json:"limit"`
}

type auditTypeParams struct {
	Type  string `json:"type"`
	Limit int    `json:"limit"`
}

type auditAddressParams struct {
	Address string `json:"address"`
	Limit   int    `json:"limit"`
}

type auditListResult struct {
	Entries []audit.Entry `json:"entries"`
}

func (s *Server) handleAuditList(w http.ResponseWriter, req *RPCRequest) {
	var params auditListParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	entries, err := s.auditLog.List(params.FromSequence, params.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeSettlementInternal, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, auditListResult{Entries: entries})
}

func (s *Server) handleAuditListByType(w http.ResponseWriter, req *RPCRequest) {
	var params auditTypeParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if strings.TrimSpace(params.Type) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", "type required")
		return
	}
	entries, err := s.auditLog.ListByType(params.Type, params.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeSettlementInternal, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, auditListResult{Entries: entries})
}

func (s *Server) handleAuditListByAddress(w http.ResponseWriter, req *RPCRequest) {
	var params auditAddressParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if strings.TrimSpace(params.Address) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeSettlementInvalidParams, "invalid_params", "address required")
		return
	}
	entries, err := s.auditLog.ListByAddress(strings.TrimSpace(params.Address), params.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeSettlementInternal, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, auditListResult{Entries: entries})
}
