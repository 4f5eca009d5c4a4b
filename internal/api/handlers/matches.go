package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/receipted/receipted-backend/internal/api/dto"
	"github.com/receipted/receipted-backend/internal/domain/matcher"
)

// MatchesHandler handles candidate listing and the confirm/unmatch/automatch
// operations.
type MatchesHandler struct {
	Base
	engine *matcher.Engine
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(engine *matcher.Engine) *MatchesHandler {
	return &MatchesHandler{engine: engine}
}

// ListCandidates handles GET /api/candidates - returns the sorted candidate
// list, optionally narrowed to one statement.
func (h *MatchesHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	statementID := r.URL.Query().Get("statement_id")

	candidates, err := h.engine.Candidates(statementID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.CandidateListResponse{
		Candidates: candidates,
		Count:      len(candidates),
	})
}

// Confirm handles POST /api/matches - links a receipt and a charge.
func (h *MatchesHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req dto.ConfirmMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}
	if req.ReceiptID == "" || req.ChargeID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("receipt_id and charge_id are required"))
		return
	}

	if err := h.engine.ConfirmMatch(req.ReceiptID, req.ChargeID); err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.MatchResponse{
		ReceiptID: req.ReceiptID,
		ChargeID:  req.ChargeID,
		Status:    "matched",
	})
}

// Unmatch handles DELETE /api/matches/{receiptID} - clears the link on both
// sides. Unmatching an already-unmatched receipt succeeds.
func (h *MatchesHandler) Unmatch(w http.ResponseWriter, r *http.Request) {
	receiptID := chi.URLParam(r, "receiptID")
	if receiptID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("receipt ID is required"))
		return
	}

	if err := h.engine.Unmatch(receiptID); err != nil {
		h.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AutoMatch handles POST /api/receipts/{receiptID}/automatch - attempts to
// link the receipt's top candidate without confirmation. A non-match is a
// 200 with matched=false, not an error.
func (h *MatchesHandler) AutoMatch(w http.ResponseWriter, r *http.Request) {
	receiptID := chi.URLParam(r, "receiptID")
	if receiptID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("receipt ID is required"))
		return
	}

	result, err := h.engine.AttemptAutoMatch(receiptID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}
