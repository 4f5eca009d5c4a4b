package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/receipted/receipted-backend/internal/api/dto"
	"github.com/receipted/receipted-backend/internal/domain/analyzer"
)

// SkipsHandler records explicit human rejections of suggested pairs.
type SkipsHandler struct {
	Base
	recorder *analyzer.Recorder
}

// NewSkipsHandler creates a new skips handler.
func NewSkipsHandler(recorder *analyzer.Recorder) *SkipsHandler {
	return &SkipsHandler{recorder: recorder}
}

// Create handles POST /api/skips. Recording is best-effort analytics: the
// response is 202 regardless of persistence outcome so the rejection flow
// is never blocked.
func (h *SkipsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.SkipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}
	if req.ReceiptID == "" || req.ChargeID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("receipt_id and charge_id are required"))
		return
	}

	h.recorder.RecordSkip(req.ReceiptID, req.ChargeID, req.Reason)

	w.WriteHeader(http.StatusAccepted)
}
