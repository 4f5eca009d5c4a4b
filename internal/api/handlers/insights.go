package handlers

import (
	"net/http"

	"github.com/receipted/receipted-backend/internal/api/dto"
	"github.com/receipted/receipted-backend/internal/domain/analyzer"
)

// InsightsHandler exposes the pattern-analysis results.
type InsightsHandler struct {
	Base
	analyzer *analyzer.Analyzer
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(a *analyzer.Analyzer) *InsightsHandler {
	return &InsightsHandler{analyzer: a}
}

// List handles GET /api/insights - returns the detected mismatch patterns
// over the requested window.
func (h *InsightsHandler) List(w http.ResponseWriter, r *http.Request) {
	windowDays := ParseIntParam(r, "window_days", 0)

	insights, err := h.analyzer.AnalyzePatterns(windowDays)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	if windowDays <= 0 {
		windowDays = 30
	}
	h.WriteJSON(w, http.StatusOK, dto.InsightListResponse{
		Insights:   insights,
		WindowDays: windowDays,
	})
}

// Merchants handles GET /api/insights/merchants - returns the merchant
// pairs that keep producing rejections.
func (h *InsightsHandler) Merchants(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 10)

	merchants, err := h.analyzer.ProblematicMerchants(limit)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.MerchantListResponse{Merchants: merchants})
}

// Recommendations handles GET /api/insights/recommendations.
func (h *InsightsHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	recommendations, err := h.analyzer.GenerateRecommendations()
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.RecommendationsResponse{Recommendations: recommendations})
}
