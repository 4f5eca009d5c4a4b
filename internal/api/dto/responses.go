package dto

import (
	"time"

	"github.com/receipted/receipted-backend/internal/domain/analyzer"
	"github.com/receipted/receipted-backend/internal/domain/matcher"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// NewHealthResponse creates a healthy response with the current time.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
}

// CandidateListResponse wraps the sorted candidate list.
type CandidateListResponse struct {
	Candidates []matcher.Candidate `json:"candidates"`
	Count      int                 `json:"count"`
}

// MatchResponse confirms a manual link.
type MatchResponse struct {
	ReceiptID string `json:"receipt_id"`
	ChargeID  string `json:"charge_id"`
	Status    string `json:"status"`
}

// InsightListResponse wraps the detected pattern insights.
type InsightListResponse struct {
	Insights   []analyzer.PatternInsight `json:"insights"`
	WindowDays int                       `json:"window_days"`
}

// MerchantListResponse wraps the problematic merchant aggregation.
type MerchantListResponse struct {
	Merchants []analyzer.ProblematicMerchant `json:"merchants"`
}

// RecommendationsResponse wraps the generated recommendation strings.
type RecommendationsResponse struct {
	Recommendations []string `json:"recommendations"`
}
