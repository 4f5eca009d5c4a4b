package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receipted/receipted-backend/internal/api"
	"github.com/receipted/receipted-backend/internal/api/dto"
	"github.com/receipted/receipted-backend/internal/domain/analyzer"
	"github.com/receipted/receipted-backend/internal/domain/matcher"
	"github.com/receipted/receipted-backend/internal/infrastructure/storage"
)

func newTestServer(t *testing.T) (*storage.MockRepository, *api.Server) {
	t.Helper()
	repo := storage.NewMockRepository()
	engine := matcher.NewEngine(repo, matcher.DefaultConfig(), nil)
	a := analyzer.NewAnalyzer(repo, analyzer.DefaultConfig(), nil)
	recorder := analyzer.NewRecorder(repo, nil)
	return repo, api.NewServer(api.DefaultConfig(), engine, a, recorder, nil)
}

func seedMatchablePair(t *testing.T, repo *storage.MockRepository) {
	t.Helper()
	amount := decimal.RequireFromString("45.67")
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateReceipt(&storage.Receipt{
		ID:       "r1",
		Merchant: "Amazon",
		Amount:   &amount,
		Date:     &day,
	}))
	require.NoError(t, repo.CreateCharge(&storage.Charge{
		ID:          "c1",
		Description: "AMZN Mktp US",
		Amount:      "-45.67",
		Date:        day,
	}))
}

func doRequest(server *api.Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	_, server := newTestServer(t)

	rec := doRequest(server, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "healthy", response.Status)
}

func TestServer_ListCandidates(t *testing.T) {
	repo, server := newTestServer(t)
	seedMatchablePair(t, repo)

	rec := doRequest(server, http.MethodGet, "/api/candidates", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.CandidateListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	require.Equal(t, 1, response.Count)
	assert.Equal(t, "r1", response.Candidates[0].Receipt.ID)
	assert.Equal(t, 100.0, response.Candidates[0].Confidence)

	// A statement id that matches nothing narrows to an empty list.
	rec = doRequest(server, http.MethodGet, "/api/candidates?statement_id=2024-12", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Zero(t, response.Count)
}

func TestServer_ConfirmMatch(t *testing.T) {
	t.Run("links the pair", func(t *testing.T) {
		repo, server := newTestServer(t)
		seedMatchablePair(t, repo)

		rec := doRequest(server, http.MethodPost, "/api/matches",
			`{"receipt_id":"r1","charge_id":"c1"}`)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.MatchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "matched", response.Status)

		receipt, err := repo.GetReceipt("r1")
		require.NoError(t, err)
		assert.True(t, receipt.IsMatched)
	})

	t.Run("unknown receipt maps to 404", func(t *testing.T) {
		_, server := newTestServer(t)

		rec := doRequest(server, http.MethodPost, "/api/matches",
			`{"receipt_id":"missing","charge_id":"c1"}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var apiErr dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
		assert.Equal(t, dto.ErrCodeNotFound, apiErr.Code)
	})

	t.Run("conflicting confirm maps to 409", func(t *testing.T) {
		repo, server := newTestServer(t)
		seedMatchablePair(t, repo)
		require.NoError(t, repo.CreateCharge(&storage.Charge{
			ID: "c2", Description: "OTHER", Amount: "-1.00",
			Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		}))

		rec := doRequest(server, http.MethodPost, "/api/matches",
			`{"receipt_id":"r1","charge_id":"c1"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doRequest(server, http.MethodPost, "/api/matches",
			`{"receipt_id":"r1","charge_id":"c2"}`)

		assert.Equal(t, http.StatusConflict, rec.Code)

		var apiErr dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
		assert.Equal(t, dto.ErrCodeAlreadyMatched, apiErr.Code)
	})

	t.Run("malformed body maps to 400", func(t *testing.T) {
		_, server := newTestServer(t)

		rec := doRequest(server, http.MethodPost, "/api/matches", `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doRequest(server, http.MethodPost, "/api/matches", `{"receipt_id":"r1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_Unmatch(t *testing.T) {
	repo, server := newTestServer(t)
	seedMatchablePair(t, repo)

	rec := doRequest(server, http.MethodPost, "/api/matches",
		`{"receipt_id":"r1","charge_id":"c1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(server, http.MethodDelete, "/api/matches/r1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	receipt, err := repo.GetReceipt("r1")
	require.NoError(t, err)
	assert.False(t, receipt.IsMatched)

	// Unmatching again still succeeds.
	rec = doRequest(server, http.MethodDelete, "/api/matches/r1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(server, http.MethodDelete, "/api/matches/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_AutoMatch(t *testing.T) {
	t.Run("links a qualifying receipt", func(t *testing.T) {
		repo, server := newTestServer(t)
		seedMatchablePair(t, repo)

		rec := doRequest(server, http.MethodPost, "/api/receipts/r1/automatch", "")

		assert.Equal(t, http.StatusOK, rec.Code)

		var result matcher.AutoMatchResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
		assert.True(t, result.Matched)
		assert.Equal(t, "c1", result.ChargeID)
	})

	t.Run("non-match is a 200 with matched false", func(t *testing.T) {
		repo, server := newTestServer(t)
		amount := decimal.RequireFromString("25.99")
		require.NoError(t, repo.CreateReceipt(&storage.Receipt{ID: "r1", Amount: &amount}))

		rec := doRequest(server, http.MethodPost, "/api/receipts/r1/automatch", "")

		assert.Equal(t, http.StatusOK, rec.Code)

		var result matcher.AutoMatchResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
		assert.False(t, result.Matched)
	})

	t.Run("unknown receipt maps to 404", func(t *testing.T) {
		_, server := newTestServer(t)

		rec := doRequest(server, http.MethodPost, "/api/receipts/missing/automatch", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_RecordSkip(t *testing.T) {
	t.Run("accepts and persists the rejection", func(t *testing.T) {
		repo, server := newTestServer(t)
		seedMatchablePair(t, repo)

		rec := doRequest(server, http.MethodPost, "/api/skips",
			`{"receipt_id":"r1","charge_id":"c1","reason":"different order"}`)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.True(t, repo.InsertSkipRecordCalled)
		assert.Equal(t, "different order", repo.LastInsertedSkip.SkipReason)
	})

	t.Run("still accepts when persistence fails", func(t *testing.T) {
		repo, server := newTestServer(t)
		seedMatchablePair(t, repo)
		repo.InsertSkipRecordErr = errors.New("disk full")

		rec := doRequest(server, http.MethodPost, "/api/skips",
			`{"receipt_id":"r1","charge_id":"c1"}`)

		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("rejects incomplete requests", func(t *testing.T) {
		_, server := newTestServer(t)

		rec := doRequest(server, http.MethodPost, "/api/skips", `{"receipt_id":"r1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_Insights(t *testing.T) {
	repo, server := newTestServer(t)
	seedMatchablePair(t, repo)

	// Enough low-similarity rejections to trigger the merchant insight.
	for i := 0; i < 12; i++ {
		require.NoError(t, repo.InsertSkipRecord(&storage.SkipRecord{
			ReceiptID:          "r1",
			ChargeID:           "c1",
			MerchantSimilarity: 0.1,
		}))
	}

	t.Run("insights", func(t *testing.T) {
		rec := doRequest(server, http.MethodGet, "/api/insights?window_days=60", "")

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.InsightListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, 60, response.WindowDays)
		require.NotEmpty(t, response.Insights)
		assert.Equal(t, analyzer.InsightMerchantMismatch, response.Insights[0].Type)
	})

	t.Run("merchants", func(t *testing.T) {
		rec := doRequest(server, http.MethodGet, "/api/insights/merchants?limit=5", "")

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.MerchantListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		require.NotEmpty(t, response.Merchants)
		assert.Equal(t, "Amazon", response.Merchants[0].ReceiptMerchant)
		assert.Equal(t, 12, response.Merchants[0].Frequency)
	})

	t.Run("recommendations", func(t *testing.T) {
		rec := doRequest(server, http.MethodGet, "/api/insights/recommendations", "")

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RecommendationsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.NotEmpty(t, response.Recommendations)
	})
}

func TestServer_CORS(t *testing.T) {
	_, server := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/candidates", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
