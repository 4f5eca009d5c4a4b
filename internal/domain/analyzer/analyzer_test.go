package analyzer

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receipted/receipted-backend/internal/infrastructure/storage"
)

func seedSkip(t *testing.T, repo *storage.MockRepository, receiptID, chargeID string, sim, amountDiff float64, dateDiff int) {
	t.Helper()
	require.NoError(t, repo.InsertSkipRecord(&storage.SkipRecord{
		ReceiptID:          receiptID,
		ChargeID:           chargeID,
		MerchantSimilarity: sim,
		AmountDiff:         amountDiff,
		DateDiff:           dateDiff,
	}))
}

func seedPair(t *testing.T, repo *storage.MockRepository, receiptID, merchant, chargeID, description string) {
	t.Helper()
	require.NoError(t, repo.CreateReceipt(&storage.Receipt{ID: receiptID, Merchant: merchant}))
	require.NoError(t, repo.CreateCharge(&storage.Charge{
		ID:          chargeID,
		Description: description,
		Amount:      "-10.00",
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}))
}

func findInsight(insights []PatternInsight, typ InsightType) *PatternInsight {
	for i := range insights {
		if insights[i].Type == typ {
			return &insights[i]
		}
	}
	return nil
}

func TestAnalyzer_AnalyzePatterns(t *testing.T) {
	t.Run("empty history yields no insights", func(t *testing.T) {
		repo := storage.NewMockRepository()
		a := NewAnalyzer(repo, DefaultConfig(), nil)

		insights, err := a.AnalyzePatterns(0)
		require.NoError(t, err)
		assert.Empty(t, insights)
	})

	t.Run("query failure is reported", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.QuerySkipRecordsErr = errors.New("db locked")
		a := NewAnalyzer(repo, DefaultConfig(), nil)

		_, err := a.AnalyzePatterns(0)
		assert.Error(t, err)
	})

	t.Run("merchant mismatch needs support above the minimum", func(t *testing.T) {
		repo := storage.NewMockRepository()
		a := NewAnalyzer(repo, DefaultConfig(), nil)

		for i := 0; i < 10; i++ {
			id := fmt.Sprintf("%d", i)
			seedPair(t, repo, "r"+id, "Local Shop "+id, "c"+id, "UNRELATED VENDOR "+id)
			seedSkip(t, repo, "r"+id, "c"+id, 0.1, 0, 0)
		}

		insights, err := a.AnalyzePatterns(0)
		require.NoError(t, err)
		assert.Nil(t, findInsight(insights, InsightMerchantMismatch))

		// Two more rejections push it over the bar.
		for i := 10; i < 12; i++ {
			id := fmt.Sprintf("%d", i)
			seedPair(t, repo, "r"+id, "Local Shop "+id, "c"+id, "UNRELATED VENDOR "+id)
			seedSkip(t, repo, "r"+id, "c"+id, 0.1, 0, 0)
		}

		insights, err = a.AnalyzePatterns(0)
		require.NoError(t, err)

		insight := findInsight(insights, InsightMerchantMismatch)
		require.NotNil(t, insight)
		assert.Equal(t, 12, insight.Frequency)
		assert.LessOrEqual(t, len(insight.Examples), 5)
		assert.NotEmpty(t, insight.Recommendation)
	})

	t.Run("high-similarity rejections never count as merchant mismatch", func(t *testing.T) {
		repo := storage.NewMockRepository()
		a := NewAnalyzer(repo, DefaultConfig(), nil)

		for i := 0; i < 20; i++ {
			seedSkip(t, repo, fmt.Sprintf("r%d", i), fmt.Sprintf("c%d", i), 0.9, 0, 0)
		}

		insights, err := a.AnalyzePatterns(0)
		require.NoError(t, err)
		assert.Nil(t, findInsight(insights, InsightMerchantMismatch))
	})

	t.Run("date offset reports the average", func(t *testing.T) {
		repo := storage.NewMockRepository()
		a := NewAnalyzer(repo, DefaultConfig(), nil)

		for i := 0; i < 11; i++ {
			seedSkip(t, repo, fmt.Sprintf("r%d", i), fmt.Sprintf("c%d", i), 0.9, 0, 14)
		}
		// At the boundary: exactly the minimum offset does not count.
		seedSkip(t, repo, "rx", "cx", 0.9, 0, 7)

		insights, err := a.AnalyzePatterns(0)
		require.NoError(t, err)

		insight := findInsight(insights, InsightDateOffset)
		require.NotNil(t, insight)
		assert.Equal(t, 11, insight.Frequency)
		assert.Contains(t, insight.Description, "average offset 14.0 days")
		assert.Contains(t, insight.Recommendation, "widening the date-matching tolerance")
	})

	t.Run("amount variance requires a populated tip band", func(t *testing.T) {
		repo := storage.NewMockRepository()
		a := NewAnalyzer(repo, DefaultConfig(), nil)

		// Large diffs alone do not qualify.
		for i := 0; i < 16; i++ {
			seedSkip(t, repo, fmt.Sprintf("r%d", i), fmt.Sprintf("c%d", i), 0.9, 50.0, 0)
		}

		insights, err := a.AnalyzePatterns(0)
		require.NoError(t, err)
		assert.Nil(t, findInsight(insights, InsightAmountVariance))

		// A tip-shaped diff activates the insight.
		seedSkip(t, repo, "rt", "ct", 0.9, 7.5, 0)

		insights, err = a.AnalyzePatterns(0)
		require.NoError(t, err)

		insight := findInsight(insights, InsightAmountVariance)
		require.NotNil(t, insight)
		assert.Equal(t, 17, insight.Frequency)
		assert.Contains(t, insight.Recommendation, "tip")
	})

	t.Run("category confusion aggregates directed pairs", func(t *testing.T) {
		repo := storage.NewMockRepository()
		a := NewAnalyzer(repo, DefaultConfig(), nil)

		require.NoError(t, repo.CreateReceipt(&storage.Receipt{ID: "r1", Merchant: "Bistro", Category: "Meals"}))
		require.NoError(t, repo.CreateCharge(&storage.Charge{
			ID: "c1", Description: "BISTRO 21", Amount: "-10.00",
			Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Category: "Travel",
		}))

		for i := 0; i < 3; i++ {
			seedSkip(t, repo, "r1", "c1", 0.9, 0, 0)
		}

		insights, err := a.AnalyzePatterns(0)
		require.NoError(t, err)
		assert.Nil(t, findInsight(insights, InsightCategoryConfusion))

		seedSkip(t, repo, "r1", "c1", 0.9, 0, 0)

		insights, err = a.AnalyzePatterns(0)
		require.NoError(t, err)

		insight := findInsight(insights, InsightCategoryConfusion)
		require.NotNil(t, insight)
		assert.Equal(t, 4, insight.Frequency)
		assert.Contains(t, insight.Examples, "Meals → Travel (4 times)")
	})

	t.Run("one failing sub-analysis never suppresses the others", func(t *testing.T) {
		repo := storage.NewMockRepository()
		a := NewAnalyzer(repo, DefaultConfig(), nil)

		for i := 0; i < 11; i++ {
			seedSkip(t, repo, fmt.Sprintf("r%d", i), fmt.Sprintf("c%d", i), 0.9, 0, 14)
		}
		repo.GetReceiptErr = errors.New("db locked")

		insights, err := a.AnalyzePatterns(0)
		require.NoError(t, err)

		assert.NotNil(t, findInsight(insights, InsightDateOffset))
		assert.Nil(t, findInsight(insights, InsightCategoryConfusion))
	})

	t.Run("records outside the window are ignored", func(t *testing.T) {
		repo := storage.NewMockRepository()
		a := NewAnalyzer(repo, DefaultConfig(), nil)

		old := time.Now().UTC().AddDate(0, 0, -60)
		for i := 0; i < 11; i++ {
			require.NoError(t, repo.InsertSkipRecord(&storage.SkipRecord{
				ReceiptID:          fmt.Sprintf("r%d", i),
				ChargeID:           fmt.Sprintf("c%d", i),
				MerchantSimilarity: 0.9,
				DateDiff:           14,
				SkippedAt:          old,
			}))
		}

		insights, err := a.AnalyzePatterns(30)
		require.NoError(t, err)
		assert.Empty(t, insights)
	})
}

func TestAnalyzer_ProblematicMerchants(t *testing.T) {
	newFixture := func(t *testing.T) (*storage.MockRepository, *Analyzer) {
		repo := storage.NewMockRepository()
		seedPair(t, repo, "rA", "Uber", "cA", "UBR TRIP HELP.UBER.COM")
		seedPair(t, repo, "rB", "Lyft", "cB", "LYFT RIDE SAT 9PM")
		seedPair(t, repo, "rC", "Delta", "cC", "DELTA AIR 0062341")
		return repo, NewAnalyzer(repo, DefaultConfig(), nil)
	}

	t.Run("aggregates by pair with a minimum of two rejections", func(t *testing.T) {
		repo, a := newFixture(t)

		seedSkip(t, repo, "rA", "cA", 0.3, 3.0, 1)
		seedSkip(t, repo, "rA", "cA", 0.3, 4.0, 2)
		seedSkip(t, repo, "rA", "cA", 0.3, 5.0, 3)
		seedSkip(t, repo, "rB", "cB", 0.3, 1.0, 0)
		seedSkip(t, repo, "rB", "cB", 0.3, 1.0, 0)
		seedSkip(t, repo, "rC", "cC", 0.3, 1.0, 0)

		merchants, err := a.ProblematicMerchants(0)
		require.NoError(t, err)

		require.Len(t, merchants, 2)
		assert.Equal(t, "Uber", merchants[0].ReceiptMerchant)
		assert.Equal(t, "UBR TRIP HELP.UBER.COM", merchants[0].ChargeMerchant)
		assert.Equal(t, 3, merchants[0].Frequency)
		assert.InDelta(t, 4.0, merchants[0].AvgAmountDiff, 1e-9)
		assert.InDelta(t, 2.0, merchants[0].AvgDateDiff, 1e-9)
		assert.Equal(t, "Lyft", merchants[1].ReceiptMerchant)
	})

	t.Run("limit caps the list", func(t *testing.T) {
		repo, a := newFixture(t)

		seedSkip(t, repo, "rA", "cA", 0.3, 0, 0)
		seedSkip(t, repo, "rA", "cA", 0.3, 0, 0)
		seedSkip(t, repo, "rB", "cB", 0.3, 0, 0)
		seedSkip(t, repo, "rB", "cB", 0.3, 0, 0)

		merchants, err := a.ProblematicMerchants(1)
		require.NoError(t, err)
		assert.Len(t, merchants, 1)
	})

	t.Run("rejections of merchantless receipts are skipped", func(t *testing.T) {
		repo := storage.NewMockRepository()
		a := NewAnalyzer(repo, DefaultConfig(), nil)

		require.NoError(t, repo.CreateReceipt(&storage.Receipt{ID: "r1"}))
		require.NoError(t, repo.CreateCharge(&storage.Charge{
			ID: "c1", Description: "VENDOR", Amount: "-1.00",
			Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		}))
		seedSkip(t, repo, "r1", "c1", 0.0, 0, 0)
		seedSkip(t, repo, "r1", "c1", 0.0, 0, 0)

		merchants, err := a.ProblematicMerchants(0)
		require.NoError(t, err)
		assert.Empty(t, merchants)
	})
}

func TestAnalyzer_GenerateRecommendations(t *testing.T) {
	t.Run("suggests alias mappings for repeat offenders", func(t *testing.T) {
		repo := storage.NewMockRepository()
		a := NewAnalyzer(repo, DefaultConfig(), nil)

		seedPair(t, repo, "rA", "Uber", "cA", "UBR TRIP HELP.UBER.COM")
		for i := 0; i < 4; i++ {
			seedSkip(t, repo, "rA", "cA", 0.9, 0, 0)
		}

		recommendations, err := a.GenerateRecommendations()
		require.NoError(t, err)

		assert.Contains(t, recommendations,
			`Add alias mapping: "Uber" → "UBR TRIP HELP.UBER.COM" (4 failed matches)`)
	})

	t.Run("pairs below the alias bar are not suggested", func(t *testing.T) {
		repo := storage.NewMockRepository()
		a := NewAnalyzer(repo, DefaultConfig(), nil)

		seedPair(t, repo, "rA", "Uber", "cA", "UBR TRIP HELP.UBER.COM")
		for i := 0; i < 3; i++ {
			seedSkip(t, repo, "rA", "cA", 0.9, 0, 0)
		}

		recommendations, err := a.GenerateRecommendations()
		require.NoError(t, err)
		assert.Empty(t, recommendations)
	})

	t.Run("includes every insight recommendation", func(t *testing.T) {
		repo := storage.NewMockRepository()
		a := NewAnalyzer(repo, DefaultConfig(), nil)

		for i := 0; i < 11; i++ {
			seedSkip(t, repo, fmt.Sprintf("r%d", i), fmt.Sprintf("c%d", i), 0.9, 0, 14)
		}

		recommendations, err := a.GenerateRecommendations()
		require.NoError(t, err)

		require.NotEmpty(t, recommendations)
		assert.Contains(t, recommendations[0], "widening the date-matching tolerance")
	})
}
