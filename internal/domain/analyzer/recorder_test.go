package analyzer

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receipted/receipted-backend/internal/domain/similarity"
	"github.com/receipted/receipted-backend/internal/infrastructure/storage"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func datePtr(t time.Time) *time.Time {
	return &t
}

func TestRecorder_RecordSkip(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("captures the feature deltas at rejection time", func(t *testing.T) {
		repo := storage.NewMockRepository()
		recorder := NewRecorder(repo, nil)

		require.NoError(t, repo.CreateReceipt(&storage.Receipt{
			ID:       "r1",
			Merchant: "Amazon",
			Amount:   decPtr("45.67"),
			Date:     datePtr(day),
		}))
		require.NoError(t, repo.CreateCharge(&storage.Charge{
			ID:          "c1",
			Description: "AMZN Mktp US",
			Amount:      "-50.67",
			Date:        day.AddDate(0, 0, 2),
		}))

		recorder.RecordSkip("r1", "c1", "different order")

		require.True(t, repo.InsertSkipRecordCalled)
		record := repo.LastInsertedSkip
		require.NotNil(t, record)
		assert.Equal(t, "r1", record.ReceiptID)
		assert.Equal(t, "c1", record.ChargeID)
		assert.InDelta(t, similarity.Ratio("Amazon", "AMZN Mktp US"), record.MerchantSimilarity, 1e-9)
		assert.InDelta(t, 5.0, record.AmountDiff, 1e-9)
		assert.Equal(t, 2, record.DateDiff)
		assert.Equal(t, "different order", record.SkipReason)
	})

	t.Run("missing optional receipt fields yield zero deltas", func(t *testing.T) {
		repo := storage.NewMockRepository()
		recorder := NewRecorder(repo, nil)

		require.NoError(t, repo.CreateReceipt(&storage.Receipt{ID: "r1", Merchant: "Amazon"}))
		require.NoError(t, repo.CreateCharge(&storage.Charge{
			ID:          "c1",
			Description: "AMZN Mktp US",
			Amount:      "-50.67",
			Date:        day,
		}))

		recorder.RecordSkip("r1", "c1", "")

		record := repo.LastInsertedSkip
		require.NotNil(t, record)
		assert.Zero(t, record.AmountDiff)
		assert.Zero(t, record.DateDiff)
	})

	t.Run("missing receipt drops the record silently", func(t *testing.T) {
		repo := storage.NewMockRepository()
		recorder := NewRecorder(repo, nil)

		require.NoError(t, repo.CreateCharge(&storage.Charge{
			ID: "c1", Description: "VENDOR", Amount: "-1.00", Date: day,
		}))

		recorder.RecordSkip("missing", "c1", "")

		assert.False(t, repo.InsertSkipRecordCalled)
	})

	t.Run("missing charge drops the record silently", func(t *testing.T) {
		repo := storage.NewMockRepository()
		recorder := NewRecorder(repo, nil)

		require.NoError(t, repo.CreateReceipt(&storage.Receipt{ID: "r1"}))

		recorder.RecordSkip("r1", "missing", "")

		assert.False(t, repo.InsertSkipRecordCalled)
	})

	t.Run("insert failures are swallowed", func(t *testing.T) {
		repo := storage.NewMockRepository()
		recorder := NewRecorder(repo, nil)

		require.NoError(t, repo.CreateReceipt(&storage.Receipt{ID: "r1"}))
		require.NoError(t, repo.CreateCharge(&storage.Charge{
			ID: "c1", Description: "VENDOR", Amount: "-1.00", Date: day,
		}))
		repo.InsertSkipRecordErr = errors.New("disk full")

		assert.NotPanics(t, func() {
			recorder.RecordSkip("r1", "c1", "")
		})
	})
}
