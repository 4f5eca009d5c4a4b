package analyzer

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/receipted/receipted-backend/internal/infrastructure/storage"
)

// InsightType identifies a systemic mismatch pattern.
type InsightType string

const (
	InsightMerchantMismatch  InsightType = "merchant_mismatch"
	InsightDateOffset        InsightType = "date_offset"
	InsightAmountVariance    InsightType = "amount_variance"
	InsightCategoryConfusion InsightType = "category_confusion"
)

// PatternInsight is one detected systemic issue with an actionable
// recommendation.
type PatternInsight struct {
	Type           InsightType `json:"type"`
	Description    string      `json:"description"`
	Frequency      int         `json:"frequency"`
	Examples       []string    `json:"examples,omitempty"`
	Recommendation string      `json:"recommendation"`
}

// ProblematicMerchant is a (receipt merchant, charge description) pair that
// keeps producing rejected suggestions.
type ProblematicMerchant struct {
	ReceiptMerchant string  `json:"receipt_merchant"`
	ChargeMerchant  string  `json:"charge_merchant"`
	Frequency       int     `json:"frequency"`
	AvgAmountDiff   float64 `json:"avg_amount_diff"`
	AvgDateDiff     float64 `json:"avg_date_diff"`
}

// Analyzer mines the skip-record history for recurring mismatch causes.
type Analyzer struct {
	repo   storage.Repository
	config Config
	logger *slog.Logger
}

// NewAnalyzer creates a pattern analyzer. A nil logger falls back to
// slog.Default().
func NewAnalyzer(repo storage.Repository, config Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{repo: repo, config: config, logger: logger}
}

// AnalyzePatterns runs every sub-analysis over the skip records of the last
// windowDays (0 uses the configured default). Each sub-analysis is fault
// isolated: its failure is logged and contributes no insight, never
// aborting the others.
func (a *Analyzer) AnalyzePatterns(windowDays int) ([]PatternInsight, error) {
	if windowDays <= 0 {
		windowDays = a.config.WindowDays
	}
	since := time.Now().UTC().AddDate(0, 0, -windowDays)

	records, err := a.repo.QuerySkipRecords(since, storage.SkipFilters{})
	if err != nil {
		return nil, err
	}

	patterns := []struct {
		name string
		run  func([]*storage.SkipRecord) (*PatternInsight, error)
	}{
		{"merchant_mismatch", a.analyzeMerchantMismatch},
		{"date_offset", a.analyzeDateOffset},
		{"amount_variance", a.analyzeAmountVariance},
		{"category_confusion", a.analyzeCategoryConfusion},
	}

	insights := make([]PatternInsight, 0, len(patterns))
	for _, pattern := range patterns {
		insight, err := pattern.run(records)
		if err != nil {
			a.logger.Warn("pattern analysis failed", "pattern", pattern.name, "error", err)
			continue
		}
		if insight != nil {
			insights = append(insights, *insight)
		}
	}

	return insights, nil
}

// analyzeMerchantMismatch flags a recurring pattern of rejections whose
// merchant names had little in common, suggesting missing alias mappings.
func (a *Analyzer) analyzeMerchantMismatch(records []*storage.SkipRecord) (*PatternInsight, error) {
	var mismatches []*storage.SkipRecord
	for _, record := range records {
		if record.MerchantSimilarity < a.config.MerchantMismatchCeil {
			mismatches = append(mismatches, record)
		}
	}
	if len(mismatches) <= a.config.MerchantMismatchMinCount {
		return nil, nil
	}

	sample := mismatches
	if len(sample) > a.config.MaxExamples {
		sample = sample[:a.config.MaxExamples]
	}

	pairs, err := a.fetchPairs(sample)
	if err != nil {
		return nil, err
	}

	examples := make([]string, 0, len(sample))
	for _, record := range sample {
		pair, ok := pairs[record.ID]
		if !ok {
			continue
		}
		examples = append(examples, fmt.Sprintf("%q vs %q", pair.receipt.Merchant, pair.charge.Description))
	}

	return &PatternInsight{
		Type: InsightMerchantMismatch,
		Description: fmt.Sprintf(
			"%d rejected suggestions paired merchant names with less than %d%% similarity",
			len(mismatches), int(a.config.MerchantMismatchCeil*100)),
		Frequency:      len(mismatches),
		Examples:       examples,
		Recommendation: "Recurring merchant-name mismatches detected; add alias mappings for the merchants shown in the examples.",
	}, nil
}

// analyzeDateOffset flags rejections whose dates were consistently far
// apart, suggesting the date tolerance is too narrow for this card's
// posting lag.
func (a *Analyzer) analyzeDateOffset(records []*storage.SkipRecord) (*PatternInsight, error) {
	byOffset := make(map[int]int)
	total, sum := 0, 0
	for _, record := range records {
		if record.DateDiff > a.config.DateOffsetMinDays {
			byOffset[record.DateDiff]++
			total++
			sum += record.DateDiff
		}
	}
	if total <= a.config.DateOffsetMinCount {
		return nil, nil
	}

	avg := float64(sum) / float64(total)

	offsets := make([]int, 0, len(byOffset))
	for offset := range byOffset {
		offsets = append(offsets, offset)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(offsets)))

	examples := make([]string, 0, a.config.MaxExamples)
	for _, offset := range offsets {
		if len(examples) == a.config.MaxExamples {
			break
		}
		examples = append(examples, fmt.Sprintf("%d rejections at a %d-day offset", byOffset[offset], offset))
	}

	return &PatternInsight{
		Type: InsightDateOffset,
		Description: fmt.Sprintf(
			"%d rejected suggestions were more than %d days apart (average offset %.1f days)",
			total, a.config.DateOffsetMinDays, avg),
		Frequency: total,
		Examples:  examples,
		Recommendation: fmt.Sprintf(
			"Rejections average a %.1f-day date offset; consider widening the date-matching tolerance.", avg),
	}, nil
}

// analyzeAmountVariance flags consistent dollar deltas. A populated $1-$10
// sub-band is the signature of tips and taxes added after the receipt was
// printed.
func (a *Analyzer) analyzeAmountVariance(records []*storage.SkipRecord) (*PatternInsight, error) {
	var variance, tipBand []*storage.SkipRecord
	for _, record := range records {
		if record.AmountDiff <= a.config.AmountVarianceFloor {
			continue
		}
		variance = append(variance, record)
		if record.AmountDiff >= a.config.TipBandLow && record.AmountDiff <= a.config.TipBandHigh {
			tipBand = append(tipBand, record)
		}
	}
	if len(tipBand) == 0 || len(variance) <= a.config.AmountVarianceMinCount {
		return nil, nil
	}

	examples := make([]string, 0, a.config.MaxExamples)
	for _, record := range tipBand {
		if len(examples) == a.config.MaxExamples {
			break
		}
		examples = append(examples, fmt.Sprintf("$%.2f difference (receipt %s vs charge %s)",
			record.AmountDiff, record.ReceiptID, record.ChargeID))
	}

	return &PatternInsight{
		Type: InsightAmountVariance,
		Description: fmt.Sprintf(
			"%d rejected suggestions differed by more than $%.2f, %d of them in the $%.0f-$%.0f tip range",
			len(variance), a.config.AmountVarianceFloor, len(tipBand),
			a.config.TipBandLow, a.config.TipBandHigh),
		Frequency:      len(variance),
		Examples:       examples,
		Recommendation: "Amount differences in the tip range suggest restaurant tips or taxes; consider tip-aware amount matching.",
	}, nil
}

// analyzeCategoryConfusion builds a frequency table of directed
// (receipt category -> charge category) mismatches across the window's
// rejections.
func (a *Analyzer) analyzeCategoryConfusion(records []*storage.SkipRecord) (*PatternInsight, error) {
	pairs, err := a.fetchPairs(records)
	if err != nil {
		return nil, err
	}

	type categoryPair struct{ from, to string }
	counts := make(map[categoryPair]int)
	for _, pair := range pairs {
		from, to := pair.receipt.Category, pair.charge.Category
		if from == "" || to == "" || from == to {
			continue
		}
		counts[categoryPair{from, to}]++
	}

	var qualifying []categoryPair
	total := 0
	for pair, count := range counts {
		if count > a.config.CategoryPairMinCount {
			qualifying = append(qualifying, pair)
			total += count
		}
	}
	if len(qualifying) == 0 {
		return nil, nil
	}

	sort.Slice(qualifying, func(i, j int) bool {
		if counts[qualifying[i]] != counts[qualifying[j]] {
			return counts[qualifying[i]] > counts[qualifying[j]]
		}
		if qualifying[i].from != qualifying[j].from {
			return qualifying[i].from < qualifying[j].from
		}
		return qualifying[i].to < qualifying[j].to
	})

	examples := make([]string, 0, a.config.MaxExamples)
	for _, pair := range qualifying {
		if len(examples) == a.config.MaxExamples {
			break
		}
		examples = append(examples, fmt.Sprintf("%s → %s (%d times)", pair.from, pair.to, counts[pair]))
	}

	return &PatternInsight{
		Type: InsightCategoryConfusion,
		Description: fmt.Sprintf(
			"%d rejections involved receipts and charges categorized differently across %d category pairs",
			total, len(qualifying)),
		Frequency:      total,
		Examples:       examples,
		Recommendation: "Receipts and charges are being categorized inconsistently; review the category mappings shown in the examples.",
	}, nil
}

// ProblematicMerchants aggregates recent rejections by their
// (receipt merchant, charge description) pair, keeping pairs seen at least
// twice, most frequent first. A limit of 0 returns the top 10.
func (a *Analyzer) ProblematicMerchants(limit int) ([]ProblematicMerchant, error) {
	if limit <= 0 {
		limit = 10
	}
	since := time.Now().UTC().AddDate(0, 0, -a.config.LookbackDays)

	records, err := a.repo.QuerySkipRecords(since, storage.SkipFilters{})
	if err != nil {
		return nil, err
	}

	pairs, err := a.fetchPairs(records)
	if err != nil {
		return nil, err
	}

	type merchantPair struct{ receipt, charge string }
	type aggregate struct {
		count      int
		amountDiff float64
		dateDiff   int
	}
	groups := make(map[merchantPair]*aggregate)
	for _, record := range records {
		pair, ok := pairs[record.ID]
		if !ok || pair.receipt.Merchant == "" {
			continue
		}
		key := merchantPair{pair.receipt.Merchant, pair.charge.Description}
		agg := groups[key]
		if agg == nil {
			agg = &aggregate{}
			groups[key] = agg
		}
		agg.count++
		agg.amountDiff += record.AmountDiff
		agg.dateDiff += record.DateDiff
	}

	var result []ProblematicMerchant
	for key, agg := range groups {
		if agg.count < a.config.MerchantPairMinCount {
			continue
		}
		result = append(result, ProblematicMerchant{
			ReceiptMerchant: key.receipt,
			ChargeMerchant:  key.charge,
			Frequency:       agg.count,
			AvgAmountDiff:   agg.amountDiff / float64(agg.count),
			AvgDateDiff:     float64(agg.dateDiff) / float64(agg.count),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Frequency != result[j].Frequency {
			return result[i].Frequency > result[j].Frequency
		}
		if result[i].ReceiptMerchant != result[j].ReceiptMerchant {
			return result[i].ReceiptMerchant < result[j].ReceiptMerchant
		}
		return result[i].ChargeMerchant < result[j].ChargeMerchant
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GenerateRecommendations concatenates every insight's recommendation with
// concrete alias-mapping suggestions for the worst merchant pairs.
func (a *Analyzer) GenerateRecommendations() ([]string, error) {
	insights, err := a.AnalyzePatterns(0)
	if err != nil {
		return nil, err
	}

	recommendations := make([]string, 0, len(insights))
	for _, insight := range insights {
		recommendations = append(recommendations, insight.Recommendation)
	}

	merchants, err := a.ProblematicMerchants(0)
	if err != nil {
		// Alias suggestions are additive; keep the insight recommendations.
		a.logger.Warn("problematic merchant aggregation failed", "error", err)
		return recommendations, nil
	}

	for _, merchant := range merchants {
		if merchant.Frequency <= a.config.AliasSuggestMinCount {
			continue
		}
		recommendations = append(recommendations, fmt.Sprintf(
			"Add alias mapping: %q → %q (%d failed matches)",
			merchant.ReceiptMerchant, merchant.ChargeMerchant, merchant.Frequency))
	}

	return recommendations, nil
}

// recordPair holds the receipt and charge a skip record refers to.
type recordPair struct {
	receipt *storage.Receipt
	charge  *storage.Charge
}

// fetchPairs batch-fetches the receipts and charges referenced by the given
// skip records, keyed by skip record id. Records whose endpoints no longer
// exist are omitted. One query per side, never per record.
func (a *Analyzer) fetchPairs(records []*storage.SkipRecord) (map[string]recordPair, error) {
	receiptIDs := make([]string, 0, len(records))
	chargeIDs := make([]string, 0, len(records))
	seenReceipts := make(map[string]bool)
	seenCharges := make(map[string]bool)
	for _, record := range records {
		if !seenReceipts[record.ReceiptID] {
			seenReceipts[record.ReceiptID] = true
			receiptIDs = append(receiptIDs, record.ReceiptID)
		}
		if !seenCharges[record.ChargeID] {
			seenCharges[record.ChargeID] = true
			chargeIDs = append(chargeIDs, record.ChargeID)
		}
	}

	receipts, err := a.repo.GetReceiptsByIDs(receiptIDs)
	if err != nil {
		return nil, err
	}
	charges, err := a.repo.GetChargesByIDs(chargeIDs)
	if err != nil {
		return nil, err
	}

	pairs := make(map[string]recordPair, len(records))
	for _, record := range records {
		receipt, ok := receipts[record.ReceiptID]
		if !ok {
			continue
		}
		charge, ok := charges[record.ChargeID]
		if !ok {
			continue
		}
		pairs[record.ID] = recordPair{receipt: receipt, charge: charge}
	}
	return pairs, nil
}
