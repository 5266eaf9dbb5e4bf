package validation

import (
	"context"
	"math"
	"testing"

	"github.com/smallbiznis/fundtrack/internal/config"
	"github.com/smallbiznis/fundtrack/internal/fund/category"
	"github.com/smallbiznis/fundtrack/internal/fund/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func completeRecord() domain.FundRecord {
	return domain.FundRecord{
		FundID:          "F100",
		FundName:        "Axis Bluechip",
		Category:        "large cap",
		NAV:             domain.Float(45.2),
		AUMCr:           domain.Float(32000),
		CAGR5Y:          domain.Float(14.1),
		Rolling3Y:       domain.Float(62),
		Sharpe3Y:        domain.Float(1.1),
		Beta:            domain.Float(0.92),
		StdDev:          domain.Float(13.4),
		MaxDD:           domain.Float(-21.5),
		RecoveryMo:      domain.Float(7),
		DownsideCapture: domain.Float(88),
		Expense:         domain.Float(0.65),
		Concentration:   domain.Float(3),
		ManagerTenure:   domain.Float(6.5),
	}
}

func TestValidateAcceptsCompleteRecord(t *testing.T) {
	v := New(zap.NewNop(), nil)

	validated, report := v.Validate(context.Background(), completeRecord())

	require.True(t, report.Valid, report.Reason())
	assert.Empty(t, report.Warnings)
	assert.Equal(t, category.LargeCapEquity, validated.Record().Category)
}

func TestValidateRequiredFields(t *testing.T) {
	v := New(zap.NewNop(), nil)
	rec := completeRecord()
	rec.FundID = "  "
	rec.Category = ""

	_, report := v.Validate(context.Background(), rec)

	assert.False(t, report.Valid)
	require.Len(t, report.Reasons, 1)
	assert.Contains(t, report.Reasons[0], "Fund_ID")
	assert.Contains(t, report.Reasons[0], "Category")
}

func TestValidateRejectsUnknownCategory(t *testing.T) {
	v := New(zap.NewNop(), nil)
	rec := completeRecord()
	rec.Category = "Sectoral"

	_, report := v.Validate(context.Background(), rec)

	assert.False(t, report.Valid)
	assert.Contains(t, report.Reason(), `invalid category "Sectoral"`)
}

func TestValidateRangeRules(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.FundRecord)
		want   string
	}{
		{name: "negative nav", mutate: func(r *domain.FundRecord) { r.NAV = domain.Float(-1) }, want: "NAV"},
		{name: "positive drawdown", mutate: func(r *domain.FundRecord) { r.MaxDD = domain.Float(4) }, want: "Max_DD"},
		{name: "expense above cap", mutate: func(r *domain.FundRecord) { r.Expense = domain.Float(5.5) }, want: "Expense"},
		{name: "rolling above 100", mutate: func(r *domain.FundRecord) { r.Rolling3Y = domain.Float(101) }, want: "3Y_Rolling"},
		{name: "concentration rating", mutate: func(r *domain.FundRecord) { r.Concentration = domain.Float(0) }, want: "Concentration"},
		{name: "style fit rating", mutate: func(r *domain.FundRecord) { r.StyleFit = domain.Float(6) }, want: "Style_Fit"},
		{name: "cagr below floor", mutate: func(r *domain.FundRecord) { r.CAGR5Y = domain.Float(-120) }, want: "5Y_CAGR"},
		{name: "non finite", mutate: func(r *domain.FundRecord) { r.Alpha = domain.Float(math.Inf(1)) }, want: "Alpha must be finite"},
	}

	v := New(zap.NewNop(), nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := completeRecord()
			tc.mutate(&rec)

			_, report := v.Validate(context.Background(), rec)

			assert.False(t, report.Valid)
			assert.Contains(t, report.Reason(), tc.want)
		})
	}
}

func TestValidateRejectsMalformedNumber(t *testing.T) {
	v := New(zap.NewNop(), nil)
	rec := completeRecord()
	require.NoError(t, rec.Beta.UnmarshalJSON([]byte(`"n/a"`)))

	_, report := v.Validate(context.Background(), rec)

	assert.False(t, report.Valid)
	assert.Contains(t, report.Reason(), `Beta is not a number: "n/a"`)
}

func TestValidateNullsAreAccepted(t *testing.T) {
	v := New(zap.NewNop(), nil)
	rec := domain.FundRecord{FundID: "F1", FundName: "Sparse Fund", Category: "Gilt"}

	validated, report := v.Validate(context.Background(), rec)

	require.True(t, report.Valid, report.Reason())
	assert.Equal(t, category.DebtGilt, validated.Record().Category)
	assert.ElementsMatch(t, []string{
		"missing critical field Sharpe_3Y",
		"missing critical field Expense",
		"missing critical field AUM_Cr",
	}, report.Warnings)
}

func TestValidateOutliersWarnOnly(t *testing.T) {
	v := New(zap.NewNop(), nil)
	rec := completeRecord()
	rec.CAGR5Y = domain.Float(150)
	rec.Expense = domain.Float(3.5)

	_, report := v.Validate(context.Background(), rec)

	require.True(t, report.Valid, report.Reason())
	assert.Equal(t, []string{"5Y_CAGR outlier: 150", "Expense outlier: 3.5"}, report.Warnings)
}

func TestValidateOutlierThresholdsFollowConfig(t *testing.T) {
	cfg := config.DefaultIngestionConfig()
	cfg.Outliers.CAGRMax = 200
	v := New(zap.NewNop(), config.NewStaticIngestionConfigHolder(cfg))
	rec := completeRecord()
	rec.CAGR5Y = domain.Float(150)

	_, report := v.Validate(context.Background(), rec)

	require.True(t, report.Valid)
	assert.Empty(t, report.Warnings)
}
