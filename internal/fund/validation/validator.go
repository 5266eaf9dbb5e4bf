// Package validation decides whether a provider record may be persisted.
//
// Structural problems (missing identity, unknown category, out-of-bound or
// unreadable metrics) reject the record. Missing critical metrics and
// statistical outliers only produce warnings.
package validation

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/smallbiznis/fundtrack/internal/config"
	"github.com/smallbiznis/fundtrack/internal/fund/category"
	"github.com/smallbiznis/fundtrack/internal/fund/domain"
	obslogger "github.com/smallbiznis/fundtrack/internal/observability/logger"
	"go.uber.org/zap"
)

// Validated is a record that passed validation with its category normalized.
// It can only be obtained from Validator.Validate.
type Validated struct {
	record domain.FundRecord
}

func (v Validated) Record() domain.FundRecord {
	return v.record
}

type Report struct {
	Valid    bool
	Reasons  []string
	Warnings []string
}

// Reason joins the rejection reasons into one line.
func (r Report) Reason() string {
	return strings.Join(r.Reasons, "; ")
}

type Validator struct {
	log    *zap.Logger
	config *config.IngestionConfigHolder
}

func New(log *zap.Logger, holder *config.IngestionConfigHolder) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	if holder == nil {
		holder = config.NewStaticIngestionConfigHolder(config.DefaultIngestionConfig())
	}
	return &Validator{
		log:    log.Named("fund.validation"),
		config: holder,
	}
}

type metric struct {
	name string
	get  func(*domain.FundRecord) domain.Number
}

type bound struct {
	metric
	min *float64
	max *float64
}

func atLeast(v float64) *float64 { return &v }
func atMost(v float64) *float64  { return &v }

var (
	nav             = metric{"NAV", func(r *domain.FundRecord) domain.Number { return r.NAV }}
	aum             = metric{"AUM_Cr", func(r *domain.FundRecord) domain.Number { return r.AUMCr }}
	cagr5y          = metric{"5Y_CAGR", func(r *domain.FundRecord) domain.Number { return r.CAGR5Y }}
	rolling3y       = metric{"3Y_Rolling", func(r *domain.FundRecord) domain.Number { return r.Rolling3Y }}
	sharpe3y        = metric{"Sharpe_3Y", func(r *domain.FundRecord) domain.Number { return r.Sharpe3Y }}
	sortino3y       = metric{"Sortino_3Y", func(r *domain.FundRecord) domain.Number { return r.Sortino3Y }}
	alpha           = metric{"Alpha", func(r *domain.FundRecord) domain.Number { return r.Alpha }}
	beta            = metric{"Beta", func(r *domain.FundRecord) domain.Number { return r.Beta }}
	stdDev          = metric{"Std_Dev", func(r *domain.FundRecord) domain.Number { return r.StdDev }}
	maxDD           = metric{"Max_DD", func(r *domain.FundRecord) domain.Number { return r.MaxDD }}
	recoveryMo      = metric{"Recovery_Mo", func(r *domain.FundRecord) domain.Number { return r.RecoveryMo }}
	downsideCapture = metric{"Downside_Capture", func(r *domain.FundRecord) domain.Number { return r.DownsideCapture }}
	expense         = metric{"Expense", func(r *domain.FundRecord) domain.Number { return r.Expense }}
	turnover        = metric{"Turnover", func(r *domain.FundRecord) domain.Number { return r.Turnover }}
	concentration   = metric{"Concentration", func(r *domain.FundRecord) domain.Number { return r.Concentration }}
	managerTenure   = metric{"Manager_Tenure", func(r *domain.FundRecord) domain.Number { return r.ManagerTenure }}
	liquidityRisk   = metric{"Liquidity_Risk", func(r *domain.FundRecord) domain.Number { return r.LiquidityRisk }}
	styleFit        = metric{"Style_Fit", func(r *domain.FundRecord) domain.Number { return r.StyleFit }}
)

var allMetrics = []metric{
	nav, aum, cagr5y, rolling3y, sharpe3y, sortino3y, alpha, beta, stdDev, maxDD,
	recoveryMo, downsideCapture, expense, turnover, concentration, managerTenure,
	liquidityRisk, styleFit,
}

var bounds = []bound{
	{metric: nav, min: atLeast(0)},
	{metric: aum, min: atLeast(0)},
	{metric: cagr5y, min: atLeast(-100), max: atMost(1000)},
	{metric: rolling3y, min: atLeast(0), max: atMost(100)},
	{metric: beta, min: atLeast(0)},
	{metric: stdDev, min: atLeast(0)},
	{metric: maxDD, max: atMost(0)},
	{metric: recoveryMo, min: atLeast(0)},
	{metric: downsideCapture, min: atLeast(0)},
	{metric: expense, min: atLeast(0), max: atMost(5)},
	{metric: turnover, min: atLeast(0)},
	{metric: concentration, min: atLeast(1), max: atMost(5)},
	{metric: managerTenure, min: atLeast(0)},
	{metric: liquidityRisk, min: atLeast(1), max: atMost(5)},
	{metric: styleFit, min: atLeast(1), max: atMost(5)},
}

var criticalMetrics = []metric{sharpe3y, expense, aum}

// Validate normalizes the record's category and checks it. The returned
// Validated is only meaningful when the report is valid.
func (v *Validator) Validate(ctx context.Context, rec domain.FundRecord) (Validated, Report) {
	report := Report{}

	rec.FundID = strings.TrimSpace(rec.FundID)
	rec.FundName = strings.TrimSpace(rec.FundName)

	var missing []string
	if rec.FundID == "" {
		missing = append(missing, "Fund_ID")
	}
	if rec.FundName == "" {
		missing = append(missing, "Fund_Name")
	}
	if strings.TrimSpace(rec.Category) == "" {
		missing = append(missing, "Category")
	}
	if len(missing) > 0 {
		report.Reasons = append(report.Reasons, "missing required field(s): "+strings.Join(missing, ", "))
		return Validated{}, report
	}

	rec.Category = category.Normalize(rec.Category)
	if !category.IsCanonical(rec.Category) {
		report.Reasons = append(report.Reasons, fmt.Sprintf("invalid category %q", rec.Category))
	}

	for _, m := range allMetrics {
		n := m.get(&rec)
		if raw, ok := n.Malformed(); ok {
			report.Reasons = append(report.Reasons, fmt.Sprintf("%s is not a number: %q", m.name, raw))
			continue
		}
		if n.Valid && (math.IsNaN(n.Value) || math.IsInf(n.Value, 0)) {
			report.Reasons = append(report.Reasons, fmt.Sprintf("%s must be finite", m.name))
		}
	}

	for _, b := range bounds {
		n := b.get(&rec)
		if !n.Valid || math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
			continue
		}
		if b.min != nil && n.Value < *b.min {
			report.Reasons = append(report.Reasons, fmt.Sprintf("%s %v is below minimum %v", b.name, n.Value, *b.min))
		}
		if b.max != nil && n.Value > *b.max {
			report.Reasons = append(report.Reasons, fmt.Sprintf("%s %v is above maximum %v", b.name, n.Value, *b.max))
		}
	}

	if len(report.Reasons) > 0 {
		return Validated{}, report
	}

	report.Valid = true
	report.Warnings = v.warnings(rec)
	if len(report.Warnings) > 0 {
		obslogger.WithContext(ctx, v.log).Warn("fund.validation.warning",
			zap.String("fund_id", rec.FundID),
			zap.String("fund_name", rec.FundName),
			zap.Strings("warnings", report.Warnings),
		)
	}

	return Validated{record: rec}, report
}

func (v *Validator) warnings(rec domain.FundRecord) []string {
	var out []string
	for _, m := range criticalMetrics {
		if !m.get(&rec).Valid {
			out = append(out, "missing critical field "+m.name)
		}
	}

	thresholds := v.config.Get().Outliers
	if rec.CAGR5Y.Valid && (rec.CAGR5Y.Value < thresholds.CAGRMin || rec.CAGR5Y.Value > thresholds.CAGRMax) {
		out = append(out, fmt.Sprintf("5Y_CAGR outlier: %v", rec.CAGR5Y.Value))
	}
	if rec.Expense.Valid && (rec.Expense.Value < thresholds.ExpenseMin || rec.Expense.Value > thresholds.ExpenseMax) {
		out = append(out, fmt.Sprintf("Expense outlier: %v", rec.Expense.Value))
	}
	return out
}
