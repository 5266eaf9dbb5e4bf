package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{raw: "Large Cap", want: LargeCapEquity},
		{raw: "  large cap  ", want: LargeCapEquity},
		{raw: "LARGE-CAP", want: LargeCapEquity},
		{raw: "Equity: Flexi Cap", want: FlexiCapMultiCap},
		{raw: "multicap", want: FlexiCapMultiCap},
		{raw: "ETF", want: IndexETF},
		{raw: "Global", want: InternationalEquity},
		{raw: "Aggressive Hybrid", want: HybridEquityOriented},
		{raw: "conservative hybrid", want: HybridConservative},
		{raw: "Corporate Bond", want: DebtCorporate},
		{raw: "Liquid", want: DebtShortUltraShort},
		{raw: "Banking & PSU", want: DebtBankingPSU},
		{raw: "g-sec", want: DebtGilt},
		{raw: "Debt – Gilt", want: DebtGilt},
		{raw: "Debt: Short", want: DebtShortUltraShort},
		{raw: "debt: short", want: DebtShortUltraShort},
		{raw: "Debt: Banking", want: DebtBankingPSU},
		{raw: " Sectoral ", want: "Sectoral"},
		{raw: "", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.raw))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, raw := range []string{"Large Cap", "small-cap", "Money Market", "Thematic", "Hybrid - Conservative"} {
		once := Normalize(raw)
		assert.Equal(t, once, Normalize(once), raw)
	}
}

func TestCanonicalValuesMapToThemselves(t *testing.T) {
	all := All()
	assert.Len(t, all, 12)
	for _, c := range all {
		assert.Equal(t, c, Normalize(c))
		assert.True(t, IsCanonical(c))
	}
	assert.False(t, IsCanonical("Large Cap"))
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0] = "mutated"
	assert.Equal(t, LargeCapEquity, All()[0])
}
