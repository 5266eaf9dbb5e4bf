package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFundRecordDecodesProviderShapes(t *testing.T) {
	raw := `{
		"Fund_ID": 1042,
		"Fund_Name": "Axis Bluechip",
		"Category": "Large Cap",
		"NAV": "45.2",
		"AUM_Cr": 32000,
		"5Y_CAGR": "",
		"Sharpe_3Y": null,
		"Expense": " 1.25 ",
		"Beta": "n/a",
		"Fund_House": "",
		"ESG": "AA"
	}`

	var rec FundRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	assert.Equal(t, "1042", rec.FundID)
	assert.Equal(t, "Axis Bluechip", rec.FundName)
	assert.Equal(t, "Large Cap", rec.Category)
	assert.Equal(t, Float(45.2), rec.NAV)
	assert.Equal(t, Float(32000), rec.AUMCr)
	assert.False(t, rec.CAGR5Y.Valid)
	assert.False(t, rec.Sharpe3Y.Valid)
	assert.Equal(t, 1.25, rec.Expense.Value)
	assert.False(t, rec.Rolling3Y.Valid, "absent field decodes as null")

	beta, malformed := rec.Beta.Malformed()
	assert.True(t, malformed)
	assert.Equal(t, "n/a", beta)
	assert.False(t, rec.Beta.Valid)

	assert.False(t, rec.FundHouse.Valid)
	assert.Equal(t, String("AA"), rec.ESG)
}

func TestFundRecordEncodesWithProviderNames(t *testing.T) {
	rec := FundRecord{
		FundID:   "F1",
		FundName: "Fund One",
		Category: "Large Cap Equity",
		CAGR5Y:   Float(12.5),
		ESG:      String("A"),
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 12.5, out["5Y_CAGR"])
	assert.Nil(t, out["Sharpe_3Y"])
	assert.Contains(t, out, "Sharpe_3Y")
	assert.Equal(t, "A", out["ESG"])
	assert.Equal(t, "F1", out["Fund_ID"])
}

func TestRecordLabel(t *testing.T) {
	assert.Equal(t, "Fund One", FundRecord{FundID: "F1", FundName: " Fund One "}.Label())
	assert.Equal(t, "F1", FundRecord{FundID: "F1"}.Label())
}

func TestNormalizeMonth(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)

	assert.Equal(t,
		time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		NormalizeMonth(time.Date(2025, 9, 15, 13, 45, 0, 0, time.UTC)),
	)
	// 02:00 IST on the 1st is still the previous month in UTC.
	assert.Equal(t,
		time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		NormalizeMonth(time.Date(2025, 9, 1, 2, 0, 0, 0, ist)),
	)
	assert.Equal(t,
		time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		PreviousMonth(time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), nil),
	)
	// The monthly trigger fires at 02:00 IST on the 1st, which is still the
	// last day of the prior month in UTC.
	firedAt := time.Date(2025, 10, 1, 2, 0, 0, 0, ist)
	assert.Equal(t,
		time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		PreviousMonth(firedAt, ist),
	)
}

func TestFundStatusValid(t *testing.T) {
	assert.True(t, FundStatusMerged.Valid())
	assert.False(t, FundStatus("Liquidated").Valid())
}
