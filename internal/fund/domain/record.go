package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FundRecord is one fund's metrics for one month, keyed exactly as the
// provider sends them. Every metric is independently nullable.
type FundRecord struct {
	FundID          string `json:"Fund_ID"`
	FundName        string `json:"Fund_Name"`
	Category        string `json:"Category"`
	NAV             Number `json:"NAV"`
	AUMCr           Number `json:"AUM_Cr"`
	CAGR5Y          Number `json:"5Y_CAGR"`
	Rolling3Y       Number `json:"3Y_Rolling"`
	Sharpe3Y        Number `json:"Sharpe_3Y"`
	Sortino3Y       Number `json:"Sortino_3Y"`
	Alpha           Number `json:"Alpha"`
	Beta            Number `json:"Beta"`
	StdDev          Number `json:"Std_Dev"`
	MaxDD           Number `json:"Max_DD"`
	RecoveryMo      Number `json:"Recovery_Mo"`
	DownsideCapture Number `json:"Downside_Capture"`
	Expense         Number `json:"Expense"`
	Turnover        Number `json:"Turnover"`
	Concentration   Number `json:"Concentration"`
	FundHouse       Text   `json:"Fund_House"`
	ManagerTenure   Number `json:"Manager_Tenure"`
	ManagerRecord   Text   `json:"Manager_Record"`
	AMCRisk         Text   `json:"AMC_Risk"`
	ESG             Text   `json:"ESG"`
	LiquidityRisk   Number `json:"Liquidity_Risk"`
	StyleFit        Number `json:"Style_Fit"`
}

// Label identifies the record in error messages.
func (r FundRecord) Label() string {
	if name := strings.TrimSpace(r.FundName); name != "" {
		return name
	}
	return strings.TrimSpace(r.FundID)
}

// UnmarshalJSON accepts numeric identifiers, which some provider exports emit
// for Fund_ID.
func (r *FundRecord) UnmarshalJSON(data []byte) error {
	type plain FundRecord
	aux := struct {
		*plain
		FundID   identifier `json:"Fund_ID"`
		FundName identifier `json:"Fund_Name"`
		Category identifier `json:"Category"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.FundID = string(aux.FundID)
	r.FundName = string(aux.FundName)
	r.Category = string(aux.Category)
	return nil
}

type identifier string

func (i *identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*i = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = identifier(s)
	default:
		*i = identifier(data)
	}
	return nil
}

// Number is a nullable provider metric. It decodes JSON numbers, numeric
// strings, "" and null. Anything else is kept as malformed so that the
// record, not the whole batch, is rejected.
type Number struct {
	Value float64
	Valid bool

	malformed string
}

func Float(v float64) Number {
	return Number{Value: v, Valid: true}
}

// Ptr returns nil for a null metric.
func (n Number) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// Malformed returns the raw input when it could not be read as a number.
func (n Number) Malformed() (string, bool) {
	return n.malformed, n.malformed != ""
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid || math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			n.malformed = s
			return nil
		}
		n.Value, n.Valid = v, true
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		n.malformed = string(data)
		return nil
	}
	n.Value, n.Valid = v, true
	return nil
}

// Text is a nullable provider string. Empty strings decode as null.
type Text struct {
	Value string
	Valid bool
}

func String(v string) Text {
	return Text{Value: v, Valid: v != ""}
}

func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Value)
}

func (t *Text) UnmarshalJSON(data []byte) error {
	*t = Text{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] != '"' {
		t.Value, t.Valid = string(data), true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t.Value, t.Valid = s, true
	return nil
}
