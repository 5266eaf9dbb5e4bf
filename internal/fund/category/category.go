// Package category maps provider category labels onto the canonical fund
// category set.
package category

import "strings"

const (
	LargeCapEquity       = "Large Cap Equity"
	MidCapEquity         = "Mid Cap Equity"
	SmallCapEquity       = "Small Cap Equity"
	FlexiCapMultiCap     = "Flexi-Cap / MultiCap"
	IndexETF             = "Index / ETF"
	InternationalEquity  = "International Equity"
	HybridConservative   = "Hybrid – Conservative"
	HybridEquityOriented = "Hybrid – Equity-Oriented"
	DebtCorporate        = "Debt – Corporate"
	DebtShortUltraShort  = "Debt – Short/Ultra Short"
	DebtBankingPSU       = "Debt – Banking / PSU"
	DebtGilt             = "Debt – Gilt"
)

var canonical = []string{
	LargeCapEquity,
	MidCapEquity,
	SmallCapEquity,
	FlexiCapMultiCap,
	IndexETF,
	InternationalEquity,
	HybridConservative,
	HybridEquityOriented,
	DebtCorporate,
	DebtShortUltraShort,
	DebtBankingPSU,
	DebtGilt,
}

var aliases = map[string]string{
	"Large Cap":             LargeCapEquity,
	"Large-Cap":             LargeCapEquity,
	"LargeCap":              LargeCapEquity,
	"Equity: Large Cap":     LargeCapEquity,
	"Large Cap Fund":        LargeCapEquity,
	"Mid Cap":               MidCapEquity,
	"Mid-Cap":               MidCapEquity,
	"MidCap":                MidCapEquity,
	"Equity: Mid Cap":       MidCapEquity,
	"Mid Cap Fund":          MidCapEquity,
	"Small Cap":             SmallCapEquity,
	"Small-Cap":             SmallCapEquity,
	"SmallCap":              SmallCapEquity,
	"Equity: Small Cap":     SmallCapEquity,
	"Small Cap Fund":        SmallCapEquity,
	"Flexi Cap Equity":      FlexiCapMultiCap,
	"Flexi Cap":             FlexiCapMultiCap,
	"FlexiCap":              FlexiCapMultiCap,
	"Flexi-Cap":             FlexiCapMultiCap,
	"Multi Cap":             FlexiCapMultiCap,
	"MultiCap":              FlexiCapMultiCap,
	"Multi-Cap":             FlexiCapMultiCap,
	"Equity: Flexi Cap":     FlexiCapMultiCap,
	"Equity: Multi Cap":     FlexiCapMultiCap,
	"Index Fund":            IndexETF,
	"ETF":                   IndexETF,
	"Index":                 IndexETF,
	"Index/ETF":             IndexETF,
	"Equity: Index":         IndexETF,
	"International":         InternationalEquity,
	"Global":                InternationalEquity,
	"Foreign":               InternationalEquity,
	"International Fund":    InternationalEquity,
	"Equity: International": InternationalEquity,

	"Hybrid - Conservative":      HybridConservative,
	"Conservative Hybrid":        HybridConservative,
	"Hybrid Conservative":        HybridConservative,
	"Hybrid: Conservative":       HybridConservative,
	"Hybrid - Equity-Oriented":   HybridEquityOriented,
	"Hybrid Equity Oriented":     HybridEquityOriented,
	"Hybrid Equity-Oriented":     HybridEquityOriented,
	"Aggressive Hybrid":          HybridEquityOriented,
	"Hybrid: Equity":             HybridEquityOriented,
	"Hybrid: Aggressive":         HybridEquityOriented,
	"Debt - Corporate":           DebtCorporate,
	"Corporate Bond":             DebtCorporate,
	"Corporate Debt":             DebtCorporate,
	"Debt: Corporate":            DebtCorporate,
	"Debt: Corporate Bond":       DebtCorporate,
	"Debt - Short/Ultra Short":   DebtShortUltraShort,
	"Short Duration":             DebtShortUltraShort,
	"Ultra Short Duration":       DebtShortUltraShort,
	"Liquid":                     DebtShortUltraShort,
	"Money Market":               DebtShortUltraShort,
	"Debt: Short Duration":       DebtShortUltraShort,
	"Debt: Ultra Short Duration": DebtShortUltraShort,
	"Debt: Liquid":               DebtShortUltraShort,
	"Debt: Short":                DebtShortUltraShort,
	"Debt - Banking / PSU":       DebtBankingPSU,
	"Banking & PSU":              DebtBankingPSU,
	"Banking and PSU":            DebtBankingPSU,
	"PSU":                        DebtBankingPSU,
	"Debt: Banking & PSU":        DebtBankingPSU,
	"Debt: Banking":              DebtBankingPSU,
	"Debt - Gilt":                DebtGilt,
	"Gilt":                       DebtGilt,
	"Government Securities":      DebtGilt,
	"G-Sec":                      DebtGilt,
	"Debt: Gilt":                 DebtGilt,
}

// folded is the case-insensitive view of aliases, keyed by lower-cased label.
var folded map[string]string

func init() {
	for _, c := range canonical {
		aliases[c] = c
	}
	folded = make(map[string]string, len(aliases))
	for k, v := range aliases {
		folded[strings.ToLower(k)] = v
	}
}

// Normalize returns the canonical category for raw. Labels with no known
// alias come back trimmed so the validator can reject them.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if c, ok := aliases[trimmed]; ok {
		return c
	}
	if c, ok := folded[strings.ToLower(trimmed)]; ok {
		return c
	}
	return trimmed
}

func IsCanonical(value string) bool {
	for _, c := range canonical {
		if c == value {
			return true
		}
	}
	return false
}

// All returns the canonical categories in display order.
func All() []string {
	out := make([]string, len(canonical))
	copy(out, canonical)
	return out
}
