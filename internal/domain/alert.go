package domain

// HighRiskThreshold is the score above which an alert is high risk.
const HighRiskThreshold = 5

// Severity classes used to colour alerts.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Alert is a record flagged as potential identity theft, with its score.
type Alert struct {
	Record
	Indicators  IndicatorSet `json:"indicators"`
	RiskScore   int          `json:"risk_score"`
	TriggeredBy []string     `json:"triggeredBy,omitempty"`
	Labels      []string     `json:"labels"`
	Severity    string       `json:"severity"`
}

// SeverityFor maps a risk score to its severity class.
func SeverityFor(score int) string {
	switch {
	case score > HighRiskThreshold:
		return SeverityHigh
	case score > 3:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AlertCSVColumns is the column order of the alert export.
var AlertCSVColumns = []string{
	"customerId",
	"transactionDateTime",
	"transactionAmount",
	"merchantName",
	"merchantCountryCode",
	"risk_score",
	"cardCVV",
	"enteredCVV",
	"expirationDateKeyInMatch",
	"acqCountry",
	"cardPresent",
}
