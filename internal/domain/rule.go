package domain

import "time"

// RiskRule is one weighted condition of the risk score.
// Expression is a CEL expression returning bool; when it evaluates to true
// the rule contributes Weight points to the score.
type RiskRule struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Version     string `json:"version" yaml:"version"`

	// CEL expression to evaluate
	Expression string `json:"expression" yaml:"expression"`

	// Points added to the score when the expression holds
	Weight int `json:"weight" yaml:"weight"`

	// Whether rule is active
	Enabled bool `json:"enabled" yaml:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"-"`
}

// Identifiers of the default risk rules.
const (
	RuleCVVMismatch     = "cvv_mismatch"
	RuleExpDateMismatch = "exp_date_mismatch"
	RuleGeoMismatch     = "geo_mismatch"
	RuleCardNotPresent  = "card_not_present"
)
