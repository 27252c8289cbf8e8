package rules

import "github.com/opensource-finance/harrier/internal/domain"

// DefaultRiskRules returns the identity-theft rule set: a record scores
// 3 for a CVV mismatch, 2 for an expiration date mismatch, 2 for a country
// mismatch and 1 when the card was not present, for a maximum of 8.
func DefaultRiskRules() []*domain.RiskRule {
	return []*domain.RiskRule{
		{
			ID:          domain.RuleCVVMismatch,
			Name:        "CVV mismatch",
			Description: "Entered CVV differs from the card CVV",
			Version:     "1.0.0",
			Expression:  "cvv_mismatch",
			Weight:      3,
			Enabled:     true,
		},
		{
			ID:          domain.RuleExpDateMismatch,
			Name:        "Expiration date mismatch",
			Description: "Expiration date did not match on authorization",
			Version:     "1.0.0",
			Expression:  "exp_date_mismatch",
			Weight:      2,
			Enabled:     true,
		},
		{
			ID:          domain.RuleGeoMismatch,
			Name:        "Country mismatch",
			Description: "Acquirer country differs from the merchant country",
			Version:     "1.0.0",
			Expression:  "geo_mismatch",
			Weight:      2,
			Enabled:     true,
		},
		{
			ID:          domain.RuleCardNotPresent,
			Name:        "Card not present",
			Description: "Physical card was not presented",
			Version:     "1.0.0",
			Expression:  "card_not_present",
			Weight:      1,
			Enabled:     true,
		},
	}
}
