// Package indicators evaluates the identity-theft indicators of normalized records.
package indicators

import "github.com/opensource-finance/harrier/internal/domain"

// Evaluate computes the indicators of a single record.
func Evaluate(r domain.Record) domain.IndicatorSet {
	set := domain.IndicatorSet{
		CVVMismatch:     r.CardCVV != r.EnteredCVV,
		CardNotPresent:  !r.CardPresent,
		GeoMismatch:     r.AcqCountry != r.MerchantCountryCode,
		ExpDateMismatch: !r.ExpirationDateKeyInMatch,
		CVVComparison:   Compare(r.CardCVV, r.EnteredCVV),
		GeoComparison:   Compare(r.AcqCountry, r.MerchantCountryCode),
	}
	set.PotentialIdentityTheft = (set.CVVMismatch || set.ExpDateMismatch || set.GeoMismatch) && set.CardNotPresent
	return set
}

// EvaluateAll computes indicators for every record, aligned by index.
func EvaluateAll(records []domain.Record) []domain.IndicatorSet {
	sets := make([]domain.IndicatorSet, len(records))
	for i := range records {
		sets[i] = Evaluate(records[i])
	}
	return sets
}

// Compare is a three-valued equality: Unknown when either side is missing.
func Compare(a, b string) domain.Comparison {
	if isMissing(a) || isMissing(b) {
		return domain.ComparisonUnknown
	}
	if a == b {
		return domain.ComparisonMatch
	}
	return domain.ComparisonMismatch
}

func isMissing(s string) bool {
	return s == "" || s == domain.Unknown
}
