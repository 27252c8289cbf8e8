// Package kpi reduces a filtered dataset to the dashboard KPI bundle.
package kpi

import "github.com/opensource-finance/harrier/internal/domain"

// Compute derives the KPI bundle and the indeterminate comparison counts.
// records and sets must be aligned by index.
func Compute(records []domain.Record, sets []domain.IndicatorSet) (domain.KPIs, domain.Indeterminate) {
	var (
		k   domain.KPIs
		ind domain.Indeterminate

		cvvFraud, cnpFraud, geoFraud, expFraud int
	)

	k.TotalTransactions = len(records)
	for i, rec := range records {
		s := sets[i]
		fraud := rec.Fraud()
		if fraud {
			k.FraudTransactions++
		}

		if s.CVVMismatch {
			k.CVVMismatchCount++
			if fraud {
				cvvFraud++
			}
		}
		if s.CardNotPresent {
			k.CardNotPresentCount++
			if fraud {
				cnpFraud++
			}
		}
		if s.GeoMismatch {
			k.GeoMismatchCount++
			if fraud {
				geoFraud++
			}
		}
		if s.ExpDateMismatch {
			k.ExpDateMismatchCount++
			if fraud {
				expFraud++
			}
		}
		if s.PotentialIdentityTheft {
			k.PotentialIdentityTheftCount++
		}

		if s.CVVComparison == domain.ComparisonUnknown {
			ind.CVVUnknown++
		}
		if s.GeoComparison == domain.ComparisonUnknown {
			ind.GeoUnknown++
		}
	}

	k.FraudRate = Rate(k.FraudTransactions, k.TotalTransactions)
	k.CVVMismatchFraudRate = Rate(cvvFraud, k.CVVMismatchCount)
	k.CardNotPresentFraudRate = Rate(cnpFraud, k.CardNotPresentCount)
	k.GeoMismatchFraudRate = Rate(geoFraud, k.GeoMismatchCount)
	k.ExpDateMismatchFraudRate = Rate(expFraud, k.ExpDateMismatchCount)
	k.PotentialIdentityTheftRate = Rate(k.PotentialIdentityTheftCount, k.TotalTransactions)

	return k, ind
}

// Rate returns count as a percentage of total, or 0 for an empty total.
func Rate(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(count) / float64(total)
}
