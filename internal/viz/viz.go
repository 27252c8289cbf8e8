// Package viz builds the summary tables behind the dashboard charts.
package viz

import (
	"sort"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/kpi"
)

// TopN is the number of rows kept in the country and category rankings.
const TopN = 10

type tally struct {
	total int
	fraud int
}

func (t *tally) add(fraud bool) {
	t.total++
	if fraud {
		t.fraud++
	}
}

// Build computes the five chart tables. records and sets must be aligned
// by index. Empty input yields five empty tables.
func Build(records []domain.Record, sets []domain.IndicatorSet) domain.Charts {
	return domain.Charts{
		FraudTrend:         FraudTrend(records),
		FraudByCountry:     FraudByCountry(records),
		MerchantCategories: MerchantCategories(records),
		AmountRanges:       AmountRanges(records),
		Indicators:         Indicators(records, sets),
	}
}

// FraudTrend groups records by transaction date, ascending.
func FraudTrend(records []domain.Record) []domain.TrendPoint {
	byDay := make(map[time.Time]*tally)
	for _, r := range records {
		t, ok := byDay[r.TransactionDate]
		if !ok {
			t = &tally{}
			byDay[r.TransactionDate] = t
		}
		t.add(r.Fraud())
	}

	points := make([]domain.TrendPoint, 0, len(byDay))
	for day, t := range byDay {
		points = append(points, domain.TrendPoint{
			Date:         day,
			Transactions: t.total,
			FraudCases:   t.fraud,
			FraudRate:    kpi.Rate(t.fraud, t.total),
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	return points
}

// FraudByCountry counts fraud cases per merchant country and keeps the
// TopN countries. Countries without fraud are omitted.
func FraudByCountry(records []domain.Record) []domain.CountryFraud {
	counts := make(map[string]int)
	for _, r := range records {
		if r.Fraud() {
			counts[r.MerchantCountryCode]++
		}
	}

	rows := make([]domain.CountryFraud, 0, len(counts))
	for country, n := range counts {
		rows = append(rows, domain.CountryFraud{Country: country, FraudCount: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].FraudCount != rows[j].FraudCount {
			return rows[i].FraudCount > rows[j].FraudCount
		}
		return rows[i].Country < rows[j].Country
	})
	return truncate(rows)
}

// MerchantCategories ranks categories by fraud rate and keeps the TopN.
// There is no minimum volume: a single fraudulent transaction ranks at 100%.
func MerchantCategories(records []domain.Record) []domain.CategoryFraud {
	byCategory := make(map[string]*tally)
	for _, r := range records {
		t, ok := byCategory[r.MerchantCategoryCode]
		if !ok {
			t = &tally{}
			byCategory[r.MerchantCategoryCode] = t
		}
		t.add(r.Fraud())
	}

	rows := make([]domain.CategoryFraud, 0, len(byCategory))
	for category, t := range byCategory {
		rows = append(rows, domain.CategoryFraud{
			Category:     category,
			Transactions: t.total,
			FraudCases:   t.fraud,
			FraudRate:    kpi.Rate(t.fraud, t.total),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].FraudRate != rows[j].FraudRate {
			return rows[i].FraudRate > rows[j].FraudRate
		}
		return rows[i].Category < rows[j].Category
	})
	return truncate(rows)
}

// AmountRanges summarizes the observed amount buckets in natural order.
func AmountRanges(records []domain.Record) []domain.AmountRangeFraud {
	tallies := make([]tally, len(domain.AmountRanges))
	for _, r := range records {
		if i := r.AmountRange.Order(); i >= 0 {
			tallies[i].add(r.Fraud())
		}
	}

	rows := make([]domain.AmountRangeFraud, 0, len(tallies))
	for i, t := range tallies {
		if t.total == 0 {
			continue
		}
		rows = append(rows, domain.AmountRangeFraud{
			Range:        domain.AmountRanges[i],
			Transactions: t.total,
			FraudCases:   t.fraud,
			FraudRate:    kpi.Rate(t.fraud, t.total),
		})
	}
	return rows
}

// Indicators summarizes each indicator independently of the others.
func Indicators(records []domain.Record, sets []domain.IndicatorSet) []domain.IndicatorSummary {
	if len(records) == 0 {
		return []domain.IndicatorSummary{}
	}

	var cvv, cnp, geo, exp tally
	for i, r := range records {
		fraud := r.Fraud()
		s := sets[i]
		if s.CVVMismatch {
			cvv.add(fraud)
		}
		if s.CardNotPresent {
			cnp.add(fraud)
		}
		if s.GeoMismatch {
			geo.add(fraud)
		}
		if s.ExpDateMismatch {
			exp.add(fraud)
		}
	}

	row := func(name string, t tally) domain.IndicatorSummary {
		return domain.IndicatorSummary{Indicator: name, Cases: t.total, FraudRate: kpi.Rate(t.fraud, t.total)}
	}
	return []domain.IndicatorSummary{
		row(domain.IndicatorCVVMismatch, cvv),
		row(domain.IndicatorCardNotPresent, cnp),
		row(domain.IndicatorGeoMismatch, geo),
		row(domain.IndicatorExpDateMismatch, exp),
	}
}

func truncate[T any](rows []T) []T {
	if len(rows) > TopN {
		return rows[:TopN]
	}
	return rows
}
