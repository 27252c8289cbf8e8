// Package alerts selects and ranks the potential identity-theft alerts.
package alerts

import (
	"context"
	"sort"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rules"
)

// DashboardLimit is the number of alerts shown in the dashboard table.
const DashboardLimit = 10

// Scorer scores records aligned with their indicator sets.
type Scorer interface {
	ScoreAll(ctx context.Context, records []domain.Record, sets []domain.IndicatorSet) ([]rules.Result, error)
}

// Selector turns flagged records into ranked alerts.
type Selector struct {
	scorer Scorer

	// Scores at or below this value are dropped when Options.HighRiskOnly is set.
	HighRiskThreshold int
}

// Options controls a single selection.
type Options struct {
	HighRiskOnly bool

	// Limit truncates the result; zero or negative returns every alert.
	Limit int
}

// NewSelector creates a selector backed by the given scorer.
func NewSelector(scorer Scorer) *Selector {
	return &Selector{
		scorer:            scorer,
		HighRiskThreshold: domain.HighRiskThreshold,
	}
}

// Select keeps the records flagged as potential identity theft, scores
// them and returns them ranked by score.
//
// Ties are ordered by most recent transaction first, then by transaction
// ID, then by input order.
func (s *Selector) Select(ctx context.Context, records []domain.Record, sets []domain.IndicatorSet, opts Options) ([]domain.Alert, error) {
	var (
		flagged     []domain.Record
		flaggedSets []domain.IndicatorSet
	)
	for i := range records {
		if sets[i].PotentialIdentityTheft {
			flagged = append(flagged, records[i])
			flaggedSets = append(flaggedSets, sets[i])
		}
	}

	alerts := make([]domain.Alert, 0, len(flagged))
	if len(flagged) == 0 {
		return alerts, nil
	}

	results, err := s.scorer.ScoreAll(ctx, flagged, flaggedSets)
	if err != nil {
		return nil, err
	}

	for i, res := range results {
		if opts.HighRiskOnly && res.Score <= s.HighRiskThreshold {
			continue
		}
		alerts = append(alerts, domain.Alert{
			Record:      flagged[i],
			Indicators:  flaggedSets[i],
			RiskScore:   res.Score,
			TriggeredBy: res.Triggered,
			Labels:      flaggedSets[i].Labels(),
			Severity:    domain.SeverityFor(res.Score),
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.RiskScore != b.RiskScore {
			return a.RiskScore > b.RiskScore
		}
		if !a.TransactionDateTime.Equal(b.TransactionDateTime) {
			return a.TransactionDateTime.After(b.TransactionDateTime)
		}
		return a.TransactionID < b.TransactionID
	})

	if opts.Limit > 0 && len(alerts) > opts.Limit {
		alerts = alerts[:opts.Limit]
	}
	return alerts, nil
}

// HighRiskCount returns the number of alerts scoring above the high-risk threshold.
func HighRiskCount(alerts []domain.Alert) int {
	n := 0
	for _, a := range alerts {
		if a.RiskScore > domain.HighRiskThreshold {
			n++
		}
	}
	return n
}
