// Package dataset holds the immutable, normalized transaction snapshot.
package dataset

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/normalize"
)

// Snapshot is a read-only set of normalized records loaded once at startup.
// It is safe for concurrent use; nothing mutates it after construction.
type Snapshot struct {
	records  []domain.Record
	loadedAt time.Time
}

// New normalizes raw transactions into a snapshot. It fails on the first
// defective row.
func New(raw []domain.RawTransaction) (*Snapshot, error) {
	records, err := normalize.Normalize(raw)
	if err != nil {
		return nil, err
	}
	return &Snapshot{records: records, loadedAt: time.Now().UTC()}, nil
}

// FromRecords wraps already normalized records. The slice is copied.
func FromRecords(records []domain.Record) *Snapshot {
	cp := make([]domain.Record, len(records))
	copy(cp, records)
	return &Snapshot{records: cp, loadedAt: time.Now().UTC()}
}

// Load reads up to limit transactions from src and normalizes them.
func Load(ctx context.Context, src domain.Source, limit int) (*Snapshot, error) {
	raw, err := src.LoadTransactions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	snap, err := New(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize transactions: %w", err)
	}
	return snap, nil
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Records returns a copy of every record.
func (s *Snapshot) Records() []domain.Record {
	return s.Filter(domain.Filter{})
}

// Filter returns a new slice with the records matching f, in snapshot order.
func (s *Snapshot) Filter(f domain.Filter) []domain.Record {
	countries := set(f.Countries)
	categories := set(f.MerchantCategories)

	out := make([]domain.Record, 0, len(s.records))
	for _, r := range s.records {
		if f.DateRange != nil && !f.DateRange.Contains(r.TransactionDate) {
			continue
		}
		if countries != nil && !countries[r.MerchantCountryCode] {
			continue
		}
		if categories != nil && !categories[r.MerchantCategoryCode] {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Options lists the distinct countries and categories, sorted, and the
// date span of the snapshot.
func (s *Snapshot) Options() domain.FilterOptions {
	countries := make(map[string]bool)
	categories := make(map[string]bool)
	opts := domain.FilterOptions{}

	for i, r := range s.records {
		countries[r.MerchantCountryCode] = true
		categories[r.MerchantCategoryCode] = true
		if i == 0 || r.TransactionDate.Before(opts.MinDate) {
			opts.MinDate = r.TransactionDate
		}
		if i == 0 || r.TransactionDate.After(opts.MaxDate) {
			opts.MaxDate = r.TransactionDate
		}
	}

	opts.Countries = keys(countries)
	opts.MerchantCategories = keys(categories)
	return opts
}

func set(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
