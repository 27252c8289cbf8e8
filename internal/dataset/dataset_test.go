package dataset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(id, ts, country, category string) domain.RawTransaction {
	return domain.RawTransaction{
		TransactionID:        id,
		TransactionDateTime:  ts,
		TransactionAmount:    "10.00",
		MerchantCountryCode:  country,
		MerchantCategoryCode: category,
		AcqCountry:           country,
		CardCVV:              "1",
		EnteredCVV:           "1",
		IsFraud:              0,
	}
}

func fixture(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := New([]domain.RawTransaction{
		raw("1", "2016-01-01T10:00:00", "US", "food"),
		raw("2", "2016-01-02T10:00:00", "MX", "fuel"),
		raw("3", "2016-01-03T23:59:59", "US", "fuel"),
		raw("4", "2016-01-04T00:00:00", "CA", "food"),
	})
	require.NoError(t, err)
	return snap
}

func ids(records []domain.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.TransactionID
	}
	return out
}

func TestFilter(t *testing.T) {
	snap := fixture(t)
	day := func(d int) time.Time { return time.Date(2016, 1, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name   string
		filter domain.Filter
		want   []string
	}{
		{"NoFilter", domain.Filter{}, []string{"1", "2", "3", "4"}},
		{"InclusiveDates", domain.Filter{DateRange: &domain.DateRange{Start: day(2), End: day(3)}}, []string{"2", "3"}},
		{"OpenEnd", domain.Filter{DateRange: &domain.DateRange{Start: day(3)}}, []string{"3", "4"}},
		{"OpenStart", domain.Filter{DateRange: &domain.DateRange{End: day(1)}}, []string{"1"}},
		{"Countries", domain.Filter{Countries: []string{"US", "CA"}}, []string{"1", "3", "4"}},
		{"Categories", domain.Filter{MerchantCategories: []string{"fuel"}}, []string{"2", "3"}},
		{"Combined", domain.Filter{Countries: []string{"US"}, MerchantCategories: []string{"fuel"}}, []string{"3"}},
		{"NoMatch", domain.Filter{Countries: []string{"ZZ"}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(snap.Filter(tt.filter)))
		})
	}
}

func TestFilterReturnsCopy(t *testing.T) {
	snap := fixture(t)

	first := snap.Filter(domain.Filter{})
	first[0].MerchantCountryCode = "XX"

	again := snap.Filter(domain.Filter{})
	assert.Equal(t, "US", again[0].MerchantCountryCode)
}

func TestOptions(t *testing.T) {
	opts := fixture(t).Options()

	assert.Equal(t, []string{"CA", "MX", "US"}, opts.Countries)
	assert.Equal(t, []string{"food", "fuel"}, opts.MerchantCategories)
	assert.Equal(t, time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC), opts.MinDate)
	assert.Equal(t, time.Date(2016, 1, 4, 0, 0, 0, 0, time.UTC), opts.MaxDate)

	empty := FromRecords(nil).Options()
	assert.Empty(t, empty.Countries)
	assert.True(t, empty.MinDate.IsZero())
}

type stubSource struct {
	rows []domain.RawTransaction
	err  error
}

func (s *stubSource) LoadTransactions(_ context.Context, limit int) ([]domain.RawTransaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit > 0 && len(s.rows) > limit {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

func (s *stubSource) Close() error { return nil }

func TestLoad(t *testing.T) {
	ctx := context.Background()

	src := &stubSource{rows: []domain.RawTransaction{
		raw("1", "2016-01-01T10:00:00", "US", "food"),
		raw("2", "2016-01-02T10:00:00", "US", "food"),
	}}
	snap, err := Load(ctx, src, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())

	bad := raw("3", "not a date", "US", "food")
	_, err = Load(ctx, &stubSource{rows: []domain.RawTransaction{bad}}, 10)
	assert.True(t, errors.Is(err, normalize.ErrInvalidTimestamp))

	_, err = Load(ctx, &stubSource{err: errors.New("down")}, 10)
	assert.Error(t, err)
}
