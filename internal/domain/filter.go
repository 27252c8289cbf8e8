package domain

import "time"

// Filter selects the subset of the dataset a request operates on.
// A nil or empty field applies no restriction.
type Filter struct {
	// DateRange restricts TransactionDate to an inclusive range.
	DateRange *DateRange `json:"dateRange,omitempty"`

	// Countries restricts MerchantCountryCode to the listed codes.
	Countries []string `json:"countries,omitempty"`

	// MerchantCategories restricts MerchantCategoryCode to the listed codes.
	MerchantCategories []string `json:"merchantCategories,omitempty"`
}

// DateRange is an inclusive calendar date range. A zero Start or End
// leaves that side open.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether the calendar date of t lies within the range.
func (d DateRange) Contains(t time.Time) bool {
	day := TruncateDate(t)
	if !d.Start.IsZero() && day.Before(TruncateDate(d.Start)) {
		return false
	}
	if !d.End.IsZero() && day.After(TruncateDate(d.End)) {
		return false
	}
	return true
}

// TruncateDate returns midnight UTC of the calendar date of t in UTC.
func TruncateDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// FilterOptions lists the values a dashboard user can filter on.
type FilterOptions struct {
	Countries          []string  `json:"countries"`
	MerchantCategories []string  `json:"merchantCategories"`
	MinDate            time.Time `json:"minDate"`
	MaxDate            time.Time `json:"maxDate"`
}
