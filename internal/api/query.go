package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/alerts"
	"github.com/opensource-finance/harrier/internal/domain"
)

// dateLayout is the format of the start and end query parameters.
const dateLayout = "2006-01-02"

var errInvalidQuery = errors.New("invalid query")

// parseFilter reads start, end, country and category from the query string.
func parseFilter(q url.Values) (domain.Filter, error) {
	return buildFilter(q.Get("start"), q.Get("end"), q["country"], q["category"])
}

func buildFilter(start, end string, countries, categories []string) (domain.Filter, error) {
	var f domain.Filter

	from, err := parseDate("start", start)
	if err != nil {
		return f, err
	}
	to, err := parseDate("end", end)
	if err != nil {
		return f, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return f, fmt.Errorf("%w: end %s is before start %s", errInvalidQuery, end, start)
	}
	if !from.IsZero() || !to.IsZero() {
		f.DateRange = &domain.DateRange{Start: from, End: to}
	}

	f.Countries = splitValues(countries)
	f.MerchantCategories = splitValues(categories)
	return f, nil
}

func parseDate(name, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", errInvalidQuery, name)
	}
	return t, nil
}

// splitValues accepts repeated parameters and comma-separated lists.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseBool(q url.Values, name string) (bool, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", errInvalidQuery, name)
	}
	return b, nil
}

// parseLimit returns the alert limit. Absent means the dashboard limit,
// 0 or "all" means no limit.
func parseLimit(q url.Values) (int, error) {
	v := strings.TrimSpace(q.Get("limit"))
	switch v {
	case "":
		return alerts.DashboardLimit, nil
	case "all":
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", errInvalidQuery)
	}
	return n, nil
}
