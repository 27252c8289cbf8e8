// Package normalize turns raw transactions into canonical records.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount     = errors.New("invalid transaction amount")
	ErrNegativeAmount    = errors.New("negative transaction amount")
	ErrInvalidTimestamp  = errors.New("invalid transaction timestamp")
	ErrInvalidFraudLabel = errors.New("invalid fraud label")
	ErrInvalidFlag       = errors.New("invalid boolean flag")
)

// RowError reports the record that stopped a normalization pass.
type RowError struct {
	Index         int
	TransactionID string
	Field         string
	Err           error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (transaction %q): %s: %v", e.Index, e.TransactionID, e.Field, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// timestampLayouts are tried in order for textual timestamps without a zone.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Normalize converts a batch of raw transactions. It either returns a
// record for every input row or fails on the first defective row.
func Normalize(raw []domain.RawTransaction) ([]domain.Record, error) {
	records := make([]domain.Record, len(raw))
	for i := range raw {
		rec, err := normalizeRow(i, raw[i])
		if err != nil {
			return nil, err
		}
		records[i] = rec
	}
	return records, nil
}

// NormalizeOne converts a single raw transaction.
func NormalizeOne(raw domain.RawTransaction) (domain.Record, error) {
	return normalizeRow(0, raw)
}

func normalizeRow(idx int, raw domain.RawTransaction) (domain.Record, error) {
	fail := func(field string, err error) (domain.Record, error) {
		return domain.Record{}, &RowError{Index: idx, TransactionID: raw.TransactionID, Field: field, Err: err}
	}

	ts, err := parseTimestamp(raw.TransactionDateTime)
	if err != nil {
		return fail("transactionDateTime", err)
	}

	amount, err := parseAmount(raw.TransactionAmount)
	if err != nil {
		return fail("transactionAmount", err)
	}

	fraud, err := parseFraud(raw.IsFraud)
	if err != nil {
		return fail("isFraud", err)
	}

	expMatch, err := parseFlag(raw.ExpirationDateKeyInMatch)
	if err != nil {
		return fail("expirationDateKeyInMatch", err)
	}

	cardPresent, err := parseFlag(raw.CardPresent)
	if err != nil {
		return fail("cardPresent", err)
	}

	return domain.Record{
		TransactionID:            raw.TransactionID,
		CustomerID:               raw.CustomerID,
		AccountNumber:            raw.AccountNumber,
		TransactionDateTime:      ts,
		TransactionDate:          domain.TruncateDate(ts),
		TransactionAmount:        amount,
		MerchantName:             raw.MerchantName,
		MerchantCountryCode:      text(raw.MerchantCountryCode),
		MerchantCategoryCode:     raw.MerchantCategoryCode,
		AcqCountry:               text(raw.AcqCountry),
		CardCVV:                  text(raw.CardCVV),
		EnteredCVV:               text(raw.EnteredCVV),
		ExpirationDateKeyInMatch: expMatch,
		CardPresent:              cardPresent,
		IsFraud:                  fraud,
		AmountRange:              Bucket(amount),
	}, nil
}

var (
	edge50   = decimal.NewFromInt(50)
	edge200  = decimal.NewFromInt(200)
	edge500  = decimal.NewFromInt(500)
	edge1000 = decimal.NewFromInt(1000)
)

// Bucket assigns a non-negative amount to its range.
func Bucket(amount decimal.Decimal) domain.AmountRange {
	switch {
	case amount.LessThanOrEqual(edge50):
		return domain.AmountRange0To50
	case amount.LessThanOrEqual(edge200):
		return domain.AmountRange51To200
	case amount.LessThanOrEqual(edge500):
		return domain.AmountRange201To500
	case amount.LessThanOrEqual(edge1000):
		return domain.AmountRange501To1000
	default:
		return domain.AmountRangeOver1000
	}
}

func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, ErrInvalidTimestamp
		}
		return t.UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, ErrInvalidTimestamp
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts.UTC(), nil
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidTimestamp, v)
	}
}

// parseAmount returns the amount in canonical form so that re-parsing its
// string representation yields an identical value.
func parseAmount(v any) (decimal.Decimal, error) {
	var d decimal.Decimal
	switch a := v.(type) {
	case decimal.Decimal:
		d = a
	case float64:
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return decimal.Decimal{}, ErrInvalidAmount
		}
		d = decimal.NewFromFloat(a)
	case float32:
		if math.IsNaN(float64(a)) || math.IsInf(float64(a), 0) {
			return decimal.Decimal{}, ErrInvalidAmount
		}
		d = decimal.NewFromFloat32(a)
	case int:
		d = decimal.NewFromInt(int64(a))
	case int32:
		d = decimal.NewFromInt32(a)
	case int64:
		d = decimal.NewFromInt(a)
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(a))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, a)
		}
		d = parsed
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, v)
	}

	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrNegativeAmount, d.String())
	}
	return decimal.RequireFromString(d.String()), nil
}

func parseFraud(v any) (int, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: missing", ErrInvalidFraudLabel)
	}
	b, err := parseBool(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFraudLabel, v)
	}
	if b {
		return 1, nil
	}
	return 0, nil
}

// parseFlag coerces a boolean field; a missing value is false.
func parseFlag(v any) (bool, error) {
	if missing(v) {
		return false, nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return false, nil
	}
	b, err := parseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidFlag, v)
	}
	return b, nil
}

func parseBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int:
		return intBool(int64(b))
	case int32:
		return intBool(int64(b))
	case int64:
		return intBool(b)
	case float64:
		if b != 0 && b != 1 {
			return false, strconv.ErrSyntax
		}
		return b == 1, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes", "t":
			return true, nil
		case "false", "0", "no", "f":
			return false, nil
		}
	}
	return false, strconv.ErrSyntax
}

func intBool(i int64) (bool, error) {
	switch i {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, strconv.ErrSyntax
}

// missing reports whether v is absent: nil, or a NaN float as written by
// dataframe exports.
func missing(v any) bool {
	switch f := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(f)
	case float32:
		return math.IsNaN(float64(f))
	}
	return false
}

// text renders an identifier-like field, replacing missing values with the
// Unknown sentinel.
func text(v any) string {
	if missing(v) {
		return domain.Unknown
	}

	var s string
	switch t := v.(type) {
	case string:
		s = t
	case int:
		s = strconv.Itoa(t)
	case int32:
		s = strconv.FormatInt(int64(t), 10)
	case int64:
		s = strconv.FormatInt(t, 10)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Unknown
	}
	return s
}
