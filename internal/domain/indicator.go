package domain

// Comparison is the outcome of comparing two values that may be missing.
type Comparison int

const (
	// ComparisonUnknown means at least one side was missing.
	ComparisonUnknown Comparison = iota
	ComparisonMatch
	ComparisonMismatch
)

func (c Comparison) String() string {
	switch c {
	case ComparisonMatch:
		return "match"
	case ComparisonMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Comparison) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// IndicatorSet holds the identity-theft indicators of a single record.
//
// The boolean mismatch flags compare the stored values literally, so two
// missing values (both "Unknown") compare equal. CVVComparison and
// GeoComparison report the same comparisons with missing values surfaced
// as ComparisonUnknown.
type IndicatorSet struct {
	CVVMismatch            bool       `json:"cvvMismatch"`
	CardNotPresent         bool       `json:"cardNotPresent"`
	GeoMismatch            bool       `json:"geoMismatch"`
	ExpDateMismatch        bool       `json:"expDateMismatch"`
	PotentialIdentityTheft bool       `json:"potentialIdentityTheft"`
	CVVComparison          Comparison `json:"cvvComparison"`
	GeoComparison          Comparison `json:"geoComparison"`
}

// Indicator names as shown on the dashboard.
const (
	IndicatorCVVMismatch     = "CVV no coincide"
	IndicatorCardNotPresent  = "Tarjeta no presente"
	IndicatorGeoMismatch     = "País diferente"
	IndicatorExpDateMismatch = "Fecha exp. no coincide"
)

// Labels attached to individual alerts.
const (
	AlertLabelCVV     = "CVV incorrecto"
	AlertLabelExpDate = "Fecha exp. incorrecta"
	AlertLabelGeo     = "País diferente"
	AlertLabelCard    = "Tarjeta no presente"
)

// Labels returns the alert labels of the indicators that are set,
// in display order.
func (s IndicatorSet) Labels() []string {
	labels := make([]string, 0, 4)
	if s.CVVMismatch {
		labels = append(labels, AlertLabelCVV)
	}
	if s.ExpDateMismatch {
		labels = append(labels, AlertLabelExpDate)
	}
	if s.GeoMismatch {
		labels = append(labels, AlertLabelGeo)
	}
	if s.CardNotPresent {
		labels = append(labels, AlertLabelCard)
	}
	return labels
}
