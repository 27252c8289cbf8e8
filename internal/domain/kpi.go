package domain

import "time"

// KPIs is the fixed bundle of scalar metrics shown in the dashboard tiles.
// Rates are percentages in [0, 100].
type KPIs struct {
	TotalTransactions           int     `json:"total_transactions"`
	FraudTransactions           int     `json:"fraud_transactions"`
	FraudRate                   float64 `json:"fraud_rate"`
	CVVMismatchCount            int     `json:"cvv_mismatch_count"`
	CVVMismatchFraudRate        float64 `json:"cvv_mismatch_fraud_rate"`
	CardNotPresentCount         int     `json:"card_not_present_count"`
	CardNotPresentFraudRate     float64 `json:"card_not_present_fraud_rate"`
	GeoMismatchCount            int     `json:"geo_mismatch_count"`
	GeoMismatchFraudRate        float64 `json:"geo_mismatch_fraud_rate"`
	ExpDateMismatchCount        int     `json:"exp_date_mismatch_count"`
	ExpDateMismatchFraudRate    float64 `json:"exp_date_mismatch_fraud_rate"`
	PotentialIdentityTheftCount int     `json:"potential_identity_theft_count"`
	PotentialIdentityTheftRate  float64 `json:"potential_identity_theft_rate"`
}

// AsMap returns the bundle keyed by metric name.
func (k KPIs) AsMap() map[string]float64 {
	return map[string]float64{
		"total_transactions":             float64(k.TotalTransactions),
		"fraud_transactions":             float64(k.FraudTransactions),
		"fraud_rate":                     k.FraudRate,
		"cvv_mismatch_count":             float64(k.CVVMismatchCount),
		"cvv_mismatch_fraud_rate":        k.CVVMismatchFraudRate,
		"card_not_present_count":         float64(k.CardNotPresentCount),
		"card_not_present_fraud_rate":    k.CardNotPresentFraudRate,
		"geo_mismatch_count":             float64(k.GeoMismatchCount),
		"geo_mismatch_fraud_rate":        k.GeoMismatchFraudRate,
		"exp_date_mismatch_count":        float64(k.ExpDateMismatchCount),
		"exp_date_mismatch_fraud_rate":   k.ExpDateMismatchFraudRate,
		"potential_identity_theft_count": float64(k.PotentialIdentityTheftCount),
		"potential_identity_theft_rate":  k.PotentialIdentityTheftRate,
	}
}

// Indeterminate counts records whose CVV or country comparison could not
// be decided because a value was missing.
type Indeterminate struct {
	CVVUnknown int `json:"cvv_unknown_count"`
	GeoUnknown int `json:"geo_unknown_count"`
}

// TrendPoint is one day of the fraud trend chart.
type TrendPoint struct {
	Date         time.Time `json:"transaction_date"`
	Transactions int       `json:"transactions"`
	FraudCases   int       `json:"fraud_cases"`
	FraudRate    float64   `json:"fraud_rate"`
}

// CountryFraud is one bar of the fraud-by-country chart.
type CountryFraud struct {
	Country    string `json:"merchantCountryCode"`
	FraudCount int    `json:"fraud_count"`
}

// CategoryFraud is one bar of the merchant category chart.
type CategoryFraud struct {
	Category     string  `json:"merchantCategoryCode"`
	Transactions int     `json:"transactions"`
	FraudCases   int     `json:"fraud_cases"`
	FraudRate    float64 `json:"fraud_rate"`
}

// AmountRangeFraud is one bar of the amount distribution chart.
type AmountRangeFraud struct {
	Range        AmountRange `json:"amount_range"`
	Transactions int         `json:"transactions"`
	FraudCases   int         `json:"fraud_cases"`
	FraudRate    float64     `json:"fraud_rate"`
}

// IndicatorSummary is one row of the identity-theft indicator chart.
type IndicatorSummary struct {
	Indicator string  `json:"indicador"`
	Cases     int     `json:"casos"`
	FraudRate float64 `json:"tasa_fraude"`
}

// Charts holds the five visualization tables.
type Charts struct {
	FraudTrend         []TrendPoint       `json:"fraud_trend"`
	FraudByCountry     []CountryFraud     `json:"fraud_by_country"`
	MerchantCategories []CategoryFraud    `json:"merchant_fraud"`
	AmountRanges       []AmountRangeFraud `json:"amount_dist"`
	Indicators         []IndicatorSummary `json:"id_theft_indicators"`
}
