package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Unknown is the sentinel stored in place of a missing CVV or country code.
const Unknown = "Unknown"

// RawTransaction is a card transaction as delivered by a Source.
// Fields that arrive with heterogeneous types across storage backends
// (numbers stored as strings, booleans stored as 0/1, absent values) are
// typed as any and coerced by the normalizer.
type RawTransaction struct {
	TransactionID            string `json:"transactionId" bson:"transactionId"`
	CustomerID               string `json:"customerId" bson:"customerId"`
	AccountNumber            string `json:"accountNumber" bson:"accountNumber"`
	TransactionDateTime      any    `json:"transactionDateTime" bson:"transactionDateTime"`
	TransactionAmount        any    `json:"transactionAmount" bson:"transactionAmount"`
	MerchantName             string `json:"merchantName" bson:"merchantName"`
	MerchantCountryCode      any    `json:"merchantCountryCode" bson:"merchantCountryCode"`
	MerchantCategoryCode     string `json:"merchantCategoryCode" bson:"merchantCategoryCode"`
	AcqCountry               any    `json:"acqCountry" bson:"acqCountry"`
	CardCVV                  any    `json:"cardCVV" bson:"cardCVV"`
	EnteredCVV               any    `json:"enteredCVV" bson:"enteredCVV"`
	ExpirationDateKeyInMatch any    `json:"expirationDateKeyInMatch" bson:"expirationDateKeyInMatch"`
	CardPresent              any    `json:"cardPresent" bson:"cardPresent"`
	IsFraud                  any    `json:"isFraud" bson:"isFraud"`
}

// Record is a normalized transaction. Records are never mutated after
// normalization; filters and pipeline stages work on copies.
type Record struct {
	TransactionID            string          `json:"transactionId"`
	CustomerID               string          `json:"customerId"`
	AccountNumber            string          `json:"accountNumber"`
	TransactionDateTime      time.Time       `json:"transactionDateTime"`
	TransactionDate          time.Time       `json:"transaction_date"`
	TransactionAmount        decimal.Decimal `json:"transactionAmount"`
	MerchantName             string          `json:"merchantName"`
	MerchantCountryCode      string          `json:"merchantCountryCode"`
	MerchantCategoryCode     string          `json:"merchantCategoryCode"`
	AcqCountry               string          `json:"acqCountry"`
	CardCVV                  string          `json:"cardCVV"`
	EnteredCVV               string          `json:"enteredCVV"`
	ExpirationDateKeyInMatch bool            `json:"expirationDateKeyInMatch"`
	CardPresent              bool            `json:"cardPresent"`
	IsFraud                  int             `json:"isFraud"`
	AmountRange              AmountRange     `json:"amount_range"`
}

// Fraud reports whether the record carries a positive fraud label.
func (r Record) Fraud() bool {
	return r.IsFraud == 1
}

// ToRaw converts a normalized record back into its raw form.
// Normalizing the result yields the same record.
func (r Record) ToRaw() RawTransaction {
	return RawTransaction{
		TransactionID:            r.TransactionID,
		CustomerID:               r.CustomerID,
		AccountNumber:            r.AccountNumber,
		TransactionDateTime:      r.TransactionDateTime.Format(time.RFC3339Nano),
		TransactionAmount:        r.TransactionAmount.String(),
		MerchantName:             r.MerchantName,
		MerchantCountryCode:      r.MerchantCountryCode,
		MerchantCategoryCode:     r.MerchantCategoryCode,
		AcqCountry:               r.AcqCountry,
		CardCVV:                  r.CardCVV,
		EnteredCVV:               r.EnteredCVV,
		ExpirationDateKeyInMatch: r.ExpirationDateKeyInMatch,
		CardPresent:              r.CardPresent,
		IsFraud:                  r.IsFraud,
	}
}

// AmountRange is the categorical bucket of a transaction amount.
type AmountRange string

// Amount buckets. Each bucket is the half-open interval (previous edge, edge],
// except the first which also contains 0.
const (
	AmountRange0To50     AmountRange = "0-50"
	AmountRange51To200   AmountRange = "51-200"
	AmountRange201To500  AmountRange = "201-500"
	AmountRange501To1000 AmountRange = "501-1000"
	AmountRangeOver1000  AmountRange = ">1000"
)

// AmountRanges lists the buckets in their natural order.
var AmountRanges = []AmountRange{
	AmountRange0To50,
	AmountRange51To200,
	AmountRange201To500,
	AmountRange501To1000,
	AmountRangeOver1000,
}

// Order returns the position of the bucket in AmountRanges, or -1.
func (a AmountRange) Order() int {
	for i, r := range AmountRanges {
		if r == a {
			return i
		}
	}
	return -1
}
