package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// csvColumns are the recognised header names.
var csvColumns = []string{
	"transactionId", "customerId", "accountNumber", "transactionDateTime",
	"transactionAmount", "merchantName", "merchantCountryCode", "merchantCategoryCode",
	"acqCountry", "cardCVV", "enteredCVV", "expirationDateKeyInMatch", "cardPresent", "isFraud",
}

// CSVSource loads transactions from a CSV file with a header row.
// Empty cells are treated as missing values.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source reading path.
func NewCSVSource(path string) (*CSVSource, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: csv path is required", ErrInvalidInput)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open csv source: %w", err)
	}
	return &CSVSource{path: path}, nil
}

// LoadTransactions reads up to limit rows.
func (s *CSVSource) LoadTransactions(ctx context.Context, limit int) ([]domain.RawTransaction, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv source: %w", err)
	}
	defer f.Close()

	return ReadCSV(ctx, f, limit)
}

// Close is a no-op; the file is opened per load.
func (s *CSVSource) Close() error {
	return nil
}

// ReadCSV parses transactions from r. limit <= 0 means the default limit.
func ReadCSV(ctx context.Context, r io.Reader, limit int) ([]domain.RawTransaction, error) {
	if limit <= 0 {
		limit = domain.DefaultSourceLimit
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	if _, ok := index["transactionId"]; !ok {
		return nil, fmt.Errorf("%w: csv header lacks transactionId column", ErrInvalidInput)
	}

	var txs []domain.RawTransaction
	for len(txs) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", len(txs)+1, err)
		}

		cell := func(name string) any {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return nil
			}
			v := strings.TrimSpace(record[i])
			if v == "" {
				return nil
			}
			return v
		}
		str := func(name string) string {
			if v, ok := cell(name).(string); ok {
				return v
			}
			return ""
		}

		txs = append(txs, domain.RawTransaction{
			TransactionID:            str("transactionId"),
			CustomerID:               str("customerId"),
			AccountNumber:            str("accountNumber"),
			TransactionDateTime:      cell("transactionDateTime"),
			TransactionAmount:        cell("transactionAmount"),
			MerchantName:             str("merchantName"),
			MerchantCountryCode:      cell("merchantCountryCode"),
			MerchantCategoryCode:     str("merchantCategoryCode"),
			AcqCountry:               cell("acqCountry"),
			CardCVV:                  cell("cardCVV"),
			EnteredCVV:               cell("enteredCVV"),
			ExpirationDateKeyInMatch: cell("expirationDateKeyInMatch"),
			CardPresent:              cell("cardPresent"),
			IsFraud:                  cell("isFraud"),
		})
	}

	return txs, nil
}

// WriteCSV writes raw transactions with a header row, the format ReadCSV reads.
func WriteCSV(w io.Writer, txs []domain.RawTransaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return err
	}
	for _, tx := range txs {
		row := []string{
			tx.TransactionID, tx.CustomerID, tx.AccountNumber, cellText(tx.TransactionDateTime),
			cellText(tx.TransactionAmount), tx.MerchantName, cellText(tx.MerchantCountryCode), tx.MerchantCategoryCode,
			cellText(tx.AcqCountry), cellText(tx.CardCVV), cellText(tx.EnteredCVV),
			cellText(tx.ExpirationDateKeyInMatch), cellText(tx.CardPresent), cellText(tx.IsFraud),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cellText(v any) string {
	if s, ok := textValue(v).(string); ok {
		return s
	}
	return ""
}
