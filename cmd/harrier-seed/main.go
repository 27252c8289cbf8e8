// Seed tool for loading card transactions into the Harrier database.
//
// Usage:
//
//	go run ./cmd/harrier-seed -csv /path/to/transactions.csv [-config harrier.yaml]
//
// This tool:
//  1. Reads transactions from a CSV file
//  2. Normalizes every row, stopping at the first defective one
//  3. Writes the rows to the configured repository in batches
//  4. Prints the KPI summary of what was loaded
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/opensource-finance/harrier/internal/config"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/indicators"
	"github.com/opensource-finance/harrier/internal/kpi"
	"github.com/opensource-finance/harrier/internal/normalize"
	"github.com/opensource-finance/harrier/internal/repository"
)

func main() {
	csvPath := flag.String("csv", "", "Path to transactions CSV file")
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	limit := flag.Int("limit", domain.DefaultSourceLimit, "Maximum transactions to read")
	batchSize := flag.Int("batch", 1000, "Rows written per transaction")
	dryRun := flag.Bool("dry-run", false, "Validate the file without writing")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: harrier-seed -csv /path/to/transactions.csv [-config harrier.yaml]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *batchSize <= 0 {
		*batchSize = 1000
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("ERROR: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("HARRIER SEED")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Database:    %s\n", cfg.Repository.Driver)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Batch Size:  %d\n", *batchSize)
	fmt.Printf("Dry Run:     %v\n", *dryRun)
	fmt.Println()

	ctx := context.Background()

	f, err := os.Open(*csvPath)
	if err != nil {
		fmt.Printf("ERROR: Failed to open CSV: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	raw, err := repository.ReadCSV(ctx, f, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Read %d transactions\n", len(raw))

	records, err := normalize.Normalize(raw)
	if err != nil {
		fmt.Printf("ERROR: Invalid transaction data: %v\n", err)
		os.Exit(1)
	}

	if !*dryRun {
		startTime := time.Now()
		if err := write(ctx, cfg.Repository, raw, *batchSize); err != nil {
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d transactions in %v\n", len(raw), time.Since(startTime).Round(time.Millisecond))
	}

	k, ind := kpi.Compute(records, indicators.EvaluateAll(records))
	printSummary(k, ind)
}

func write(ctx context.Context, cfg domain.RepositoryConfig, raw []domain.RawTransaction, batchSize int) error {
	repo, err := repository.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}
	defer repo.Close()

	for start := 0; start < len(raw); start += batchSize {
		end := start + batchSize
		if end > len(raw) {
			end = len(raw)
		}
		if err := repo.SaveTransactions(ctx, raw[start:end]); err != nil {
			return fmt.Errorf("failed to write rows %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

func printSummary(k domain.KPIs, ind domain.Indeterminate) {
	fmt.Printf("\nDATASET SUMMARY\n")
	fmt.Printf("   Transactions:             %d\n", k.TotalTransactions)
	fmt.Printf("   Fraud:                    %d (%.2f%%)\n", k.FraudTransactions, k.FraudRate)
	fmt.Printf("   CVV mismatch:             %d\n", k.CVVMismatchCount)
	fmt.Printf("   Card not present:         %d\n", k.CardNotPresentCount)
	fmt.Printf("   Country mismatch:         %d\n", k.GeoMismatchCount)
	fmt.Printf("   Exp. date mismatch:       %d\n", k.ExpDateMismatchCount)
	fmt.Printf("   Potential identity theft: %d (%.2f%%)\n", k.PotentialIdentityTheftCount, k.PotentialIdentityTheftRate)
	fmt.Printf("   Unknown CVV comparisons:  %d\n", ind.CVVUnknown)
	fmt.Printf("   Unknown country compare:  %d\n", ind.GeoUnknown)
}
