package repository

import (
	"context"
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
)

// NewSource returns the transaction source selected by cfg. The "sql"
// source is repo itself.
func NewSource(ctx context.Context, cfg domain.SourceConfig, repo domain.Repository) (domain.Source, error) {
	switch cfg.Type {
	case "", "sql":
		if repo == nil {
			return nil, fmt.Errorf("%w: sql source requires a repository", ErrInvalidInput)
		}
		return repo, nil
	case "mongo":
		src, err := NewMongoSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "csv":
		src, err := NewCSVSource(cfg.CSVPath)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Type)
	}
}
