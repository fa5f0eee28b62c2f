package repository

import (
	"context"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

// SourceRepository extracts normalized tables from a workbook export.
type SourceRepository interface {
	// Extract reads one source file. A non-zero asOf overrides period detection.
	Extract(ctx context.Context, path string, asOf entity.Period) (entity.Extraction, error)
}
