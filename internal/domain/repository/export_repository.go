package repository

import (
	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

// ExportRepository materializes gold tables as flat files.
type ExportRepository interface {
	ExportToCSV(gold entity.GoldTables, outputDir string) ([]string, error)
	ExportToJSON(gold entity.GoldTables, filename string, outputDir string) (string, error)
	ExportToParquet(gold entity.GoldTables, outputDir string) ([]string, error)
	ExportToPDF(gold entity.GoldTables, filename string, outputDir string) (string, error)
}
