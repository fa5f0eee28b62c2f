package types

import "github.com/diillson/leasing-bi-pipeline/internal/domain/entity"

// CLIArgs represents the command-line arguments shared by the pipeline commands.
type CLIArgs struct {
	ConfigFile   string
	Quiet        bool
	Sources      []string
	AsOf         entity.Period
	ConfirmEmpty []entity.Period
	Rebuild      bool
	ValidateAll  bool
	ReportTypes  []string
	ReportName   string
	Dir          string
	Publish      bool
	From         entity.Period
	To           entity.Period
	Building     string
	Window       int
	Trend        bool
}

// RunOptions configures one orchestrated pipeline run.
type RunOptions struct {
	Sources      []string
	AsOf         entity.Period
	ConfirmEmpty []entity.Period
	Rebuild      bool
	ExportTypes  []string
	ReportName   string
	Dir          string
	Publish      bool
}

// OverrideRequest is the explicit quality escape hatch.
type OverrideRequest struct {
	Kind        entity.RecordKind
	Period      entity.Period
	Fingerprint string
	Reason      string
}
