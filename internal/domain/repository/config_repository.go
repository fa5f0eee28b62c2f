package repository

import (
	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
)

// ConfigRepository defines the interface for loading configuration files.
type ConfigRepository interface {
	LoadConfigFile(filePath string) (*types.Config, error)
	// Load reads the optional file, applies environment overrides and
	// defaults, then validates the result.
	Load(filePath string) (*types.Config, error)
}
