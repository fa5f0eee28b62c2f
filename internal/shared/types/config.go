package types

import (
	"errors"
	"fmt"
	"strings"
)

// Config represents the application configuration that can be loaded from a file.
// Environment variables (LEASING_BI_*) override file values; env-default fills
// whatever is still empty.
type Config struct {
	Warehouse WarehouseConfig `json:"warehouse" yaml:"warehouse" toml:"warehouse"`
	Bronze    BronzeConfig    `json:"bronze" yaml:"bronze" toml:"bronze"`
	Gold      GoldConfig      `json:"gold" yaml:"gold" toml:"gold"`
	Quality   QualityConfig   `json:"quality" yaml:"quality" toml:"quality"`
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest" toml:"ingest"`
	Source    SourceConfig    `json:"source" yaml:"source" toml:"source"`
	Lock      LockConfig      `json:"lock" yaml:"lock" toml:"lock"`
	Publish   PublishConfig   `json:"publish" yaml:"publish" toml:"publish"`
	Serve     ServeConfig     `json:"serve" yaml:"serve" toml:"serve"`
	Schedule  ScheduleConfig  `json:"schedule" yaml:"schedule" toml:"schedule"`
	Log       LogConfig       `json:"log" yaml:"log" toml:"log"`
}

type WarehouseConfig struct {
	Path string `json:"path" yaml:"path" toml:"path" env:"LEASING_BI_WAREHOUSE_PATH" env-default:"data/warehouse.duckdb"`
}

type BronzeConfig struct {
	Root string `json:"root" yaml:"root" toml:"root" env:"LEASING_BI_BRONZE_ROOT" env-default:"data/bronze"`
}

// GoldConfig controls KPI derivation.
type GoldConfig struct {
	Dir               string  `json:"dir" yaml:"dir" toml:"dir" env:"LEASING_BI_GOLD_DIR" env-default:"data/gold"`
	TotalPropertyArea float64 `json:"total_property_area" yaml:"total_property_area" toml:"total_property_area" env:"LEASING_BI_TOTAL_AREA" env-default:"9917"`
	// ExcludeOwnUse makes the owner-occupied-excluded occupancy the headline
	// figure in rolling windows and reports.
	ExcludeOwnUse bool `json:"exclude_own_use" yaml:"exclude_own_use" toml:"exclude_own_use" env:"LEASING_BI_EXCLUDE_OWN_USE"`
	// ProtoNOI reports NOI as gross collections, ignoring expense lines.
	ProtoNOI bool  `json:"proto_noi" yaml:"proto_noi" toml:"proto_noi" env:"LEASING_BI_PROTO_NOI"`
	Windows  []int `json:"windows" yaml:"windows" toml:"windows" env:"LEASING_BI_WINDOWS" env-default:"3,6,9,12" env-separator:","`
}

type QualityConfig struct {
	Buildings         []string `json:"buildings" yaml:"buildings" toml:"buildings" env:"LEASING_BI_BUILDINGS" env-default:"A,B" env-separator:","`
	ExpenseCategories []string `json:"expense_categories" yaml:"expense_categories" toml:"expense_categories" env:"LEASING_BI_EXPENSE_CATEGORIES" env-default:"fixed,variable,other" env-separator:","`
}

type IngestConfig struct {
	// StrictCrossPeriod rejects a file whose content was already ingested
	// into a different period instead of only warning.
	StrictCrossPeriod bool `json:"strict_cross_period" yaml:"strict_cross_period" toml:"strict_cross_period" env:"LEASING_BI_STRICT_CROSS_PERIOD"`
}

type SourceConfig struct {
	VacancyPatterns []string `json:"vacancy_patterns" yaml:"vacancy_patterns" toml:"vacancy_patterns" env:"LEASING_BI_VACANCY_PATTERNS" env-default:"vacante,vacant,disponible,available" env-separator:","`
	OwnUsePatterns  []string `json:"own_use_patterns" yaml:"own_use_patterns" toml:"own_use_patterns" env:"LEASING_BI_OWN_USE_PATTERNS" env-default:"black label,owner use,uso propio,101b" env-separator:","`
}

type LockConfig struct {
	Path string `json:"path" yaml:"path" toml:"path" env:"LEASING_BI_LOCK_PATH" env-default:"data/.leasing-bi.lock"`
}

// PublishConfig points exports at an S3 bucket. An empty bucket disables publishing.
type PublishConfig struct {
	Bucket        string `json:"bucket" yaml:"bucket" toml:"bucket" env:"LEASING_BI_S3_BUCKET"`
	Prefix        string `json:"prefix" yaml:"prefix" toml:"prefix" env:"LEASING_BI_S3_PREFIX" env-default:"gold"`
	Region        string `json:"region" yaml:"region" toml:"region" env:"LEASING_BI_S3_REGION"`
	Profile       string `json:"profile" yaml:"profile" toml:"profile" env:"LEASING_BI_AWS_PROFILE"`
	IncludeBronze bool   `json:"include_bronze" yaml:"include_bronze" toml:"include_bronze" env:"LEASING_BI_PUBLISH_BRONZE"`
}

type ServeConfig struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr" env:"LEASING_BI_SERVE_ADDR" env-default:":8080"`
}

// ScheduleConfig drives the single cron trigger.
type ScheduleConfig struct {
	Cron  string `json:"cron" yaml:"cron" toml:"cron" env:"LEASING_BI_SCHEDULE_CRON" env-default:"0 6 * * *"`
	Inbox string `json:"inbox" yaml:"inbox" toml:"inbox" env:"LEASING_BI_INBOX" env-default:"data/inbox"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level" env:"LEASING_BI_LOG_LEVEL" env-default:"info"`
	Format string `json:"format" yaml:"format" toml:"format" env:"LEASING_BI_LOG_FORMAT" env-default:"console"`
}

// Validate checks values that would make a run meaningless.
func (c *Config) Validate() error {
	var errs []error
	if c.Warehouse.Path == "" {
		errs = append(errs, errors.New("warehouse.path is required"))
	}
	if c.Bronze.Root == "" {
		errs = append(errs, errors.New("bronze.root is required"))
	}
	if c.Gold.TotalPropertyArea <= 0 {
		errs = append(errs, fmt.Errorf("gold.total_property_area must be positive, got %v", c.Gold.TotalPropertyArea))
	}
	if len(c.Gold.Windows) == 0 {
		errs = append(errs, errors.New("gold.windows must list at least one window size"))
	}
	for _, w := range c.Gold.Windows {
		if w <= 0 {
			errs = append(errs, fmt.Errorf("gold.windows: invalid window size %d", w))
		}
	}
	if len(c.Quality.ExpenseCategories) == 0 {
		errs = append(errs, errors.New("quality.expense_categories must not be empty"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
