package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := NewConfigRepository().Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/warehouse.duckdb", cfg.Warehouse.Path)
	assert.Equal(t, "data/bronze", cfg.Bronze.Root)
	assert.Equal(t, 9917.0, cfg.Gold.TotalPropertyArea)
	assert.Equal(t, []int{3, 6, 9, 12}, cfg.Gold.Windows)
	assert.Equal(t, []string{"A", "B"}, cfg.Quality.Buildings)
	assert.Equal(t, []string{"fixed", "variable", "other"}, cfg.Quality.ExpenseCategories)
	assert.False(t, cfg.Gold.ProtoNOI)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeFile(t, "leasing-bi.yaml", `
warehouse:
  path: /srv/bi/warehouse.duckdb
gold:
  total_property_area: 12000
  windows: [3, 12]
log:
  level: debug
`)
	t.Setenv("LEASING_BI_TOTAL_AREA", "9917")

	cfg, err := NewConfigRepository().Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/bi/warehouse.duckdb", cfg.Warehouse.Path, "yaml value kept")
	assert.Equal(t, 9917.0, cfg.Gold.TotalPropertyArea, "env wins over yaml")
	assert.Equal(t, []int{3, 12}, cfg.Gold.Windows)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "data/bronze", cfg.Bronze.Root, "default fills unset field")
}

func TestLoadConfigFile_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "cfg.toml", "[bronze]\nroot = \"/tmp/bronze\"\n"},
		{"yaml", "cfg.yml", "bronze:\n  root: /tmp/bronze\n"},
		{"json", "cfg.json", `{"bronze": {"root": "/tmp/bronze"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewConfigRepository().LoadConfigFile(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, "/tmp/bronze", cfg.Bronze.Root)
		})
	}
}

func TestLoadConfigFile_Errors(t *testing.T) {
	repo := NewConfigRepository()

	_, err := repo.LoadConfigFile(writeFile(t, "cfg.ini", "x=1"))
	assert.ErrorContains(t, err, "unsupported config file format")

	_, err = repo.LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "error accessing config file")

	_, err = repo.LoadConfigFile(t.TempDir())
	assert.ErrorContains(t, err, "is a directory")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := writeFile(t, "bad.yaml", "gold:\n  total_property_area: -5\n  windows: [0]\n")

	_, err := NewConfigRepository().Load(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "total_property_area")
	assert.ErrorContains(t, err, "invalid window size 0")
}
