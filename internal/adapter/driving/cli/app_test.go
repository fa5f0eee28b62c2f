package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driven/lockfile"
	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driving/httpapi"
	"github.com/diillson/leasing-bi-pipeline/internal/application/usecase"
	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"generic", errors.New("disk full"), ExitFailure},
		{"structural", &types.StructuralError{Kind: entity.KindLease}, ExitStructural},
		{"quality", fmt.Errorf("run: %w", &types.QualityViolationError{}), ExitQualityViolation},
		{"ambiguous deletion", &types.AmbiguousDeletionError{Period: "2025-03"}, ExitAmbiguousDeletion},
		{"lock held", fmt.Errorf("%w: run abc", types.ErrLockHeld), ExitLockHeld},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestParseArgs(t *testing.T) {
	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().String("config-file", "", "")
	cmd.Flags().Bool("quiet", false, "")
	addSourceFlags(cmd)
	addTransformFlags(cmd)
	addExportFlags(cmd, []string{"csv"})

	require.NoError(t, cmd.ParseFlags([]string{
		"--source", "a.csv,b.yaml",
		"--as-of", "2025-03-01",
		"--confirm-empty-period", "2025-04",
		"--export", "csv,parquet",
		"--dir", "out",
		"--rebuild",
		"--quiet",
	}))

	args, err := parseArgs(cmd)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.csv", "b.yaml"}, args.Sources)
	assert.Equal(t, entity.Period("2025-03"), args.AsOf)
	assert.Equal(t, []entity.Period{"2025-04"}, args.ConfirmEmpty)
	assert.Equal(t, []string{"csv", "parquet"}, args.ReportTypes)
	assert.True(t, filepath.IsAbs(args.Dir))
	assert.True(t, args.Rebuild)
	assert.True(t, args.Quiet)
}

func TestParseArgs_BadPeriod(t *testing.T) {
	cmd := &cobra.Command{Use: "suites"}
	cmd.Flags().String("as-of", "", "")
	require.NoError(t, cmd.ParseFlags([]string{"--as-of", "March"}))

	_, err := parseArgs(cmd)
	assert.ErrorContains(t, err, "--as-of")
}

// testWiring monta um runtime mínimo com o lock real; os demais armazéns
// não são usados pelos comandos exercitados aqui.
func testWiring(t *testing.T) (Wiring, string) {
	t.Helper()
	lockPath := filepath.Join(t.TempDir(), ".leasing-bi.lock")
	cfg := &types.Config{Log: types.LogConfig{Level: "error", Format: "console"}}

	return Wiring{
		LoadConfig: func(string) (*types.Config, error) { return cfg, nil },
		OpenRuntime: func(_ context.Context, env *Env) (*Runtime, error) {
			pipeline := usecase.NewPipelineUseCase(nil, nil, nil, nil, nil, lockfile.New(lockPath), env.Config, env.Console, zap.NewNop())
			return &Runtime{Pipeline: pipeline}, nil
		},
		OpenReader: func(*Env) httpapi.ReaderOpener { return nil },
	}, lockPath
}

func TestUnlockCommand(t *testing.T) {
	wiring, lockPath := testWiring(t)
	require.NoError(t, os.WriteFile(lockPath, []byte(`{"owner":"crashed"}`), 0o644))

	app := NewCLIApp("test", wiring)
	app.SetArgs([]string{"unlock", "--quiet"})
	require.NoError(t, app.Execute(context.Background()))
	assert.NoFileExists(t, lockPath)
}

func TestRunCommand_RequiresSources(t *testing.T) {
	wiring, _ := testWiring(t)
	app := NewCLIApp("test", wiring)
	app.SetArgs([]string{"run", "--quiet"})

	err := app.Execute(context.Background())
	assert.ErrorContains(t, err, "--source")
	assert.Equal(t, ExitFailure, ExitCode(err))
}

func TestOverrideCommand_ValidatesKind(t *testing.T) {
	wiring, _ := testWiring(t)
	app := NewCLIApp("test", wiring)
	app.SetArgs([]string{"override", "--quiet", "--kind", "tenants", "--period", "2025-03", "--fingerprint", "abc", "--reason", "ok"})

	err := app.Execute(context.Background())
	assert.ErrorContains(t, err, `unknown record kind "tenants"`)
}
