package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driving/httpapi"
	"github.com/diillson/leasing-bi-pipeline/internal/application/usecase"
	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
	"github.com/diillson/leasing-bi-pipeline/pkg/console"
	"github.com/diillson/leasing-bi-pipeline/pkg/logging"
	"github.com/diillson/leasing-bi-pipeline/pkg/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Env is what every command has once flags and config are resolved.
type Env struct {
	Args    *types.CLIArgs
	Config  *types.Config
	Logger  *zap.Logger
	Console types.ConsoleInterface
}

// Runtime holds the use cases wired over open stores for one command.
type Runtime struct {
	Pipeline *usecase.PipelineUseCase
	Reports  *usecase.ReportUseCase
	Close    func() error
}

// Wiring is provided by the composition root.
type Wiring struct {
	LoadConfig  func(path string) (*types.Config, error)
	OpenRuntime func(ctx context.Context, env *Env) (*Runtime, error)
	OpenReader  func(env *Env) httpapi.ReaderOpener
}

// CLIApp represents the command-line interface application.
type CLIApp struct {
	rootCmd *cobra.Command
	wiring  Wiring
	version string
}

// NewCLIApp cria uma nova aplicação CLI.
func NewCLIApp(versionStr string, wiring Wiring) *CLIApp {
	app := &CLIApp{
		version: versionStr,
		wiring:  wiring,
	}

	// Obtem a versão formatada
	formattedVersion := version.FormatVersion()

	rootCmd := &cobra.Command{
		Use:           "leasing-bi",
		Short:         "Leasing BI ingestion pipeline",
		Long:          "Ingests leasing workbook exports into a parquet bronze layer and derives staging, suite history and gold KPI tables in DuckDB.",
		Version:       formattedVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{printf "Leasing BI Pipeline version: %s\n" .Version}}`)

	// Flags globais
	rootCmd.PersistentFlags().StringP("config-file", "C", "", "Path to a TOML, YAML, or JSON configuration file")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress console output (structured logs are still written)")

	rootCmd.AddCommand(
		app.runCmd(),
		app.ingestCmd(),
		app.validateCmd(),
		app.transformCmd(),
		app.exportCmd(),
		app.publishCmd(),
		app.overrideCmd(),
		app.reportCmd(),
		app.suitesCmd(),
		app.auditCmd(),
		app.runsCmd(),
		app.serveCmd(),
		app.scheduleCmd(),
		app.unlockCmd(),
	)

	app.rootCmd = rootCmd
	return app
}

// Execute runs the CLI application.
func (app *CLIApp) Execute(ctx context.Context) error {
	return app.rootCmd.ExecuteContext(ctx)
}

// SetArgs replaces os.Args, for tests.
func (app *CLIApp) SetArgs(args []string) { app.rootCmd.SetArgs(args) }

// parseArgs lê as flags do comando em execução para um CLIArgs.
func parseArgs(cmd *cobra.Command) (*types.CLIArgs, error) {
	flags := cmd.Flags()
	args := &types.CLIArgs{}
	args.ConfigFile, _ = flags.GetString("config-file")
	args.Quiet, _ = flags.GetBool("quiet")

	if flags.Lookup("source") != nil {
		args.Sources, _ = flags.GetStringSlice("source")
	}
	if flags.Lookup("rebuild") != nil {
		args.Rebuild, _ = flags.GetBool("rebuild")
	}
	if flags.Lookup("all") != nil {
		args.ValidateAll, _ = flags.GetBool("all")
	}
	if flags.Lookup("export") != nil {
		args.ReportTypes, _ = flags.GetStringSlice("export")
	}
	if flags.Lookup("report-name") != nil {
		args.ReportName, _ = flags.GetString("report-name")
	}
	if flags.Lookup("publish") != nil {
		args.Publish, _ = flags.GetBool("publish")
	}
	if flags.Lookup("building") != nil {
		args.Building, _ = flags.GetString("building")
	}
	if flags.Lookup("window") != nil {
		args.Window, _ = flags.GetInt("window")
	}
	if flags.Lookup("trend") != nil {
		args.Trend, _ = flags.GetBool("trend")
	}

	periods := []struct {
		flag string
		dst  *entity.Period
	}{
		{"as-of", &args.AsOf},
		{"from", &args.From},
		{"to", &args.To},
	}
	for _, p := range periods {
		if flags.Lookup(p.flag) == nil {
			continue
		}
		v, _ := flags.GetString(p.flag)
		if v == "" {
			continue
		}
		period, err := entity.ParsePeriod(v)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", p.flag, err)
		}
		*p.dst = period
	}

	if flags.Lookup("confirm-empty-period") != nil {
		values, _ := flags.GetStringSlice("confirm-empty-period")
		for _, v := range values {
			period, err := entity.ParsePeriod(v)
			if err != nil {
				return nil, fmt.Errorf("--confirm-empty-period: %w", err)
			}
			args.ConfirmEmpty = append(args.ConfirmEmpty, period)
		}
	}

	if flags.Lookup("dir") != nil {
		dir, _ := flags.GetString("dir")
		if dir != "" {
			// Converte para caminho absoluto
			absDir, err := filepath.Abs(dir)
			if err != nil {
				return nil, err
			}
			args.Dir = absDir
		}
	}

	return args, nil
}

// env resolve flags, configuração, logger e console para o comando.
func (app *CLIApp) env(cmd *cobra.Command) (*Env, error) {
	args, err := parseArgs(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := app.wiring.LoadConfig(args.ConfigFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	var out types.ConsoleInterface = console.NewConsole()
	if args.Quiet {
		out = console.NewSilentConsole()
	}
	return &Env{Args: args, Config: cfg, Logger: logger, Console: out}, nil
}

// withRuntime abre os armazéns, executa fn e fecha tudo ao final.
func (app *CLIApp) withRuntime(cmd *cobra.Command, fn func(ctx context.Context, env *Env, rt *Runtime) error) error {
	env, err := app.env(cmd)
	if err != nil {
		return err
	}
	defer env.Logger.Sync()

	if !env.Args.Quiet && cmd.Name() == "run" {
		displayWelcomeBanner(app.version)
		// Verifica a versão mais recente disponível
		go version.CheckLatestVersion(app.version)
	}

	ctx := cmd.Context()
	rt, err := app.wiring.OpenRuntime(ctx, env)
	if err != nil {
		return err
	}
	defer func() {
		if rt.Close == nil {
			return
		}
		if err := rt.Close(); err != nil {
			env.Logger.Warn("failed to close stores", zap.Error(err))
		}
	}()
	return fn(ctx, env, rt)
}

func exportFormats(env *Env) []string {
	var formats []string
	for _, f := range env.Args.ReportTypes {
		if f = strings.TrimSpace(f); f != "" {
			formats = append(formats, f)
		}
	}
	return formats
}

// Main executa a aplicação e devolve o código de saída do processo.
func Main(ctx context.Context, app *CLIApp) int {
	err := app.Execute(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}
