package main

import (
	"context"
	"os"

	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driven/bronze"
	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driven/config"
	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driven/export"
	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driven/lockfile"
	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driven/objectstore"
	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driven/source"
	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driven/warehouse"
	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driving/cli"
	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driving/httpapi"
	"github.com/diillson/leasing-bi-pipeline/internal/application/usecase"
	"github.com/diillson/leasing-bi-pipeline/internal/domain/repository"
	"github.com/diillson/leasing-bi-pipeline/pkg/version"
)

func main() {
	configRepo := config.NewConfigRepository()

	wiring := cli.Wiring{
		LoadConfig:  configRepo.Load,
		OpenRuntime: openRuntime,
		OpenReader:  openReader,
	}

	// Inicializa o aplicativo CLI e executa
	app := cli.NewCLIApp(version.Version, wiring)
	os.Exit(cli.Main(context.Background(), app))
}

// openRuntime abre os armazéns e monta os casos de uso para um comando.
func openRuntime(ctx context.Context, env *cli.Env) (*cli.Runtime, error) {
	cfg := env.Config

	bronzeRepo, err := bronze.NewBronzeRepository(cfg.Bronze.Root, env.Logger)
	if err != nil {
		return nil, err
	}
	wh, err := warehouse.Open(ctx, cfg.Warehouse.Path, env.Logger)
	if err != nil {
		return nil, err
	}

	// Sem bucket o publicador fica nil (interface nula, não ponteiro tipado).
	var objectStore repository.ObjectStoreRepository
	if cfg.Publish.Bucket != "" {
		objectStore = objectstore.NewS3Repository(cfg.Publish)
	}

	pipeline := usecase.NewPipelineUseCase(
		source.NewSourceRepository(cfg.Source, cfg.Quality.Buildings, env.Logger),
		bronzeRepo,
		wh,
		export.NewExportRepository(),
		objectStore,
		lockfile.New(cfg.Lock.Path),
		cfg,
		env.Console,
		env.Logger,
	)
	reports := usecase.NewReportUseCase(wh, wh, wh, bronzeRepo, env.Console)

	return &cli.Runtime{Pipeline: pipeline, Reports: reports, Close: wh.Close}, nil
}

// openReader abre o armazém somente leitura a cada requisição da API.
func openReader(env *cli.Env) httpapi.ReaderOpener {
	return func(ctx context.Context) (httpapi.Reader, error) {
		return warehouse.OpenReadOnly(ctx, env.Config.Warehouse.Path, env.Logger)
	}
}
