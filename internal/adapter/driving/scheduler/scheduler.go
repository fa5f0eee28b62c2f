package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ProcessedDir recebe os arquivos do inbox depois de uma execução bem-sucedida.
const ProcessedDir = "processed"

// Job executa o pipeline sobre os arquivos encontrados no inbox.
type Job func(ctx context.Context, sources []string) error

// Scheduler dispara o pipeline num único cron sobre um diretório de entrada.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	inbox  string
	job    Job
	logger *zap.Logger

	mu        sync.Mutex
	isRunning bool
}

// NewScheduler cria o agendador. Execuções sobrepostas são puladas, já que o
// pipeline admite um único escritor.
func NewScheduler(spec, inbox string, job Job, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec:   spec,
		inbox:  inbox,
		job:    job,
		logger: logger,
	}
}

// Start registra o disparo e inicia o cron.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.inbox, 0o755); err != nil {
		return fmt.Errorf("creating inbox: %w", err)
	}

	_, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.mu.Lock()
	s.isRunning = true
	s.mu.Unlock()
	s.logger.Info("scheduler started", zap.String("cron", s.spec), zap.String("inbox", s.inbox))
	return nil
}

// Stop interrompe o cron e espera o disparo em andamento terminar.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("scheduler stopped")
}

// RunOnce processa o inbox uma vez. Sem arquivos, nada é executado. Após
// sucesso os arquivos são movidos para processed/; em caso de erro ficam no
// inbox para a próxima tentativa, o que é seguro porque a ingestão é idempotente.
func (s *Scheduler) RunOnce(ctx context.Context) ([]string, error) {
	sources, err := PendingSources(s.inbox)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		s.logger.Debug("inbox empty, nothing to run", zap.String("inbox", s.inbox))
		return nil, nil
	}

	s.logger.Info("scheduled run starting", zap.Strings("sources", sources))
	if err := s.job(ctx, sources); err != nil {
		return sources, err
	}

	var errs []error
	for _, src := range sources {
		if err := moveProcessed(s.inbox, src); err != nil {
			errs = append(errs, err)
		}
	}
	return sources, errors.Join(errs...)
}

// PendingSources lista os arquivos de export suportados no inbox, em ordem de nome.
func PendingSources(inbox string) ([]string, error) {
	entries, err := os.ReadDir(inbox)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading inbox: %w", err)
	}

	var sources []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".json", ".yaml", ".yml":
			sources = append(sources, filepath.Join(inbox, e.Name()))
		}
	}
	sort.Strings(sources)
	return sources, nil
}

func moveProcessed(inbox, src string) error {
	dir := filepath.Join(inbox, ProcessedDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.Rename(src, filepath.Join(dir, filepath.Base(src)))
}
