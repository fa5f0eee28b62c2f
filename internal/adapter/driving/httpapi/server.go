package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/repository"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Reader is a short-lived read-only view of the warehouse.
type Reader interface {
	repository.GoldReader
	Close() error
}

// ReaderOpener opens a Reader for one request.
type ReaderOpener func(ctx context.Context) (Reader, error)

// Server serves the gold read contract as JSON under /api/v1.
type Server struct {
	open    ReaderOpener
	metrics *Metrics
	logger  *zap.Logger
	router  *mux.Router
}

// NewServer monta as rotas. O armazém é aberto somente leitura a cada
// requisição e fechado ao final, sem segurar o arquivo entre chamadas.
func NewServer(open ReaderOpener, logger *zap.Logger) *Server {
	s := &Server{
		open:    open,
		metrics: NewMetrics(),
		logger:  logger,
		router:  mux.NewRouter(),
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/tables", s.handleTables).Methods(http.MethodGet)
	api.HandleFunc("/kpis", s.handleKPIs).Methods(http.MethodGet)
	api.HandleFunc("/windows", s.handleWindows).Methods(http.MethodGet)
	api.HandleFunc("/suites", s.handleSuites).Methods(http.MethodGet)
	api.HandleFunc("/suites/{id}/history", s.handleSuiteHistory).Methods(http.MethodGet)
	api.Use(s.metrics.middleware)

	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe atende em addr até ctx ser cancelado e então encerra com
// um prazo para as requisições em andamento.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("api shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
