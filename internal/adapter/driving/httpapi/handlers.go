package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
	})
}

// withReader abre o armazém para a requisição e garante o fechamento.
func (s *Server) withReader(w http.ResponseWriter, r *http.Request, fn func(Reader) (interface{}, error)) {
	reader, err := s.open(r.Context())
	if err != nil {
		s.metrics.WarehouseErrors.Inc()
		s.logger.Warn("warehouse unavailable", zap.Error(err))
		respondError(w, "warehouse unavailable", http.StatusServiceUnavailable)
		return
	}
	defer reader.Close()

	data, err := fn(reader)
	if err != nil {
		s.metrics.WarehouseErrors.Inc()
		s.logger.Error("query failed", zap.String("path", r.URL.Path), zap.Error(err))
		respondError(w, "query failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, data)
}

func parseRange(r *http.Request) (entity.PeriodRange, error) {
	var rng entity.PeriodRange
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		p, err := entity.ParsePeriod(v)
		if err != nil {
			return rng, err
		}
		rng.From = p
	}
	if v := q.Get("to"); v != "" {
		p, err := entity.ParsePeriod(v)
		if err != nil {
			return rng, err
		}
		rng.To = p
	}
	return rng, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	s.withReader(w, r, func(reader Reader) (interface{}, error) {
		counts, err := reader.TableCounts(r.Context())
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"tables": counts}, nil
	})
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	building := r.URL.Query().Get("building")

	s.withReader(w, r, func(reader Reader) (interface{}, error) {
		if building != "" {
			rows, err := reader.BuildingKPIs(r.Context(), rng, building)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"building": building, "kpis": rows, "count": len(rows)}, nil
		}
		rows, err := reader.PeriodKPIs(r.Context(), rng)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"kpis": rows, "count": len(rows)}, nil
	})
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	size := 0
	if v := r.URL.Query().Get("size"); v != "" {
		size, err = strconv.Atoi(v)
		if err != nil || size <= 0 {
			respondError(w, fmt.Sprintf("invalid window size %q", v), http.StatusBadRequest)
			return
		}
	}

	s.withReader(w, r, func(reader Reader) (interface{}, error) {
		rows, err := reader.RollingWindows(r.Context(), size, rng)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"windows": rows, "count": len(rows)}, nil
	})
}

func (s *Server) handleSuites(w http.ResponseWriter, r *http.Request) {
	var asOf entity.Period
	if v := r.URL.Query().Get("as_of"); v != "" {
		p, err := entity.ParsePeriod(v)
		if err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		asOf = p
	}

	s.withReader(w, r, func(reader Reader) (interface{}, error) {
		var (
			rows []entity.SuiteChangeRecord
			err  error
		)
		if asOf.IsZero() {
			rows, err = reader.CurrentSuites(r.Context())
		} else {
			rows, err = reader.SuitesAsOf(r.Context(), asOf)
		}
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"as_of": asOf, "suites": rows, "count": len(rows)}, nil
	})
}

func (s *Server) handleSuiteHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.withReader(w, r, func(reader Reader) (interface{}, error) {
		rows, err := reader.SuiteVersions(r.Context(), id)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"suite_id": id, "versions": rows, "count": len(rows)}, nil
	})
}
