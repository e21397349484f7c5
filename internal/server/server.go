// Package server exposes the valuation engine over HTTP: reference data
// listings, valuation runs with persisted results, and batch processing.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AshwinKadaruDev/vc-audit/internal/config"
	"github.com/AshwinKadaruDev/vc-audit/internal/engine"
	"github.com/AshwinKadaruDev/vc-audit/internal/loader"
	"github.com/AshwinKadaruDev/vc-audit/internal/model"
	"github.com/AshwinKadaruDev/vc-audit/internal/store"
)

// batchLimit caps concurrent engine runs in one batch request.
const batchLimit = 4

// Server wires the engine, loader, and store behind the HTTP API.
type Server struct {
	eng *engine.Engine
	dl  loader.DataLoader
	st  store.Store
	cfg config.ServerConfig
	rl  *rateLimiter
}

// New builds a Server. The rate limit config may allow zero requests, which
// rejects everything; config validation prevents that in practice.
func New(eng *engine.Engine, dl loader.DataLoader, st store.Store, cfg config.ServerConfig, rlCfg config.RateLimitConfig) *Server {
	return &Server{
		eng: eng,
		dl:  dl,
		st:  st,
		cfg: cfg,
		rl:  newRateLimiter(rlCfg),
	}
}

// Router assembles the chi routing tree with logging, CORS, and rate
// limiting applied to the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rl.middleware)

		r.Get("/companies", s.handleListCompanies)
		r.Get("/companies/{id}/valuations", s.handleCompanyValuations)
		r.Get("/sectors", s.handleListSectors)
		r.Get("/indices", s.handleListIndices)

		r.Post("/valuations", s.handleRunValuation)
		r.Post("/valuations/custom", s.handleCustomValuation)
		r.Post("/valuations/batch", s.handleBatchValuation)
		r.Get("/valuations/{id}", s.handleGetValuation)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.dl.ListCompanies(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if companies == nil {
		companies = []model.CompanySummary{}
	}
	writeJSON(w, http.StatusOK, companies)
}

func (s *Server) handleListSectors(w http.ResponseWriter, r *http.Request) {
	sectors, err := s.dl.ListSectors(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sectors == nil {
		sectors = []string{}
	}
	writeJSON(w, http.StatusOK, sectors)
}

func (s *Server) handleListIndices(w http.ResponseWriter, r *http.Request) {
	indices, err := s.dl.ListIndices(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if indices == nil {
		indices = []string{}
	}
	writeJSON(w, http.StatusOK, indices)
}

func (s *Server) handleRunValuation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyID string `json:"company_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	if req.CompanyID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("company_id is required"))
		return
	}

	result, err := s.eng.Run(r.Context(), req.CompanyID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	rec, err := s.st.SaveValuation(r.Context(), result)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleCustomValuation(w http.ResponseWriter, r *http.Request) {
	var data model.CompanyData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	if err := data.Validate(); err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.eng.RunWithData(r.Context(), data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// batchItem is one entry of a batch response: a saved record or an error.
type batchItem struct {
	CompanyID string                 `json:"company_id"`
	Record    *store.ValuationRecord `json:"record,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

func (s *Server) handleBatchValuation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyIDs []string `json:"company_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	if len(req.CompanyIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("company_ids is required"))
		return
	}

	items := make([]batchItem, len(req.CompanyIDs))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(batchLimit)

	for i, id := range req.CompanyIDs {
		g.Go(func() error {
			result, err := s.eng.Run(ctx, id)
			if err != nil {
				items[i] = batchItem{CompanyID: id, Error: err.Error()}
				return nil
			}
			rec, err := s.st.SaveValuation(ctx, result)
			if err != nil {
				items[i] = batchItem{CompanyID: id, Error: err.Error()}
				return nil
			}
			items[i] = batchItem{CompanyID: id, Record: &rec}
			return nil
		})
	}
	// Per-company failures land in the items; the group never errors.
	_ = g.Wait()

	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetValuation(w http.ResponseWriter, r *http.Request) {
	rec, err := s.st.GetValuation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCompanyValuations(w http.ResponseWriter, r *http.Request) {
	records, err := s.st.ListValuations(r.Context(), store.ValuationFilter{
		CompanyID: chi.URLParam(r, "id"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []store.ValuationRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// writeError maps domain errors to status codes: absent data is 404,
// unusable input is 422, everything else is a logged 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var nvm *engine.NoValidMethodsError
	var verr *model.ValidationError

	switch {
	case loader.IsNotFound(err) || store.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(verr.Error()))
	case errors.As(err, &nvm):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(nvm.Error()))
	default:
		zap.L().Error("server: request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
