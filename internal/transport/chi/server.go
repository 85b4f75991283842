// Package chi exposes the detection pipeline over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/sentinel/internal/domain"
	curationuc "github.com/kailas-cloud/sentinel/internal/usecase/curation"
	detectoruc "github.com/kailas-cloud/sentinel/internal/usecase/detector"
	healthuc "github.com/kailas-cloud/sentinel/internal/usecase/health"
	usageuc "github.com/kailas-cloud/sentinel/internal/usecase/usage"
)

const maxExemplarBatch = 100

// Error codes returned in the JSON error body.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeUnauthorized      = "unauthorized"
	codeRateLimited       = "rate_limited"
	codeAdmissionTimeout  = "admission_timeout"
	codeQuotaExceeded     = "embedding_quota_exceeded"
	codeProviderError     = "embedding_provider_error"
	codeIndexUnavailable  = "index_unavailable"
	codeDimensionMismatch = "dimension_mismatch"
	codeInternalError     = "internal_error"
)

// errorResponse is the uniform JSON error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusMapping binds a domain sentinel to its HTTP representation.
type statusMapping struct {
	sentinel error
	status   int
	code     string
}

// Server handles the HTTP API.
type Server struct {
	detector *detectoruc.Service
	curation *curationuc.Service
	usage    *usageuc.Service
	health   *healthuc.Service
	logger   *zap.Logger
	mappings []statusMapping
}

// NewServer creates an HTTP API server.
func NewServer(
	detector *detectoruc.Service,
	curation *curationuc.Service,
	usage *usageuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		detector: detector,
		curation: curation,
		usage:    usage,
		health:   health,
		logger:   logger,
		mappings: []statusMapping{
			{domain.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed},
			{domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded},
			{domain.ErrUpstreamRateLimited, http.StatusTooManyRequests, codeRateLimited},
			{domain.ErrAdmissionTimeout, http.StatusServiceUnavailable, codeAdmissionTimeout},
			{domain.ErrUpstreamUnavailable, http.StatusBadGateway, codeProviderError},
			{domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable},
			{domain.ErrDimensionMismatch, http.StatusInternalServerError, codeDimensionMismatch},
		},
	}
}

// Routes mounts all API handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/evaluate", s.Evaluate)
	r.Post("/v1/exemplars", s.AddExemplars)
	r.Get("/v1/usage", s.GetUsage)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type evaluateRequest struct {
	Text string `json:"text"`
}

// Evaluate handles POST /v1/evaluate.
func (s *Server) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	decision, err := s.detector.Evaluate(r.Context(), req.Text)
	if err != nil {
		// The only error Evaluate returns is invalid input.
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

type addExemplarsRequest struct {
	Exemplars []curationuc.Input `json:"exemplars"`
}

type exemplarItem struct {
	ID       string               `json:"id"`
	Label    domain.ExemplarLabel `json:"label"`
	Weight   float64              `json:"weight"`
	Category string               `json:"category,omitempty"`
}

type addExemplarsResponse struct {
	Indexed   int            `json:"indexed"`
	Exemplars []exemplarItem `json:"exemplars"`
}

// AddExemplars handles POST /v1/exemplars.
func (s *Server) AddExemplars(w http.ResponseWriter, r *http.Request) {
	var req addExemplarsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Exemplars) == 0 || len(req.Exemplars) > maxExemplarBatch {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"exemplars count must be between 1 and 100")
		return
	}

	stored, err := s.curation.AddExemplars(r.Context(), req.Exemplars)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]exemplarItem, len(stored))
	for i, ex := range stored {
		items[i] = exemplarItem{ID: ex.ID, Label: ex.Label, Weight: ex.Weight, Category: ex.Category}
	}
	writeJSON(w, http.StatusCreated, addExemplarsResponse{Indexed: len(items), Exemplars: items})
}

// GetUsage handles GET /v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.usage.GetReport(r.Context()))
}

type healthResponse struct {
	Status healthuc.Status                 `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{Status: report.Status, Checks: report.Checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := s.safeMessage(err)
	for _, m := range s.mappings {
		if errors.Is(err, m.sentinel) {
			writeError(w, m.status, m.code, msg)
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// safeMessage returns a sentinel error message for the client without exposing internals.
func (s *Server) safeMessage(err error) string {
	for _, m := range s.mappings {
		if errors.Is(err, m.sentinel) {
			return m.sentinel.Error()
		}
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
