package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/atvirokodosprendimai/stripekeys/internal/core/domain"
	"github.com/atvirokodosprendimai/stripekeys/internal/core/usecase"
)

const (
	timeFormat      = "2006-01-02T15:04:05.999999999Z07:00"
	maxJSONBodySize = 1 << 16
)

type Options struct {
	// AdminToken guards the /v1 routes. Empty disables the check.
	AdminToken string
	Gatherer   prometheus.Gatherer
}

type Handler struct {
	apiKeys *usecase.APIKeyService
	opts    Options
	log     zerolog.Logger
}

func NewHandler(apiKeys *usecase.APIKeyService, opts Options, log zerolog.Logger) *Handler {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		apiKeys: apiKeys,
		opts:    opts,
		log:     log.With().Str("component", "httpapi").Logger(),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAdminToken)
		pr.Get("/v1/api-keys", h.listAPIKeys)
		pr.Post("/v1/api-keys", h.getOrCreateAPIKey)
		pr.Post("/v1/api-keys:inspect", h.inspectAPIKey)
		pr.Get("/v1/api-keys/{id}", h.getAPIKey)
		pr.Delete("/v1/api-keys/{id}", h.deleteAPIKey)
	})

	return r
}

type createAPIKeyRequest struct {
	Secret string `json:"secret" validate:"required,max=128"`
	Name   string `json:"name" validate:"max=100"`
}

type inspectAPIKeyRequest struct {
	Secret string `json:"secret" validate:"required"`
}

type apiKeyResponse struct {
	ID             string `json:"id"`
	Object         string `json:"object"`
	Type           string `json:"type"`
	Name           string `json:"name"`
	Display        string `json:"display"`
	SecretRedacted string `json:"secret_redacted"`
	Livemode       bool   `json:"livemode"`
	DashboardURL   string `json:"dashboard_url"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type inspectResponse struct {
	Type           string `json:"type"`
	Livemode       bool   `json:"livemode"`
	SecretRedacted string `json:"secret_redacted"`
	DashboardURL   string `json:"dashboard_url"`
}

func (h *Handler) getOrCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req createAPIKeyRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	key, created, err := h.apiKeys.GetOrCreateWithName(r.Context(), req.Secret, req.Name)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, toAPIKeyResponse(key))
}

func (h *Handler) inspectAPIKey(w http.ResponseWriter, r *http.Request) {
	var req inspectAPIKeyRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	keyType, livemode, err := domain.ParseAPIKeyDetails(req.Secret)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, inspectResponse{
		Type:           string(keyType),
		Livemode:       livemode,
		SecretRedacted: domain.RedactSecret(req.Secret),
		DashboardURL:   domain.APIKey{Livemode: livemode}.DashboardURL(),
	})
}

func (h *Handler) getAPIKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.apiKeys.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAPIKeyResponse(key))
}

func (h *Handler) deleteAPIKey(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.apiKeys.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) listAPIKeys(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}
	limit = usecase.ListLimit(limit)

	filter := domain.APIKeyFilter{
		Type:    domain.APIKeyType(query.Get("type")),
		AfterID: query.Get("after"),
		Limit:   limit,
	}
	if raw := query.Get("livemode"); raw != "" {
		livemode, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "livemode must be boolean")
			return
		}
		filter.Livemode = &livemode
	}

	keys, err := h.apiKeys.List(r.Context(), filter)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	result := make([]apiKeyResponse, 0, len(keys))
	for _, key := range keys {
		result = append(result, toAPIKeyResponse(key))
	}

	resp := map[string]any{"items": result}
	if len(keys) > 0 && len(keys) == limit {
		resp["next_after"] = keys[len(keys)-1].ID
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, openapiSpec())
}

func (h *Handler) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.opts.AdminToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get("X-Admin-Token"))
		if token == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(h.opts.AdminToken)) != 1 {
			h.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func toAPIKeyResponse(key domain.APIKey) apiKeyResponse {
	return apiKeyResponse{
		ID:             key.ID,
		Object:         "api_key",
		Type:           string(key.Type),
		Name:           key.Name,
		Display:        key.String(),
		SecretRedacted: key.SecretRedacted(),
		Livemode:       key.Livemode,
		DashboardURL:   key.DashboardURL(),
		CreatedAt:      key.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:      key.UpdatedAt.UTC().Format(timeFormat),
	}
}

func (h *Handler) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "limit must be integer")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

// decodeJSON reads exactly one JSON object with no unknown fields and runs
// struct validation on it. It writes the 400 itself and reports false on failure.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := ensureEOF(decoder); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := domain.Validator().Struct(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		h.log.Error().Err(err).Msg("encode json response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		h.log.Warn().Err(err).Msg("write response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"error": message})
}

func (h *Handler) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAPIKey),
		errors.Is(err, domain.ErrInvalidAPIKeyField),
		errors.Is(err, domain.ErrInvalidFilter):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error().Err(err).Msg("request failed")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func openapiSpec() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "stripekeys",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/v1/api-keys": map[string]any{
				"get":  map[string]any{"summary": "List api keys"},
				"post": map[string]any{"summary": "Get or create api key by secret"},
			},
			"/v1/api-keys:inspect": map[string]any{
				"post": map[string]any{"summary": "Derive type and livemode without storing"},
			},
			"/v1/api-keys/{id}": map[string]any{
				"get":    map[string]any{"summary": "Get api key"},
				"delete": map[string]any{"summary": "Delete api key"},
			},
		},
	}
}
