// Package handler provides the HTTP request handlers for the sync service.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	apierrors "github.com/alselawi/apexo-database/internal/errors"
	"github.com/alselawi/apexo-database/internal/metrics"
	"github.com/alselawi/apexo-database/internal/middleware"
	"github.com/alselawi/apexo-database/internal/service"
)

// SyncHandler handles the table sync endpoints. It validates the request
// shape, resolves the tenant from the request context and delegates to the
// sync service; all validation happens before any mutation.
type SyncHandler struct {
	service *service.SyncService
	tables  map[string]struct{}
	errs    *apierrors.Handler
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewSyncHandler creates a new sync handler. tables is the whitelist of
// table names the service will touch.
func NewSyncHandler(svc *service.SyncService, tables []string, errs *apierrors.Handler, m *metrics.Metrics, logger *zap.Logger) *SyncHandler {
	whitelist := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		whitelist[t] = struct{}{}
	}
	return &SyncHandler{
		service: svc,
		tables:  whitelist,
		errs:    errs,
		metrics: m,
		logger:  logger,
	}
}

type upsertRequest struct {
	Rows map[string]string `json:"rows"`
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}

// Fetch handles GET /v1/tables/{table}/rows requests.
func (h *SyncHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := r.Header.Get("X-Request-ID")

	tenant, table, ok := h.tenantAndTable(w, r, requestID)
	if !ok {
		return
	}

	since, err := parseVersion(r.URL.Query().Get("since"))
	if err != nil {
		h.fail(w, r, "fetch", err)
		return
	}

	page, err := parsePage(r.URL.Query().Get("page"))
	if err != nil {
		h.fail(w, r, "fetch", err)
		return
	}

	result, err := h.service.Fetch(r.Context(), tenant, table, since, page)
	if err != nil {
		h.fail(w, r, "fetch", err)
		return
	}

	h.metrics.RequestsTotal.WithLabelValues("fetch", table).Inc()
	h.metrics.RequestDuration.WithLabelValues("fetch").Observe(time.Since(start).Seconds())
	h.writeJSONResponse(w, http.StatusOK, result)
}

// Upsert handles POST /v1/tables/{table}/rows requests.
func (h *SyncHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := r.Header.Get("X-Request-ID")

	tenant, table, ok := h.tenantAndTable(w, r, requestID)
	if !ok {
		return
	}

	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, "upsert", apierrors.New(apierrors.CodeMalformedBody, "request body is not valid JSON"))
		return
	}
	if req.Rows == nil {
		h.fail(w, r, "upsert", apierrors.New(apierrors.CodeMalformedBody, "request body has no rows field"))
		return
	}

	result, err := h.service.Upsert(r.Context(), tenant, table, req.Rows)
	if err != nil {
		h.fail(w, r, "upsert", err)
		return
	}

	h.metrics.RequestsTotal.WithLabelValues("upsert", table).Inc()
	h.metrics.RequestDuration.WithLabelValues("upsert").Observe(time.Since(start).Seconds())
	h.writeJSONResponse(w, http.StatusOK, result)
}

// Delete handles POST /v1/tables/{table}/rows/delete requests.
func (h *SyncHandler) Delete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := r.Header.Get("X-Request-ID")

	tenant, table, ok := h.tenantAndTable(w, r, requestID)
	if !ok {
		return
	}

	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, "delete", apierrors.New(apierrors.CodeMalformedBody, "request body is not valid JSON"))
		return
	}

	result, err := h.service.Delete(r.Context(), tenant, table, req.IDs)
	if err != nil {
		h.fail(w, r, "delete", err)
		return
	}

	h.metrics.RequestsTotal.WithLabelValues("delete", table).Inc()
	h.metrics.RequestDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	h.writeJSONResponse(w, http.StatusOK, result)
}

// Reset handles POST /v1/tables/{table}/reset requests. It is the one
// explicit way to wipe a tenant's table partition; an empty-id delete never
// means a wipe.
func (h *SyncHandler) Reset(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := r.Header.Get("X-Request-ID")

	tenant, table, ok := h.tenantAndTable(w, r, requestID)
	if !ok {
		return
	}

	if err := h.service.Reset(r.Context(), tenant, table); err != nil {
		h.fail(w, r, "reset", err)
		return
	}

	h.metrics.RequestsTotal.WithLabelValues("reset", table).Inc()
	h.metrics.RequestDuration.WithLabelValues("reset").Observe(time.Since(start).Seconds())
	h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// tenantAndTable resolves the authenticated tenant and the validated table
// name, writing the error response itself when either is missing.
func (h *SyncHandler) tenantAndTable(w http.ResponseWriter, r *http.Request, requestID string) (string, string, bool) {
	tenant, ok := middleware.TenantFrom(r.Context())
	if !ok {
		h.errs.WriteErrorResponse(w, http.StatusUnauthorized,
			apierrors.CodeAuthMissing, "no authenticated tenant", requestID)
		return "", "", false
	}

	table := mux.Vars(r)["table"]
	if _, ok := h.tables[table]; !ok {
		h.errs.WriteErrorResponse(w, http.StatusBadRequest,
			apierrors.CodeInvalidTable, "unknown table: "+table, requestID)
		return "", "", false
	}

	return tenant, table, true
}

func (h *SyncHandler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	h.metrics.RequestErrors.WithLabelValues(operation, string(apierrors.CodeOf(err))).Inc()
	h.errs.HandleError(w, r, err)
}

// parseVersion parses the since query parameter. Absent means 0, "all rows".
func parseVersion(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || version < 0 {
		return 0, apierrors.New(apierrors.CodeInvalidVersion, "version must be a non-negative integer")
	}
	return version, nil
}

// parsePage parses the page query parameter. Absent means page 0; the
// literal "latest" asks for the current version with no rows.
func parsePage(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	if raw == "latest" {
		return service.PageVersionOnly, nil
	}
	page, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || page < 0 {
		return 0, apierrors.New(apierrors.CodeInvalidPage, "page must be a non-negative integer")
	}
	return page, nil
}

// writeJSONResponse writes a JSON response to the HTTP response writer.
func (h *SyncHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
