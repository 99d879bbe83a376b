// Package api serves the REST surface for alerts, zones, scheduled
// alerts, and user role management. Every data route is guarded:
// bearer token -> user id -> stored role -> static permission policy.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"zonewatch/internal/authz"
	"zonewatch/internal/domain"
)

const defaultMaxBodyBytes = 1 << 20

// Backend exposes the application operations the HTTP surface needs.
// Params: context plus request payloads per operation.
// Returns: stored records or operation errors.
type Backend interface {
	CreateAlert(ctx context.Context, alert domain.Alert) (domain.Alert, error)
	ListAlerts(ctx context.Context, zoneID string) ([]domain.Alert, error)
	CreateZone(ctx context.Context, zone domain.Zone) (domain.Zone, error)
	ListZones(ctx context.Context) ([]domain.Zone, error)
	ScheduleAlert(ctx context.Context, entry domain.ScheduledAlert) (domain.ScheduledAlert, error)
	ListScheduledAlerts(ctx context.Context) ([]domain.ScheduledAlert, error)
	AlertMetrics(ctx context.Context) (domain.AlertMetrics, error)
	AssignRole(ctx context.Context, userID string, role domain.Role) (domain.UserProfile, error)
	ListUsers(ctx context.Context) ([]domain.UserProfile, error)
}

// RoleResolver maps authenticated user ids to effective roles.
// Params: context and user id.
// Returns: effective role; implementations never fail.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID string) domain.Role
}

// Handler is the REST handler for the full API surface.
// Params: backend operations, credential resolution, and body limits.
// Returns: http.Handler via Router.
type Handler struct {
	backend      Backend
	auth         *Authenticator
	roles        RoleResolver
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewHandler creates the REST handler.
// Params: backend, authenticator, role resolver, logger, and max request
// body size (0 uses the 1 MiB default).
// Returns: configured handler.
func NewHandler(backend Backend, auth *Authenticator, roles RoleResolver, logger *slog.Logger, maxBodyBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		backend:      backend,
		auth:         auth,
		roles:        roles,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// Router builds the route table with per-route permission guards.
// Params: none.
// Returns: mux covering the API surface.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/session", h.handleStartSession)

	mux.Handle("POST /api/v1/alerts", h.guard(h.handleCreateAlert,
		authz.Permission{Action: authz.ActionCreate, Resource: authz.ResourceAlerts}))
	mux.Handle("GET /api/v1/alerts", h.guard(h.handleListAlerts,
		authz.Permission{Action: authz.ActionRead, Resource: authz.ResourceAlerts}))

	mux.Handle("POST /api/v1/zones", h.guard(h.handleCreateZone,
		authz.Permission{Action: authz.ActionCreate, Resource: authz.ResourceZones}))
	mux.Handle("GET /api/v1/zones", h.guard(h.handleListZones,
		authz.Permission{Action: authz.ActionRead, Resource: authz.ResourceZones}))

	mux.Handle("POST /api/v1/scheduled-alerts", h.guard(h.handleScheduleAlert,
		authz.Permission{Action: authz.ActionCreate, Resource: authz.ResourceAlerts}))
	mux.Handle("GET /api/v1/scheduled-alerts", h.guard(h.handleListScheduledAlerts,
		authz.Permission{Action: authz.ActionRead, Resource: authz.ResourceAlerts}))

	mux.Handle("GET /api/v1/analytics", h.guard(h.handleAlertMetrics,
		authz.Permission{Action: authz.ActionRead, Resource: authz.ResourceAnalytics}))

	mux.Handle("POST /api/v1/users", h.guard(h.handleAssignRole,
		authz.Permission{Action: authz.ActionCreate, Resource: authz.ResourceUsers}))
	mux.Handle("GET /api/v1/users", h.guard(h.handleListUsers,
		authz.Permission{Action: authz.ActionRead, Resource: authz.ResourceUsers}))

	return mux
}

// guard wraps one route with authentication and permission checks.
// Params: route handler and required permission set.
// Returns: handler answering 401 for bad credentials and 403 for denials.
func (h *Handler) guard(next http.HandlerFunc, required ...authz.Permission) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		token, ok := bearerToken(request)
		if !ok {
			writeError(writer, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, ok := h.auth.Authenticate(token)
		if !ok {
			writeError(writer, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		role := h.roles.ResolveRole(request.Context(), userID)
		if !authz.Guard(role, required...) {
			writeError(writer, http.StatusForbidden, "permission denied")
			return
		}
		next(writer, request)
	})
}

type sessionRequest struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	SessionToken string `json:"session_token"`
}

// handleStartSession exchanges a static credential for a session token.
func (h *Handler) handleStartSession(writer http.ResponseWriter, request *http.Request) {
	var payload sessionRequest
	if !h.decodeBody(writer, request, &payload) {
		return
	}
	token, ok := h.auth.StartSession(payload.Token)
	if !ok {
		writeError(writer, http.StatusUnauthorized, "unknown credential")
		return
	}
	writeJSON(writer, http.StatusCreated, sessionResponse{SessionToken: token})
}

type createAlertRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Priority string `json:"priority"`
	ZoneID   string `json:"zone_id"`
}

// handleCreateAlert creates one immediate alert.
func (h *Handler) handleCreateAlert(writer http.ResponseWriter, request *http.Request) {
	var payload createAlertRequest
	if !h.decodeBody(writer, request, &payload) {
		return
	}

	alert := domain.Alert{
		Title:    strings.TrimSpace(payload.Title),
		Content:  strings.TrimSpace(payload.Content),
		Priority: domain.Priority(strings.TrimSpace(payload.Priority)),
		ZoneID:   strings.TrimSpace(payload.ZoneID),
	}
	if !validZoneRef(alert.ZoneID) {
		writeError(writer, http.StatusBadRequest, "zone_id must be a UUID")
		return
	}
	if err := alert.Validate(); err != nil {
		writeError(writer, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := h.backend.CreateAlert(request.Context(), alert)
	if err != nil {
		h.serveBackendError(writer, "create alert", err)
		return
	}
	writeJSON(writer, http.StatusCreated, stored)
}

// handleListAlerts lists alerts newest-first with optional zone filter.
func (h *Handler) handleListAlerts(writer http.ResponseWriter, request *http.Request) {
	alerts, err := h.backend.ListAlerts(request.Context(), strings.TrimSpace(request.URL.Query().Get("zone_id")))
	if err != nil {
		h.serveBackendError(writer, "list alerts", err)
		return
	}
	writeJSON(writer, http.StatusOK, alerts)
}

type createZoneRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Coordinates [][2]float64 `json:"coordinates"`
}

// handleCreateZone creates one zone.
func (h *Handler) handleCreateZone(writer http.ResponseWriter, request *http.Request) {
	var payload createZoneRequest
	if !h.decodeBody(writer, request, &payload) {
		return
	}

	zone := domain.Zone{
		Name:        strings.TrimSpace(payload.Name),
		Description: strings.TrimSpace(payload.Description),
		Coordinates: payload.Coordinates,
	}
	if err := zone.Validate(); err != nil {
		writeError(writer, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := h.backend.CreateZone(request.Context(), zone)
	if err != nil {
		h.serveBackendError(writer, "create zone", err)
		return
	}
	writeJSON(writer, http.StatusCreated, stored)
}

// handleListZones lists all zones.
func (h *Handler) handleListZones(writer http.ResponseWriter, request *http.Request) {
	zones, err := h.backend.ListZones(request.Context())
	if err != nil {
		h.serveBackendError(writer, "list zones", err)
		return
	}
	writeJSON(writer, http.StatusOK, zones)
}

type createScheduledRequest struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	Priority     string `json:"priority"`
	ZoneID       string `json:"zone_id"`
	Recurring    bool   `json:"recurring"`
	Frequency    string `json:"frequency"`
	ScheduleDate string `json:"schedule_date"`
}

// handleScheduleAlert queues one scheduled alert.
func (h *Handler) handleScheduleAlert(writer http.ResponseWriter, request *http.Request) {
	var payload createScheduledRequest
	if !h.decodeBody(writer, request, &payload) {
		return
	}

	scheduleDate, err := time.Parse(time.RFC3339, strings.TrimSpace(payload.ScheduleDate))
	if err != nil {
		writeError(writer, http.StatusBadRequest, "schedule_date must be RFC3339")
		return
	}

	entry := domain.ScheduledAlert{
		Title:        strings.TrimSpace(payload.Title),
		Content:      strings.TrimSpace(payload.Content),
		Priority:     domain.Priority(strings.TrimSpace(payload.Priority)),
		ZoneID:       strings.TrimSpace(payload.ZoneID),
		Recurring:    payload.Recurring,
		Frequency:    domain.Frequency(strings.TrimSpace(payload.Frequency)),
		ScheduleDate: scheduleDate,
	}
	if !validZoneRef(entry.ZoneID) {
		writeError(writer, http.StatusBadRequest, "zone_id must be a UUID")
		return
	}
	if err := entry.Validate(); err != nil {
		writeError(writer, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := h.backend.ScheduleAlert(request.Context(), entry)
	if err != nil {
		h.serveBackendError(writer, "schedule alert", err)
		return
	}
	writeJSON(writer, http.StatusCreated, stored)
}

// handleListScheduledAlerts lists scheduled alerts ordered by due time.
func (h *Handler) handleListScheduledAlerts(writer http.ResponseWriter, request *http.Request) {
	entries, err := h.backend.ListScheduledAlerts(request.Context())
	if err != nil {
		h.serveBackendError(writer, "list scheduled alerts", err)
		return
	}
	writeJSON(writer, http.StatusOK, entries)
}

// handleAlertMetrics serves the aggregated analytics summary.
func (h *Handler) handleAlertMetrics(writer http.ResponseWriter, request *http.Request) {
	metrics, err := h.backend.AlertMetrics(request.Context())
	if err != nil {
		h.serveBackendError(writer, "alert metrics", err)
		return
	}
	writeJSON(writer, http.StatusOK, metrics)
}

type assignRoleRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// handleAssignRole creates or updates one user profile role.
func (h *Handler) handleAssignRole(writer http.ResponseWriter, request *http.Request) {
	var payload assignRoleRequest
	if !h.decodeBody(writer, request, &payload) {
		return
	}

	userID := strings.TrimSpace(payload.UserID)
	if userID == "" {
		writeError(writer, http.StatusBadRequest, "user_id is required")
		return
	}
	role, err := domain.ParseRole(payload.Role)
	if err != nil {
		writeError(writer, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.backend.AssignRole(request.Context(), userID, role)
	if err != nil {
		h.serveBackendError(writer, "assign role", err)
		return
	}
	writeJSON(writer, http.StatusOK, profile)
}

// handleListUsers lists all user profiles.
func (h *Handler) handleListUsers(writer http.ResponseWriter, request *http.Request) {
	profiles, err := h.backend.ListUsers(request.Context())
	if err != nil {
		h.serveBackendError(writer, "list users", err)
		return
	}
	writeJSON(writer, http.StatusOK, profiles)
}

// decodeBody reads and decodes one size-capped JSON request body.
// Params: response writer, request, and destination payload pointer.
// Returns: true on success; false after writing a 400 response.
func (h *Handler) decodeBody(writer http.ResponseWriter, request *http.Request, dst any) bool {
	request.Body = http.MaxBytesReader(writer, request.Body, h.maxBodyBytes)
	defer request.Body.Close()

	body, err := io.ReadAll(request.Body)
	if err != nil {
		writeError(writer, http.StatusBadRequest, "request body unreadable or too large")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(writer, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}

// serveBackendError logs one backend failure and answers 500.
// Params: operation label and backend error.
// Returns: writes {error} envelope with internal status.
func (h *Handler) serveBackendError(writer http.ResponseWriter, operation string, err error) {
	h.logger.Error("api operation failed", "operation", operation, "error", err.Error())
	writeError(writer, http.StatusInternalServerError, "internal error")
}

// validZoneRef reports whether an optional zone reference is a well-formed id.
// Params: trimmed zone id, possibly empty.
// Returns: true for empty or UUID-shaped values.
func validZoneRef(zoneID string) bool {
	if zoneID == "" {
		return true
	}
	_, err := uuid.Parse(zoneID)
	return err == nil
}

// bearerToken extracts the bearer credential from the Authorization header.
// Params: incoming request.
// Returns: token value and true when the header carries a bearer scheme.
func bearerToken(request *http.Request) (string, bool) {
	header := strings.TrimSpace(request.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// errorEnvelope is the uniform failure response body.
type errorEnvelope struct {
	Error string `json:"error"`
}

// writeJSON writes one JSON response with status code.
// Params: writer, status, and payload.
// Returns: encoded body side-effect.
func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}

// writeError writes the {error} envelope.
// Params: writer, status, and message.
// Returns: encoded envelope side-effect.
func writeError(writer http.ResponseWriter, status int, message string) {
	writeJSON(writer, status, errorEnvelope{Error: message})
}
