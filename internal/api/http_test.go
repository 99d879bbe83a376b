package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"zonewatch/internal/authz"
	"zonewatch/internal/clock"
	"zonewatch/internal/domain"
	"zonewatch/internal/store"
)

// testBackend serves API calls straight from a memory store.
type testBackend struct {
	store *store.MemoryStore
	fail  bool
}

func (b *testBackend) CreateAlert(ctx context.Context, alert domain.Alert) (domain.Alert, error) {
	if b.fail {
		return domain.Alert{}, errors.New("backend down")
	}
	return b.store.InsertAlert(ctx, alert)
}

func (b *testBackend) ListAlerts(ctx context.Context, zoneID string) ([]domain.Alert, error) {
	if b.fail {
		return nil, errors.New("backend down")
	}
	return b.store.ListAlerts(ctx, store.AlertFilter{ZoneID: zoneID})
}

func (b *testBackend) CreateZone(ctx context.Context, zone domain.Zone) (domain.Zone, error) {
	return b.store.InsertZone(ctx, zone)
}

func (b *testBackend) ListZones(ctx context.Context) ([]domain.Zone, error) {
	return b.store.ListZones(ctx)
}

func (b *testBackend) ScheduleAlert(ctx context.Context, entry domain.ScheduledAlert) (domain.ScheduledAlert, error) {
	return b.store.InsertScheduledAlert(ctx, entry)
}

func (b *testBackend) ListScheduledAlerts(ctx context.Context) ([]domain.ScheduledAlert, error) {
	return b.store.ListScheduledAlerts(ctx)
}

func (b *testBackend) AlertMetrics(ctx context.Context) (domain.AlertMetrics, error) {
	if b.fail {
		return domain.AlertMetrics{}, errors.New("backend down")
	}
	alerts, err := b.store.ListAlerts(ctx, store.AlertFilter{})
	if err != nil {
		return domain.AlertMetrics{}, err
	}
	zones, err := b.store.ListZones(ctx)
	if err != nil {
		return domain.AlertMetrics{}, err
	}
	return domain.BuildAlertMetrics(alerts, zones), nil
}

func (b *testBackend) AssignRole(ctx context.Context, userID string, role domain.Role) (domain.UserProfile, error) {
	return b.store.UpsertUserProfile(ctx, domain.UserProfile{UserID: userID, Role: role})
}

func (b *testBackend) ListUsers(ctx context.Context) ([]domain.UserProfile, error) {
	return b.store.ListUserProfiles(ctx)
}

type apiFixture struct {
	backend *testBackend
	server  *httptest.Server
}

// Static tokens: one per role plus one user without any stored profile.
const (
	adminToken    = "token-admin"
	operatorToken = "token-operator"
	viewerToken   = "token-viewer"
	ghostToken    = "token-ghost"
)

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	mem := store.NewMemoryStore(nil)
	ctx := context.Background()
	seed := map[string]domain.Role{
		"user-admin":    domain.RoleAdmin,
		"user-operator": domain.RoleOperator,
		"user-viewer":   domain.RoleViewer,
	}
	for userID, role := range seed {
		if _, err := mem.UpsertUserProfile(ctx, domain.UserProfile{UserID: userID, Role: role}); err != nil {
			t.Fatalf("seed profile %s: %v", userID, err)
		}
	}

	backend := &testBackend{store: mem}
	auth := NewAuthenticator(map[string]string{
		adminToken:    "user-admin",
		operatorToken: "user-operator",
		viewerToken:   "user-viewer",
		ghostToken:    "user-ghost",
	}, NewSessionManager(time.Hour, nil))
	handler := NewHandler(backend, auth, authz.NewResolver(mem, nil), nil, 0)

	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)
	return &apiFixture{backend: backend, server: server}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}

	request, err := http.NewRequest(method, f.server.URL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	response, err := f.server.Client().Do(request)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { response.Body.Close() })
	return response
}

func decodeBody[T any](t *testing.T, response *http.Response) T {
	t.Helper()
	var decoded T
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return decoded
}

func TestAlertsCreateAndList(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	zoneA, zoneB := uuid.NewString(), uuid.NewString()
	for i, zone := range []string{zoneA, zoneB} {
		response := f.do(t, http.MethodPost, "/api/v1/alerts", operatorToken, map[string]any{
			"title":    fmt.Sprintf("alert-%d", i),
			"content":  "details",
			"priority": "high",
			"zone_id":  zone,
		})
		if response.StatusCode != http.StatusCreated {
			t.Fatalf("create alert status %d", response.StatusCode)
		}
	}

	response := f.do(t, http.MethodGet, "/api/v1/alerts", viewerToken, nil)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("list alerts status %d", response.StatusCode)
	}
	alerts := decodeBody[[]domain.Alert](t, response)
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	if alerts[0].Title != "alert-1" {
		t.Fatalf("expected newest first, got %q", alerts[0].Title)
	}

	filtered := decodeBody[[]domain.Alert](t, f.do(t, http.MethodGet, "/api/v1/alerts?zone_id="+zoneB, viewerToken, nil))
	if len(filtered) != 1 || filtered[0].ZoneID != zoneB {
		t.Fatalf("zone filter failed: %+v", filtered)
	}
}

func TestAlertsValidation(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	response := f.do(t, http.MethodPost, "/api/v1/alerts", operatorToken, map[string]any{
		"title": "", "content": "c", "priority": "high",
	})
	if response.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty title: expected 400, got %d", response.StatusCode)
	}
	envelope := decodeBody[map[string]string](t, response)
	if envelope["error"] == "" {
		t.Fatalf("missing error envelope: %+v", envelope)
	}

	response = f.do(t, http.MethodPost, "/api/v1/alerts", operatorToken, map[string]any{
		"title": "t", "content": "c", "priority": "urgent",
	})
	if response.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad priority: expected 400, got %d", response.StatusCode)
	}

	response = f.do(t, http.MethodPost, "/api/v1/alerts", operatorToken, map[string]any{
		"title": "t", "content": "c", "priority": "high", "zone_id": "not-a-uuid",
	})
	if response.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed zone_id: expected 400, got %d", response.StatusCode)
	}
}

func TestAnalyticsSummary(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	zone := decodeBody[domain.Zone](t, f.do(t, http.MethodPost, "/api/v1/zones", adminToken, map[string]any{
		"name":        "Riverside",
		"coordinates": [][2]float64{{0, 0}, {1, 0}, {1, 1}},
	}))
	for _, priority := range []string{"high", "high", "low"} {
		response := f.do(t, http.MethodPost, "/api/v1/alerts", operatorToken, map[string]any{
			"title": "t", "content": "c", "priority": priority, "zone_id": zone.ID,
		})
		if response.StatusCode != http.StatusCreated {
			t.Fatalf("create alert status %d", response.StatusCode)
		}
	}

	// Every role reads analytics, including the viewer fallback.
	for _, token := range []string{viewerToken, ghostToken} {
		response := f.do(t, http.MethodGet, "/api/v1/analytics", token, nil)
		if response.StatusCode != http.StatusOK {
			t.Fatalf("analytics with %s: status %d", token, response.StatusCode)
		}
		metrics := decodeBody[domain.AlertMetrics](t, response)
		if metrics.Total != 3 {
			t.Fatalf("expected total 3, got %d", metrics.Total)
		}
		if metrics.ByPriority[domain.PriorityHigh] != 2 || metrics.ByPriority[domain.PriorityLow] != 1 {
			t.Fatalf("unexpected priority breakdown: %+v", metrics.ByPriority)
		}
		if len(metrics.ByZone) != 1 || metrics.ByZone[0].Name != "Riverside" || metrics.ByZone[0].Count != 3 {
			t.Fatalf("unexpected zone breakdown: %+v", metrics.ByZone)
		}
	}

	if got := f.do(t, http.MethodGet, "/api/v1/analytics", "", nil).StatusCode; got != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", got)
	}
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	if got := f.do(t, http.MethodGet, "/api/v1/alerts", "", nil).StatusCode; got != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", got)
	}
	if got := f.do(t, http.MethodGet, "/api/v1/alerts", "bogus", nil).StatusCode; got != http.StatusUnauthorized {
		t.Fatalf("unknown token: expected 401, got %d", got)
	}
}

func TestPermissionDenials(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"viewer cannot create alerts", http.MethodPost, "/api/v1/alerts", viewerToken,
			map[string]any{"title": "t", "content": "c", "priority": "low"}, http.StatusForbidden},
		{"operator cannot create zones", http.MethodPost, "/api/v1/zones", operatorToken,
			map[string]any{"name": "z"}, http.StatusForbidden},
		{"operator cannot list users", http.MethodGet, "/api/v1/users", operatorToken,
			nil, http.StatusForbidden},
		{"viewer can read zones", http.MethodGet, "/api/v1/zones", viewerToken,
			nil, http.StatusOK},
		{"admin can create zones", http.MethodPost, "/api/v1/zones", adminToken,
			map[string]any{"name": "z"}, http.StatusCreated},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := f.do(t, tc.method, tc.path, tc.token, tc.body).StatusCode; got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestUnresolvedProfileActsAsViewer(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	// ghostToken authenticates but its user has no stored profile.
	if got := f.do(t, http.MethodGet, "/api/v1/alerts", ghostToken, nil).StatusCode; got != http.StatusOK {
		t.Fatalf("viewer fallback read: expected 200, got %d", got)
	}
	response := f.do(t, http.MethodPost, "/api/v1/alerts", ghostToken, map[string]any{
		"title": "t", "content": "c", "priority": "low",
	})
	if response.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer fallback write: expected 403, got %d", response.StatusCode)
	}
}

func TestScheduledAlertRoutes(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	response := f.do(t, http.MethodPost, "/api/v1/scheduled-alerts", operatorToken, map[string]any{
		"title": "drill", "content": "c", "priority": "medium",
		"recurring": true, "frequency": "weekly",
		"schedule_date": "2025-04-01T09:00:00Z",
	})
	if response.StatusCode != http.StatusCreated {
		t.Fatalf("create scheduled: status %d", response.StatusCode)
	}
	created := decodeBody[domain.ScheduledAlert](t, response)
	if created.Status != domain.SchedulePending {
		t.Fatalf("expected pending status, got %s", created.Status)
	}

	// frequency without recurring violates the recurrence invariant
	response = f.do(t, http.MethodPost, "/api/v1/scheduled-alerts", operatorToken, map[string]any{
		"title": "drill", "content": "c", "priority": "medium",
		"frequency": "weekly", "schedule_date": "2025-04-01T09:00:00Z",
	})
	if response.StatusCode != http.StatusBadRequest {
		t.Fatalf("invariant violation: expected 400, got %d", response.StatusCode)
	}

	response = f.do(t, http.MethodPost, "/api/v1/scheduled-alerts", operatorToken, map[string]any{
		"title": "drill", "content": "c", "priority": "medium",
		"schedule_date": "tomorrow",
	})
	if response.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", response.StatusCode)
	}

	listed := decodeBody[[]domain.ScheduledAlert](t, f.do(t, http.MethodGet, "/api/v1/scheduled-alerts", viewerToken, nil))
	if len(listed) != 1 {
		t.Fatalf("expected 1 scheduled alert, got %d", len(listed))
	}
}

func TestUserRoutesAdminOnly(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	response := f.do(t, http.MethodPost, "/api/v1/users", adminToken, map[string]any{
		"user_id": "user-new", "role": "operator",
	})
	if response.StatusCode != http.StatusOK {
		t.Fatalf("assign role: status %d", response.StatusCode)
	}
	profile := decodeBody[domain.UserProfile](t, response)
	if profile.Role != domain.RoleOperator {
		t.Fatalf("unexpected assigned role %s", profile.Role)
	}

	response = f.do(t, http.MethodPost, "/api/v1/users", adminToken, map[string]any{
		"user_id": "user-new", "role": "supervisor",
	})
	if response.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad role: expected 400, got %d", response.StatusCode)
	}

	users := decodeBody[[]domain.UserProfile](t, f.do(t, http.MethodGet, "/api/v1/users", adminToken, nil))
	if len(users) != 4 {
		t.Fatalf("expected 4 profiles, got %d", len(users))
	}
}

func TestBackendFailureAnswers500(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	f.backend.fail = true

	response := f.do(t, http.MethodGet, "/api/v1/alerts", viewerToken, nil)
	if response.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", response.StatusCode)
	}
	envelope := decodeBody[map[string]string](t, response)
	if envelope["error"] != "internal error" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}

func TestSessionExchange(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	response := f.do(t, http.MethodPost, "/api/v1/auth/session", "", map[string]any{"token": operatorToken})
	if response.StatusCode != http.StatusCreated {
		t.Fatalf("session exchange: status %d", response.StatusCode)
	}
	session := decodeBody[map[string]string](t, response)
	sessionToken := session["session_token"]
	if sessionToken == "" {
		t.Fatalf("missing session token in response")
	}

	if got := f.do(t, http.MethodGet, "/api/v1/alerts", sessionToken, nil).StatusCode; got != http.StatusOK {
		t.Fatalf("session token read: expected 200, got %d", got)
	}

	response = f.do(t, http.MethodPost, "/api/v1/auth/session", "", map[string]any{"token": "bogus"})
	if response.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad credential exchange: expected 401, got %d", response.StatusCode)
	}
}

func TestSessionExpiry(t *testing.T) {
	t.Parallel()

	frozen := &advancingClock{at: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	sessions := NewSessionManager(time.Minute, frozen)

	token := sessions.Create("user-1")
	if userID, ok := sessions.Resolve(token); !ok || userID != "user-1" {
		t.Fatalf("fresh session did not resolve")
	}

	frozen.at = frozen.at.Add(2 * time.Minute)
	if _, ok := sessions.Resolve(token); ok {
		t.Fatalf("expired session still resolves")
	}
}

// advancingClock lets a test move time forward between reads.
type advancingClock struct {
	at time.Time
}

func (c *advancingClock) Now() time.Time { return c.at }

var _ clock.Clock = (*advancingClock)(nil)
