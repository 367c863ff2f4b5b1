package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/sgtm-webhook/api/controllers"
	pkgAuth "github.com/angelmondragon/sgtm-webhook/pkg/auth"
	"github.com/angelmondragon/sgtm-webhook/pkg/config"
	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
	"github.com/angelmondragon/sgtm-webhook/pkg/logger"
	"github.com/angelmondragon/sgtm-webhook/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "sgtm-webhook", ExpirationMinutes: 60},
		Dispatch: config.DispatchConfig{
			ReprocessLimit: 10,
		},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	metrics.NewDispatchMetrics(reg).IncDecision("sent", "")
	return NewRouter(Params{
		Config:    cfg,
		Logger:    logger.Nop(),
		Readiness: map[string]controllers.Pinger{"db": stubPinger{}},
		Gatherer:  reg,
	}), cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.OperatorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{Subject: "tester", Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
		if rec.Header().Get("X-Request-Id") == "" {
			t.Fatalf("%s: expected request id header", path)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sgtm_dispatch_decisions_total") {
		t.Fatalf("expected dispatch metrics in output")
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	router, cfg := newTestRouter(t)

	cases := []struct {
		name string
		auth string
		want int
	}{
		{name: "anonymous", want: http.StatusUnauthorized},
		{name: "system token", auth: bearer(t, cfg, enums.OperatorRoleSystem), want: http.StatusForbidden},
		{name: "garbage token", auth: "Bearer nope", want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/dispatch/1001/resend", nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestEventRouteAcceptsSystemRole(t *testing.T) {
	router, cfg := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/orders", strings.NewReader(`{"event_type":"order.paid"}`))
	req.Header.Set("Authorization", bearer(t, cfg, enums.OperatorRoleSystem))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	// Authorized, then rejected by body validation before any dispatch.
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdminCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/admin/v1/statistics", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}
