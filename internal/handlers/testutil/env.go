package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/api"
	"github.com/charlesng35/gigbook/internal/app"
	iauth "github.com/charlesng35/gigbook/internal/auth"
	"github.com/charlesng35/gigbook/internal/cache"
	sharedtestutil "github.com/charlesng35/gigbook/internal/database/testutil"
	"github.com/charlesng35/gigbook/internal/events"
	"github.com/charlesng35/gigbook/internal/middleware"
	"github.com/charlesng35/gigbook/internal/models"
	"github.com/charlesng35/gigbook/internal/monitoring"
	"github.com/charlesng35/gigbook/internal/monitoring/checks"
	"github.com/charlesng35/gigbook/internal/realtime"
	"github.com/charlesng35/gigbook/pkg/response"
)

const jwtSecret = "test-suite-super-secret-key-32-bytes!!"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T          *testing.T
	DB         *gorm.DB
	Router     *gin.Engine
	JWT        *iauth.JWTService
	Config     *app.Config
	Services   *api.Services
	Dispatcher *events.Dispatcher
	Hub        *realtime.Hub
	Jobs       *monitoring.JobTracker
}

// Option adjusts the configuration before the router is built.
type Option func(cfg *app.Config)

// WithAutoConfirm enables single-candidate auto confirmation.
func WithAutoConfirm() Option {
	return func(cfg *app.Config) {
		cfg.Booking.AutoConfirmSingleCandidate = true
	}
}

// WithRateLimit sets the per-actor request budget.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(cfg *app.Config) {
		cfg.Server.RateLimit = app.RateLimitConfig{Requests: requests, Window: window}
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: jwtSecret,
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
		Booking: app.BookingConfig{
			Cancellation: app.CancellationConfig{
				LateWindow:         24 * time.Hour,
				SuspensionLength:   7 * 24 * time.Hour,
				FrequencyThreshold: 3,
				FrequencyWindow:    30 * 24 * time.Hour,
			},
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true, Timeout: time.Second},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	dispatcher, err := events.NewDispatcher(db, cfg.Events.DispatcherOptions()...)
	require.NoError(t, err)

	hub := realtime.NewHub()
	svc, err := api.NewServices(db, dispatcher, hub, cfg)
	require.NoError(t, err)

	jobs := monitoring.NewJobTracker()
	health := monitoring.NewHealthManager()
	health.RegisterLiveness(monitoring.NewCheck("process", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	health.RegisterReadiness(checks.Database(db, time.Second))
	health.RegisterReadiness(checks.Outbox(dispatcher, cfg.Events.MaxLag, time.Second))

	router, err := api.NewRouter(api.Dependencies{
		Config:    cfg,
		JWT:       jwtSvc,
		Services:  svc,
		Hub:       hub,
		RateStore: middleware.NewMemoryRateStore(),
		Cache:     cache.NewDatabaseStore(db),
		Health:    health,
		Jobs:      jobs,
	})
	require.NoError(t, err)

	return &Env{
		T:          t,
		DB:         db,
		Router:     router,
		JWT:        jwtSvc,
		Config:     cfg,
		Services:   svc,
		Dispatcher: dispatcher,
		Hub:        hub,
		Jobs:       jobs,
	}
}

// Actor is a caller identity with a signed access token.
type Actor struct {
	ID    string
	Kind  string
	Token string
}

// Organizer mints a token for a new organizer account. The account itself is
// provisioned on its first request.
func (e *Env) Organizer() Actor {
	e.T.Helper()
	return e.actor(models.UserKindOrganizer)
}

// Musician mints a token for a new musician account.
func (e *Env) Musician() Actor {
	e.T.Helper()
	return e.actor(models.UserKindMusician)
}

func (e *Env) actor(kind string) Actor {
	e.T.Helper()
	id := uuid.NewString()
	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:      id,
		Kind:        kind,
		DisplayName: kind + " " + id[:8],
	})
	require.NoError(e.T, err)
	return Actor{ID: id, Kind: kind, Token: token}
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Expect performs a request, asserts the status code and decodes the data payload into dest when non-nil.
func (e *Env) Expect(status int, method, path string, body any, token string, dest any) APIResponse {
	e.T.Helper()
	w := e.Request(method, path, body, token)
	require.Equal(e.T, status, w.Code, w.Body.String())
	resp := DecodeResponse(e.T, w)
	if dest != nil && len(resp.Data) > 0 {
		require.NoError(e.T, json.Unmarshal(resp.Data, dest))
	}
	return resp
}
