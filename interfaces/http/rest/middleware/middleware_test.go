package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/pkg/auth"
	"github.com/Skozial17/supportchat/pkg/observability"
)

const testSecret = "test-secret"

func newValidator(t *testing.T) *auth.JWTValidator {
	t.Helper()
	v, err := auth.NewJWTValidator(auth.JWTConfig{SigningMethod: "HS256", SecretKey: testSecret, Audience: []string{"supportchat-api"}})
	require.NoError(t, err)
	return v
}

func newToken(t *testing.T, user auth.UserContext) string {
	t.Helper()
	gen, err := auth.NewJWTGenerator(testSecret, "", []string{"supportchat-api"}, time.Hour)
	require.NoError(t, err)
	token, err := gen.GenerateToken(user)
	require.NoError(t, err)
	return token
}

// whoami echoes the authenticated user id.
var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(user.UserID))
})

func TestAuthenticator(t *testing.T) {
	token := newToken(t, auth.UserContext{UserID: "driver-1", Role: "driver"})

	tests := []struct {
		name         string
		trustGateway bool
		prepare      func(r *http.Request)
		wantStatus   int
		wantUser     string
	}{
		{
			name:       "missing token",
			prepare:    func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bearer header",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			wantStatus: http.StatusOK,
			wantUser:   "driver-1",
		},
		{
			name:       "cookie",
			prepare:    func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "auth_token", Value: token}) },
			wantStatus: http.StatusOK,
			wantUser:   "driver-1",
		},
		{
			name: "query parameter",
			prepare: func(r *http.Request) {
				r.URL.RawQuery = "token=" + token
			},
			wantStatus: http.StatusOK,
			wantUser:   "driver-1",
		},
		{
			name:       "garbage token",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "gateway headers ignored outside lambda",
			prepare: func(r *http.Request) {
				r.Header.Set("X-API-Gateway-Authorized", "true")
				r.Header.Set("X-User-ID", "admin-1")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:         "gateway headers trusted in lambda",
			trustGateway: true,
			prepare: func(r *http.Request) {
				r.Header.Set("X-API-Gateway-Authorized", "true")
				r.Header.Set("X-User-ID", "admin-1")
				r.Header.Set("X-User-Role", "admin")
			},
			wantStatus: http.StatusOK,
			wantUser:   "admin-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAuthenticator(newValidator(t), tt.trustGateway, nil, nil, zap.NewNop())
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cases", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()

			a.Middleware(whoami).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantUser != "" {
				assert.Equal(t, tt.wantUser, rec.Body.String())
			}
		})
	}
}

func TestAuthenticator_RateLimits(t *testing.T) {
	token := newToken(t, auth.UserContext{UserID: "driver-1", Role: "driver"})
	a := NewAuthenticator(newValidator(t), false, nil, auth.NewUserRateLimiter(2, 0.001), zap.NewNop())
	handler := a.Middleware(whoami)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRequireRole(t *testing.T) {
	guarded := RequireRole(valueobjects.RoleAdmin)(whoami)

	tests := []struct {
		name string
		user *auth.UserContext
		want int
	}{
		{name: "anonymous", want: http.StatusUnauthorized},
		{name: "driver", user: &auth.UserContext{UserID: "d1", Role: "driver"}, want: http.StatusForbidden},
		{name: "admin", user: &auth.UserContext{UserID: "a1", Role: "admin"}, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin", nil)
			if tt.user != nil {
				req = req.WithContext(auth.SetUserInContext(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5123"
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", getClientIP(req))
}

func TestMetricsMiddleware(t *testing.T) {
	collector := observability.NewCollector("test")
	r := chi.NewRouter()
	r.Use(Metrics(collector))
	r.Get("/cases/{caseID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases/case-1", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("GET", "/cases/{caseID}", "204")))
}
