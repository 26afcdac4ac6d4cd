package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skozial17/supportchat/application/queries"
	"github.com/Skozial17/supportchat/infrastructure/config"
	"github.com/Skozial17/supportchat/infrastructure/di"
	"github.com/Skozial17/supportchat/pkg/auth"
)

type apiClient struct {
	t      *testing.T
	server *httptest.Server
	tokens *auth.JWTGenerator
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	cfg := &config.Config{
		Environment:        "test",
		AWSRegion:          "us-east-1",
		StorageBackend:     config.StorageMemory,
		JWTIssuer:          "supportchat",
		JWTAudience:        "supportchat-api",
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
		SignupLimit:        10,
		SignupWindow:       time.Hour,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
		StreamPollInterval: 10 * time.Millisecond,
		MetricsNamespace:   "test",
		EnableCache:        true,
		CacheTTLSeconds:    30,
	}

	container, err := di.InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)

	server := httptest.NewServer(container.Router)
	t.Cleanup(func() {
		server.Close()
		container.Cache.Close()
	})
	return &apiClient{t: t, server: server, tokens: container.TokenIssuer}
}

func (c *apiClient) token(user auth.UserContext) string {
	tok, err := c.tokens.GenerateToken(user)
	require.NoError(c.t, err)
	return tok
}

func (c *apiClient) do(method, path, token string, body interface{}, out interface{}) int {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.server.URL+path, reader)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

var (
	dana  = auth.UserContext{UserID: "driver-1", Email: "dana@example.com", Name: "Dana", Role: "driver", Company: "Acme"}
	eli   = auth.UserContext{UserID: "driver-2", Email: "eli@example.com", Name: "Eli", Role: "driver"}
	admin = auth.UserContext{UserID: "admin-1", Email: "ops@example.com", Name: "Ops", Role: "admin"}
)

func TestHealthAndMetrics(t *testing.T) {
	api := newAPI(t)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health", "", nil, nil))
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/ready", "", nil, nil))
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/metrics", "", nil, nil))
}

func TestAuthentication(t *testing.T) {
	api := newAPI(t)

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/v1/cases", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/v1/cases", "not-a-jwt", nil, nil))
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/v1/admin/drivers/pending", api.token(dana), nil, nil))
}

func TestCaseLifecycle(t *testing.T) {
	api := newAPI(t)
	driverToken := api.token(dana)
	adminToken := api.token(admin)

	// Start
	var view queries.CaseView
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/cases", driverToken, map[string]string{"flow": "case"}, &view))
	require.NotNil(t, view.CurrentStep)
	assert.Equal(t, "start", view.CurrentStep.ID)
	assert.Equal(t, "open", view.Status)
	assert.NotNil(t, view.Opening)
	casePath := "/api/v1/cases/" + view.ID

	// Advance through the VRID branch
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, casePath+"/advance", driverToken, map[string]string{"option": "Yes"}, &view))
	assert.Equal(t, "load_showing", view.CurrentStep.ID)

	status := api.do(http.MethodPost, casePath+"/advance", driverToken, map[string]string{"option": "Maybe"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, casePath+"/advance", driverToken,
		map[string]string{"option": "Site told me load is cancelled but it is still on my Relay app"}, &view))
	assert.Equal(t, "vrid_request", view.CurrentStep.ID)

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, casePath+"/advance", driverToken, map[string]string{"input": "113456789"}, &view))
	assert.True(t, view.Finalized)
	assert.True(t, strings.HasPrefix(view.Title, "Load Issue - "))
	assert.Contains(t, view.Description, "Dana: 113456789")

	// Other drivers cannot see it
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, casePath, api.token(eli), nil, nil))

	// Messages from both sides
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, casePath+"/messages", adminToken, map[string]string{"text": "Looking into it"}, &view))
	last := view.Messages[len(view.Messages)-1]
	assert.Equal(t, "Looking into it", last.Text())

	// Only admins close and reopen
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, casePath+"/close", driverToken, map[string]string{"reason": "done"}, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, casePath+"/close", adminToken, map[string]string{"reason": "resolved"}, &view))
	assert.Equal(t, "closed", view.Status)
	assert.Equal(t, "resolved", view.CloseReason)

	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, casePath+"/messages", driverToken, map[string]string{"text": "hello?"}, nil))

	transcriptLen := len(view.Messages)
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, casePath+"/reopen", adminToken, nil, &view))
	assert.Equal(t, "open", view.Status)
	assert.Len(t, view.Messages, transcriptLen)

	require.Equal(t, http.StatusOK, api.do(http.MethodPut, casePath+"/priority", adminToken, map[string]string{"priority": "high"}, &view))
	assert.Equal(t, "high", view.Priority)

	// Listings
	var list queries.CaseListResult
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/cases", driverToken, nil, &list))
	assert.Len(t, list.Cases, 1)
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/cases", api.token(eli), nil, &list))
	assert.Empty(t, list.Cases)
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/cases?search=dana", adminToken, nil, &list))
	assert.Len(t, list.Cases, 1)

	// Audit trail
	var history queries.CaseHistoryResult
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, casePath+"/history", driverToken, nil, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, casePath+"/history", adminToken, nil, &history))
	assert.NotEmpty(t, history.Events)
}

func TestFlows(t *testing.T) {
	api := newAPI(t)
	token := api.token(dana)

	var flows queries.FlowListResult
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/flows", token, nil, &flows))
	assert.Equal(t, "case", flows.Default)
	assert.Len(t, flows.Flows, 3)

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/flows/intake", token, nil, nil))
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/v1/flows/unknown", token, nil, nil))
}

func TestDriverRegistration(t *testing.T) {
	api := newAPI(t)
	adminToken := api.token(admin)
	signup := map[string]string{"name": "Fay", "email": "fay@example.com", "company": "Acme"}

	var created struct {
		DriverID string `json:"driver_id"`
		Status   string `json:"status"`
	}
	require.Equal(t, http.StatusAccepted, api.do(http.MethodPost, "/api/v1/drivers/signup", "", signup, &created))
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/api/v1/drivers/signup", "", signup, nil))

	var status queries.DriverStatusResult
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/drivers/status?email=fay@example.com", "", nil, &status))
	assert.Equal(t, "pending", status.Status)

	var pending queries.DriverListResult
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/admin/drivers/pending", adminToken, nil, &pending))
	require.Len(t, pending.Drivers, 1)
	assert.Equal(t, created.DriverID, pending.Drivers[0].ID)

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/admin/drivers/"+created.DriverID+"/approve", adminToken, nil, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/drivers/status?id="+created.DriverID, "", nil, &status))
	assert.Equal(t, "approved", status.Status)

	assert.Equal(t, http.StatusUnprocessableEntity, api.do(http.MethodPost, "/api/v1/admin/drivers/"+created.DriverID+"/reject", adminToken, nil, nil))
}
