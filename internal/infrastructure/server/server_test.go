package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/tracing"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Store.Driver = "memory"
	cfg.AI.Provider = "disabled"
	cfg.Auth.BcryptCost = 4
	cfg.RateLimit.Enabled = false
	cfg.Logging.Development = true
	cfg.Server.Port = "0"
	cfg.Server.ShutdownTimeout = time.Second
	return cfg
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := NewServer(context.Background(), testConfig(), logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestServerWiring(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(tracing.HeaderTraceID))

	resp, err = http.Get(ts.URL + "/api/v1/workflows/templates")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerEndToEnd(t *testing.T) {
	_, ts := newTestServer(t)

	body := `{"email":"ada@example.com","username":"ada","password":"correct-horse-1"}`
	resp, err := http.Post(ts.URL+"/api/v1/auth/register", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var auth struct {
		Token string `json:"token"`
	}
	require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&auth))

	req, _ := http.NewRequest("GET", ts.URL+"/api/v1/workflows/templates", nil)
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	tresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer tresp.Body.Close()
	require.Equal(t, http.StatusOK, tresp.StatusCode)

	var templates []map[string]interface{}
	require.NoError(t, sonic.ConfigDefault.NewDecoder(tresp.Body).Decode(&templates))
	assert.NotEmpty(t, templates)

	req, _ = http.NewRequest("POST", ts.URL+"/api/v1/ai/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	req.Header.Set("Content-Type", "application/json")
	aresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	aresp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, aresp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + auth.Token
	conn, wresp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	wresp.Body.Close()
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var hello map[string]interface{}
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "system", hello["type"])
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Host = "127.0.0.1"
	srv, err := NewServer(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	_, err := openStore(context.Background(), config.StoreConfig{Driver: "mongo"}, nil)
	assert.Error(t, err)
}
