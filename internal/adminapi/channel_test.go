package adminapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasis-iglesia/oasis/config"
	"github.com/oasis-iglesia/oasis/internal/app"
	"github.com/oasis-iglesia/oasis/internal/channel"
	"github.com/oasis-iglesia/oasis/internal/domain"
	"github.com/oasis-iglesia/oasis/internal/webserver"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type testEnv struct {
	app      *app.Application
	handler  http.Handler
	token    string
	provider *httptest.Server
	calls    *int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	var calls int64
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/instance/connectionState/"):
			_, _ = io.WriteString(w, `{"instance":{"instanceName":"oasis-iglesia","state":"open"}}`)
		case strings.HasPrefix(r.URL.Path, "/message/"):
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"key":{"id":"3EB0"},"status":"PENDING"}`)
		default:
			_, _ = io.WriteString(w, `{}`)
		}
	}))
	t.Cleanup(provider.Close)

	cfg := config.DefaultAppConfig()
	cfg.System.Workdir = t.TempDir()
	cfg.Database.Type = "sqlite"
	cfg.Database.Name = "adminapi"
	cfg.Web.Secret = "test-secret"
	cfg.Channel.Workers = 4

	a := app.NewApplication(cfg)
	require.NoError(t, a.Init(cfg))
	t.Cleanup(a.Release)
	require.NoError(t, a.SaveSettings(map[string]interface{}{
		"whatsapp.evolution_url": provider.URL,
		"whatsapp.evolution_key": "evo-secret-key",
		"whatsapp.app_url":       "https://oasis.example.org",
	}))

	srv := webserver.Init(a)
	Init()

	token, err := webserver.IssueToken(cfg.Web.Secret, "pastor.ana", time.Hour)
	require.NoError(t, err)
	return &testEnv{app: a, handler: srv.Echo(), token: token, provider: provider, calls: &calls}
}

func (e *testEnv) do(t *testing.T, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, webserver.APIPrefix+path, r)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) providerCalls() int64 {
	return atomic.LoadInt64(e.calls)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const bannedWebhook = `{"event":"CONNECTION_UPDATE","data":{"state":"close","statusReason":401}}`

func TestWebhookThenStatus(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/channel/webhook", bannedWebhook, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["received"])

	rec = env.do(t, http.MethodGet, "/channel/status", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["kill_switch"])
	assert.Equal(t, "banned_or_disconnected", body["status"])
	assert.Equal(t, "number banned (401)", body["kill_reason"])
	assert.Equal(t, "open", body["live_state"])
	assert.Equal(t, false, body["has_qr"])
}

func TestWebhookAlwaysAcknowledges(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []string{`not json`, `{"event":"UNKNOWN"}`, `{"event":"QRCODE_UPDATED","data":{}}`, `{}`} {
		rec := env.do(t, http.MethodPost, "/channel/webhook", body, false)
		assert.Equal(t, http.StatusOK, rec.Code, body)
	}
	rec := env.do(t, http.MethodGet, "/channel/status", "", true)
	assert.Equal(t, "unknown", decode(t, rec)["status"])
}

func TestWebhookBurstDoesNotDropBan(t *testing.T) {
	env := newTestEnv(t)
	msg := `{"event":"MESSAGES_UPSERT","data":{"key":{"id":"ABC"},"message":{"conversation":"hola"}}}`
	for i := 0; i < 60; i++ {
		rec := env.do(t, http.MethodPost, "/channel/webhook", msg, false)
		require.Equal(t, http.StatusOK, rec.Code, "delivery %d", i)
	}

	rec := env.do(t, http.MethodPost, "/channel/webhook", bannedWebhook, false)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, env.do(t, http.MethodGet, "/channel/status", "", true))
	assert.Equal(t, true, body["kill_switch"])
	assert.Equal(t, "banned_or_disconnected", body["status"])

	var bans int64
	require.NoError(t, env.app.DB().Model(&domain.ChannelEvent{}).
		Where("event = ? AND applied = ?", "CONNECTION_UPDATE", true).Count(&bans).Error)
	assert.Equal(t, int64(1), bans)

	var messages int64
	require.NoError(t, env.app.DB().Model(&domain.ChannelEvent{}).
		Where("event = ?", "MESSAGES_UPSERT").Count(&messages).Error)
	assert.Less(t, messages, int64(60))
}

func TestWebhookQRCodeStored(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/channel/webhook",
		`{"event":"qrcode.updated","data":{"qrcode":{"base64":"data:image/png;base64,QR1"}}}`, false)

	body := decode(t, env.do(t, http.MethodGet, "/channel/status", "", true))
	assert.Equal(t, "qr_pending", body["status"])
	assert.Equal(t, true, body["has_qr"])
	assert.Equal(t, "data:image/png;base64,QR1", body["qr_base64"])
}

func TestSendTestBlockedByKillSwitch(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/channel/webhook", bannedWebhook, false)

	rec := env.do(t, http.MethodPost, "/channel/send-test", `{"to":"+57 300 111 2222","message":"hi"}`, true)
	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "KILL_SWITCH_ACTIVE", body["error"])
	assert.Contains(t, body["message"], "number banned (401)")
	assert.Equal(t, "number banned (401)", body["details"].(map[string]interface{})["kill_reason"])
	assert.Zero(t, env.providerCalls())

	rec = env.do(t, http.MethodPost, "/channel/send-document", `{"to":"573001112222","file_url":"https://files.example.org/b.pdf"}`, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, env.providerCalls())
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/channel/status", "/channel/settings", "/channel/events"} {
		rec := env.do(t, http.MethodGet, path, "", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := env.do(t, http.MethodPost, "/channel/reset-kill-switch", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		path, body string
	}{
		{"/channel/send-test", `{"to":"573001112222"}`},
		{"/channel/send-test", `{"message":"hola"}`},
		{"/channel/send-test", `{"to":"573001112222","message":"` + strings.Repeat("a", 4097) + `"}`},
		{"/channel/send-document", `{"to":"573001112222","file_url":"not a url"}`},
		{"/channel/send-document", `{"to":"573001112222","file_url":"https://x.org/a.pdf","file_name":"` + strings.Repeat("f", 256) + `"}`},
		{"/channel/send-image", `{"to":"573001112222"}`},
	}
	for _, tt := range tests {
		rec := env.do(t, http.MethodPost, tt.path, tt.body, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.path)
	}
	assert.Zero(t, env.providerCalls())
}

func TestSendTestDelivers(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the humanized delay")
	}
	env := newTestEnv(t)
	start := time.Now()
	rec := env.do(t, http.MethodPost, "/channel/send-test", `{"to":"+57 300 111 2222","message":"hola hermanos"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.GreaterOrEqual(t, time.Since(start), time.Second)

	body := decode(t, rec)
	assert.Equal(t, true, body["sent"])
	assert.EqualValues(t, 2, env.providerCalls()) // presence + send
}

func TestResetKillSwitchLogsOperator(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/channel/webhook", bannedWebhook, false)

	rec := env.do(t, http.MethodPost, "/channel/reset-kill-switch", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, env.app.Channel().Gate().CheckAllowed(context.Background()))

	body := decode(t, env.do(t, http.MethodGet, "/channel/status", "", true))
	assert.Equal(t, false, body["kill_switch"])
	// reset leaves the connection status as it was
	assert.Equal(t, "banned_or_disconnected", body["status"])

	var logs []domain.SysOprLog
	require.NoError(t, env.app.DB().Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "pastor.ana", logs[0].OprName)
	assert.Equal(t, "channel_reset_kill_switch", logs[0].OptAction)
	assert.Contains(t, logs[0].OptDesc, "number banned (401)")
}

func TestInstanceLifecycleRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/channel/create-instance", "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(channel.StatusCreated), env.app.GetSettingsStringValue(app.CategoryWhatsApp, channel.KeyStatus))

	rec = env.do(t, http.MethodGet, "/channel/qr", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/channel/logout", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(channel.StatusDisconnected), env.app.GetSettingsStringValue(app.CategoryWhatsApp, channel.KeyStatus))
	assert.EqualValues(t, 3, env.providerCalls())
}

func TestProviderUnconfigured(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.app.SaveSettings(map[string]interface{}{"whatsapp.evolution_key": ""}))

	rec := env.do(t, http.MethodPost, "/channel/create-instance", "", true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "CHANNEL_NOT_CONFIGURED", decode(t, rec)["error"])

	body := decode(t, env.do(t, http.MethodGet, "/channel/status", "", true))
	assert.Equal(t, channel.LiveStateUnreachable, body["live_state"])
	assert.Zero(t, env.providerCalls())
}
