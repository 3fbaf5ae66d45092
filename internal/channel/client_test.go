package channel

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Method string
	Path   string
	APIKey string
	Body   map[string]interface{}
}

func newProviderServer(t *testing.T, status int, reply string) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		c := capturedRequest{Method: r.Method, Path: r.URL.Path, APIKey: r.Header.Get("apikey")}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &c.Body)
		}
		mu.Lock()
		reqs = append(reqs, c)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), reqs...)
	}
}

func testClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:      baseURL,
		APIKey:       "secret-key",
		InstanceName: "oasis-iglesia",
	}, nil)
}

func TestClient_CreateInstanceForcesProfile(t *testing.T) {
	srv, reqs := newProviderServer(t, http.StatusCreated, `{"instance":{"instanceName":"oasis-iglesia","status":"created"}}`)
	c := testClient(srv.URL)

	resp, err := c.CreateInstance(context.Background(), "https://oasis.example.org/api/v1/channel/webhook", map[string]interface{}{
		"qrcode":        false,
		"reject_call":   false,
		"always_online": true,
		"integration":   "WHATSAPP-BAILEYS",
	})
	require.NoError(t, err)
	assert.Equal(t, "created", resp["instance"].(map[string]interface{})["status"])

	got := reqs()
	require.Len(t, got, 1)
	r := got[0]
	assert.Equal(t, http.MethodPost, r.Method)
	assert.Equal(t, "/instance/create", r.Path)
	assert.Equal(t, "secret-key", r.APIKey)

	assert.Equal(t, "oasis-iglesia", r.Body["instanceName"])
	assert.Equal(t, true, r.Body["qrcode"])
	assert.Equal(t, true, r.Body["reject_call"])
	assert.Equal(t, false, r.Body["always_online"])
	assert.Equal(t, false, r.Body["read_messages"])
	assert.Equal(t, false, r.Body["read_status"])
	assert.Equal(t, true, r.Body["groups_ignore"])
	assert.Equal(t, BrowserUserAgent, r.Body["user_agent"])
	assert.Equal(t, "WHATSAPP-BAILEYS", r.Body["integration"])

	hook := r.Body["webhook"].(map[string]interface{})
	assert.Equal(t, "https://oasis.example.org/api/v1/channel/webhook", hook["url"])
	assert.Equal(t, true, hook["enabled"])
	assert.Len(t, hook["events"], len(WebhookEvents))
}

func TestClient_Paths(t *testing.T) {
	srv, reqs := newProviderServer(t, http.StatusOK, `{"instance":{"state":"open"}}`)
	c := testClient(srv.URL)
	ctx := context.Background()

	_, err := c.ConnectionState(ctx)
	require.NoError(t, err)
	_, err = c.Connect(ctx)
	require.NoError(t, err)
	_, err = c.Logout(ctx)
	require.NoError(t, err)
	_, err = c.SendText(ctx, SendTextRequest{Number: "573001234567@s.whatsapp.net", TextMessage: TextMessage{Text: "hola"}})
	require.NoError(t, err)
	_, err = c.SendMedia(ctx, SendMediaRequest{Number: "573001234567@s.whatsapp.net", MediaMessage: MediaMessage{MediaType: "image", Media: "https://x/y.png"}})
	require.NoError(t, err)
	require.NoError(t, c.SendPresence(ctx, PresenceRequest{Number: "573001234567@s.whatsapp.net", Options: PresenceOptions{Presence: "composing", Delay: 3000}}))

	got := reqs()
	require.Len(t, got, 6)
	expect := []struct{ method, path string }{
		{http.MethodGet, "/instance/connectionState/oasis-iglesia"},
		{http.MethodGet, "/instance/connect/oasis-iglesia"},
		{http.MethodDelete, "/instance/logout/oasis-iglesia"},
		{http.MethodPost, "/message/sendText/oasis-iglesia"},
		{http.MethodPost, "/message/sendMedia/oasis-iglesia"},
		{http.MethodPost, "/chat/sendPresence/oasis-iglesia"},
	}
	for i, e := range expect {
		assert.Equal(t, e.method, got[i].Method)
		assert.Equal(t, e.path, got[i].Path)
		assert.Equal(t, "secret-key", got[i].APIKey)
	}
	assert.Equal(t, "hola", got[3].Body["textMessage"].(map[string]interface{})["text"])
	assert.Equal(t, "image", got[4].Body["mediaMessage"].(map[string]interface{})["mediatype"])
	assert.Equal(t, float64(3000), got[5].Body["options"].(map[string]interface{})["delay"])
}

func TestClient_ProviderError(t *testing.T) {
	srv, _ := newProviderServer(t, http.StatusNotFound, `{"error":"instance not found"}`)
	_, err := testClient(srv.URL).ConnectionState(context.Background())
	require.Error(t, err)
	assert.True(t, IsProviderError(err))

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusNotFound, pe.StatusCode)
	assert.Contains(t, pe.Body, "instance not found")
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := testClient(base).Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.False(t, IsProviderError(err))
}

func TestClient_NonJSONBody(t *testing.T) {
	srv, _ := newProviderServer(t, http.StatusOK, `OK`)
	resp, err := testClient(srv.URL).Logout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "OK", resp["raw"])
}
