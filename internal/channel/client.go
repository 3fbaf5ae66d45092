package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/guonaihong/gout"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTimeout applies to every provider call.
const DefaultTimeout = 30 * time.Second

// Anti-detection instance profile. Not caller-configurable.
const (
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	rejectCallMessage = "📵 Hola, no podemos atender llamadas por este número. Por favor escríbenos."
)

// WebhookEvents are subscribed on instance creation.
var WebhookEvents = []string{
	EventApplicationStartup,
	EventQRCodeUpdated,
	EventMessagesSet,
	EventMessagesUpsert,
	EventConnectionUpdate,
}

// Response is the provider's JSON answer, passed through verbatim.
type Response map[string]interface{}

type SendOptions struct {
	Delay    int    `json:"delay"` // provider-side delay, ms
	Presence string `json:"presence,omitempty"`
}

type TextMessage struct {
	Text string `json:"text"`
}

type SendTextRequest struct {
	Number      string      `json:"number"`
	Options     SendOptions `json:"options"`
	TextMessage TextMessage `json:"textMessage"`
}

type MediaMessage struct {
	MediaType string `json:"mediatype"`
	Media     string `json:"media"`
	FileName  string `json:"fileName,omitempty"`
	Caption   string `json:"caption"`
}

type SendMediaRequest struct {
	Number       string       `json:"number"`
	Options      SendOptions  `json:"options"`
	MediaMessage MediaMessage `json:"mediaMessage"`
}

type PresenceOptions struct {
	Presence string `json:"presence"`
	Delay    int    `json:"delay"` // ms
}

type PresenceRequest struct {
	Number  string          `json:"number"`
	Options PresenceOptions `json:"options"`
}

// API is the provider REST surface consumed by the channel.
type API interface {
	// CreateInstance registers the instance. extra may add provider fields;
	// the anti-detection profile always overrides them.
	CreateInstance(ctx context.Context, webhookURL string, extra map[string]interface{}) (Response, error)
	ConnectionState(ctx context.Context) (Response, error)
	// Connect starts pairing and returns the current QR payload.
	Connect(ctx context.Context) (Response, error)
	Logout(ctx context.Context) (Response, error)
	SendText(ctx context.Context, req SendTextRequest) (Response, error)
	SendMedia(ctx context.Context, req SendMediaRequest) (Response, error)
	SendPresence(ctx context.Context, req PresenceRequest) error
}

// ClientFactory builds an API bound to one resolved Config.
type ClientFactory func(cfg Config) API

// NewClientFactory returns a factory producing HTTP clients with the given timeout.
func NewClientFactory(timeout time.Duration) ClientFactory {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}
	return func(cfg Config) API {
		return &Client{cfg: cfg, http: httpClient, timeout: timeout}
	}
}

// Client talks to the provider over HTTP/JSON.
type Client struct {
	cfg     Config
	http    *http.Client
	timeout time.Duration
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{cfg: cfg, http: httpClient, timeout: DefaultTimeout}
}

// CreateInstancePayload builds the instance creation body.
func CreateInstancePayload(instanceName, webhookURL string, extra map[string]interface{}) map[string]interface{} {
	payload := make(map[string]interface{}, len(extra)+12)
	for k, v := range extra {
		payload[k] = v
	}
	payload["instanceName"] = instanceName
	payload["token"] = ""
	payload["qrcode"] = true
	payload["browserAgent"] = map[string]interface{}{
		"browser":  "Chrome",
		"version":  "122.0.0.0",
		"platform": "Windows",
	}
	payload["user_agent"] = BrowserUserAgent
	payload["reject_call"] = true
	payload["msg_call"] = rejectCallMessage
	payload["groups_ignore"] = true
	payload["always_online"] = false
	payload["read_messages"] = false
	payload["read_status"] = false
	payload["webhook"] = map[string]interface{}{
		"url":     webhookURL,
		"enabled": true,
		"events":  WebhookEvents,
	}
	return payload
}

func (c *Client) CreateInstance(ctx context.Context, webhookURL string, extra map[string]interface{}) (Response, error) {
	return c.do(ctx, http.MethodPost, "/instance/create", CreateInstancePayload(c.cfg.InstanceName, webhookURL, extra))
}

func (c *Client) ConnectionState(ctx context.Context) (Response, error) {
	return c.do(ctx, http.MethodGet, "/instance/connectionState/"+c.instance(), nil)
}

func (c *Client) Connect(ctx context.Context) (Response, error) {
	return c.do(ctx, http.MethodGet, "/instance/connect/"+c.instance(), nil)
}

func (c *Client) Logout(ctx context.Context) (Response, error) {
	return c.do(ctx, http.MethodDelete, "/instance/logout/"+c.instance(), nil)
}

func (c *Client) SendText(ctx context.Context, req SendTextRequest) (Response, error) {
	return c.do(ctx, http.MethodPost, "/message/sendText/"+c.instance(), req)
}

func (c *Client) SendMedia(ctx context.Context, req SendMediaRequest) (Response, error) {
	return c.do(ctx, http.MethodPost, "/message/sendMedia/"+c.instance(), req)
}

func (c *Client) SendPresence(ctx context.Context, req PresenceRequest) error {
	_, err := c.do(ctx, http.MethodPost, "/chat/sendPresence/"+c.instance(), req)
	return err
}

func (c *Client) instance() string {
	return url.PathEscape(c.cfg.InstanceName)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (Response, error) {
	op := method + " " + path
	target := c.cfg.BaseURL + path

	g := gout.New(c.http)
	var df = g.GET(target)
	switch method {
	case http.MethodPost:
		df = g.POST(target)
	case http.MethodDelete:
		df = g.DELETE(target)
	}

	df = df.WithContext(ctx).
		SetTimeout(c.timeout).
		SetHeader(gout.H{
			"apikey":       c.cfg.APIKey,
			"Content-Type": "application/json",
		})
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		df = df.SetBody(raw)
	}

	var (
		respBody string
		code     int
	)
	if err := df.BindBody(&respBody).Code(&code).Do(); err != nil {
		zap.L().Warn("channel: provider unreachable", zap.String("op", op), zap.Error(err))
		return nil, &TransportError{Op: op, Err: err}
	}
	if code < 200 || code > 299 {
		zap.L().Error("channel: provider error",
			zap.String("op", op),
			zap.Int("status", code),
			zap.String("body", respBody))
		return nil, &ProviderError{Op: op, StatusCode: code, Body: respBody}
	}

	out := Response{}
	if len(respBody) == 0 {
		return out, nil
	}
	if err := json.Unmarshal([]byte(respBody), &out); err != nil {
		// Non-object JSON (or plain text) is still returned to the caller.
		return Response{"raw": respBody}, nil
	}
	return out, nil
}
