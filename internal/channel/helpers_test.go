package channel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oasis-iglesia/oasis/internal/settings"
)

type apiCall struct {
	Method string
	Req    interface{}
}

// fakeAPI records calls in order and answers from canned fields.
type fakeAPI struct {
	mu          sync.Mutex
	calls       []apiCall
	presenceErr error
	sendErr     error
	sendPanic   interface{}
	state       Response
	stateErr    error
}

func (f *fakeAPI) record(method string, req interface{}) {
	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Req: req})
	f.mu.Unlock()
}

func (f *fakeAPI) Calls() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func (f *fakeAPI) CreateInstance(_ context.Context, webhookURL string, extra map[string]interface{}) (Response, error) {
	f.record("CreateInstance", webhookURL)
	return Response{"instance": map[string]interface{}{"status": "created"}}, nil
}

func (f *fakeAPI) ConnectionState(context.Context) (Response, error) {
	f.record("ConnectionState", nil)
	return f.state, f.stateErr
}

func (f *fakeAPI) Connect(context.Context) (Response, error) {
	f.record("Connect", nil)
	return Response{"base64": "data:image/png;base64,AAA"}, nil
}

func (f *fakeAPI) Logout(context.Context) (Response, error) {
	f.record("Logout", nil)
	return Response{"status": "SUCCESS"}, nil
}

func (f *fakeAPI) SendText(_ context.Context, req SendTextRequest) (Response, error) {
	f.record("SendText", req)
	if f.sendPanic != nil {
		panic(f.sendPanic)
	}
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return Response{"key": map[string]interface{}{"id": "MSG1"}}, nil
}

func (f *fakeAPI) SendMedia(_ context.Context, req SendMediaRequest) (Response, error) {
	f.record("SendMedia", req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return Response{"key": map[string]interface{}{"id": "MSG2"}}, nil
}

func (f *fakeAPI) SendPresence(_ context.Context, req PresenceRequest) error {
	f.record("SendPresence", req)
	return f.presenceErr
}

func (f *fakeAPI) factory() ClientFactory {
	return func(Config) API { return f }
}

// inlineScheduler runs continuations synchronously and records the delays.
type inlineScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	before func(step int)
}

func (s *inlineScheduler) After(d time.Duration, fn func()) {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	step := len(s.delays)
	s.mu.Unlock()
	if s.before != nil {
		s.before(step)
	}
	fn()
}

func (s *inlineScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

var errStoreDown = errors.New("store down")

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) { return "", false, errStoreDown }
func (brokenStore) Set(context.Context, string, string) error         { return errStoreDown }
func (brokenStore) SetMany(context.Context, map[string]string) error  { return errStoreDown }
func (brokenStore) All(context.Context) (map[string]string, error)    { return nil, errStoreDown }

var _ settings.Store = brokenStore{}

func configuredStore(extra map[string]string) *settings.MemoryStore {
	values := map[string]string{
		KeyBaseURL: "http://evolution.local:8080",
		KeyAPIKey:  "secret-key",
		KeyAppURL:  "https://oasis.example.org",
	}
	for k, v := range extra {
		values[k] = v
	}
	return settings.NewMemoryStore(values)
}

type published struct {
	Topic string
	Args  []interface{}
}

type fakeBus struct {
	mu     sync.Mutex
	events []published
}

func (b *fakeBus) Publish(topic string, args ...interface{}) {
	b.mu.Lock()
	b.events = append(b.events, published{Topic: topic, Args: args})
	b.mu.Unlock()
}

func (b *fakeBus) Topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Topic)
	}
	return out
}
