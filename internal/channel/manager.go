package channel

import (
	"context"

	"go.uber.org/zap"

	"github.com/oasis-iglesia/oasis/internal/settings"
)

// Manager owns the lifecycle of the single provider instance: create,
// connect (QR), monitor, disconnect, and the send paths.
type Manager struct {
	store      settings.Store
	configs    ConfigProvider
	clients    ClientFactory
	machine    *StateMachine
	gate       *Gate
	dispatcher *Dispatcher
}

func NewManager(store settings.Store, recorder EventRecorder, bus Publisher, clients ClientFactory, sched Scheduler) *Manager {
	configs := NewConfigProvider(store)
	gate := NewGate(store)
	return &Manager{
		store:      store,
		configs:    configs,
		clients:    clients,
		machine:    NewStateMachine(store, recorder, bus),
		gate:       gate,
		dispatcher: NewDispatcher(gate, configs, clients, sched),
	}
}

func (m *Manager) Gate() *Gate                 { return m.gate }
func (m *Manager) Dispatcher() *Dispatcher     { return m.dispatcher }
func (m *Manager) StateMachine() *StateMachine { return m.machine }

// StatusReport is the admin view of the channel.
type StatusReport struct {
	KillSwitch    bool   `json:"kill_switch"`
	KillReason    string `json:"kill_reason"`
	Status        Status `json:"status"`
	LiveState     string `json:"live_state"`
	HasQR         bool   `json:"has_qr"`
	QRBase64      string `json:"qr_base64"`
	LiveCheckedAt string `json:"live_checked_at,omitempty"`
}

// Status combines the persisted state with a live provider query.
func (m *Manager) Status(ctx context.Context) (StatusReport, error) {
	st, err := LoadState(ctx, m.store)
	if err != nil {
		return StatusReport{}, err
	}
	checkedAt, _ := settings.GetString(ctx, m.store, KeyLiveCheckedAt, "")
	live, err := m.liveState(ctx)
	if err != nil {
		zap.L().Debug("channel: live state unavailable", zap.Error(err))
		live = LiveStateUnreachable
	}
	return StatusReport{
		KillSwitch:    st.KillSwitch,
		KillReason:    st.KillReason,
		Status:        st.Status,
		LiveState:     live,
		HasQR:         st.QRCode != "",
		QRBase64:      st.QRCode,
		LiveCheckedAt: checkedAt,
	}, nil
}

func (m *Manager) client(ctx context.Context) (API, Config, error) {
	cfg, err := m.configs.Resolve(ctx)
	if err != nil {
		return nil, cfg, err
	}
	return m.clients(cfg), cfg, nil
}

// CreateInstance registers the instance with the fixed anti-detection
// profile and marks the status as created.
func (m *Manager) CreateInstance(ctx context.Context) (Response, error) {
	api, cfg, err := m.client(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := api.CreateInstance(ctx, cfg.WebhookURL(), nil)
	if err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, KeyStatus, string(StatusCreated)); err != nil {
		return resp, err
	}
	zap.L().Info("channel: instance created", zap.String("instance", cfg.InstanceName))
	return resp, nil
}

// QRCode asks the provider to connect and returns its QR payload.
func (m *Manager) QRCode(ctx context.Context) (Response, error) {
	api, _, err := m.client(ctx)
	if err != nil {
		return nil, err
	}
	return api.Connect(ctx)
}

// Logout disconnects the instance and clears the stored QR.
func (m *Manager) Logout(ctx context.Context) (Response, error) {
	api, cfg, err := m.client(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := api.Logout(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.store.SetMany(ctx, map[string]string{
		KeyStatus: string(StatusDisconnected),
		KeyQRCode: "",
	}); err != nil {
		return resp, err
	}
	zap.L().Info("channel: instance logged out", zap.String("instance", cfg.InstanceName))
	return resp, nil
}

func (m *Manager) ResetKillSwitch(ctx context.Context) error {
	return m.gate.Reset(ctx)
}

// ProcessWebhook applies one provider event; see StateMachine.ProcessEvent.
func (m *Manager) ProcessWebhook(ctx context.Context, ev WebhookEvent) Outcome {
	return m.machine.ProcessEvent(ctx, ev)
}

// IsConnected reports whether the provider currently sees the session open.
func (m *Manager) IsConnected(ctx context.Context) bool {
	live, err := m.liveState(ctx)
	if err != nil {
		zap.L().Warn("channel: unable to check instance status", zap.Error(err))
		return false
	}
	return live == "open"
}

func (m *Manager) SendText(ctx context.Context, to, text string, opts ...SendOption) (Response, error) {
	return m.dispatcher.SendText(ctx, to, text, opts...)
}

func (m *Manager) SendImage(ctx context.Context, to, imageURL, caption string, opts ...SendOption) (Response, error) {
	return m.dispatcher.SendImage(ctx, to, imageURL, caption, opts...)
}

func (m *Manager) SendDocument(ctx context.Context, to, fileURL, caption, fileName string, opts ...SendOption) (Response, error) {
	return m.dispatcher.SendDocument(ctx, to, fileURL, caption, fileName, opts...)
}
