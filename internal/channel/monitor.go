package channel

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// liveState queries the provider for instance.state ("open", "close", ...).
func (m *Manager) liveState(ctx context.Context) (string, error) {
	api, _, err := m.client(ctx)
	if err != nil {
		return "", err
	}
	resp, err := api.ConnectionState(ctx)
	if err != nil {
		return "", err
	}
	if inst, ok := resp["instance"].(map[string]interface{}); ok {
		if state, ok := inst["state"].(string); ok && state != "" {
			return state, nil
		}
	}
	return string(StatusUnknown), nil
}

// RefreshLiveState polls the provider and records what it reports. It never
// touches the connection status or the kill switch: those follow webhooks.
func (m *Manager) RefreshLiveState(ctx context.Context) string {
	live, err := m.liveState(ctx)
	if err != nil {
		live = LiveStateUnreachable
	}
	if err := m.store.SetMany(ctx, map[string]string{
		KeyLiveState:     live,
		KeyLiveCheckedAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		zap.L().Warn("channel: persist live state failed", zap.Error(err))
	}
	st, _ := LoadState(ctx, m.store)
	if live == "open" && st.KillSwitch {
		zap.L().Warn("channel: provider reports open session while kill switch is active",
			zap.String("reason", st.KillReason))
	}
	return live
}
