package channel

import (
	"context"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/oasis-iglesia/oasis/internal/settings"
)

// KillSwitchState is the persisted safety flag.
type KillSwitchState struct {
	Active bool   `json:"active"`
	Reason string `json:"reason"`
}

// Gate is consulted synchronously before every network call on a send path.
type Gate struct {
	store settings.Store
}

func NewGate(store settings.Store) *Gate {
	return &Gate{store: store}
}

// State reads the flag and reason.
func (g *Gate) State(ctx context.Context) (KillSwitchState, error) {
	all, err := g.store.All(ctx)
	if err != nil {
		return KillSwitchState{}, err
	}
	return KillSwitchState{
		Active: cast.ToBool(all[KeyKillSwitch]),
		Reason: all[KeyKillReason],
	}, nil
}

// CheckAllowed returns nil when sends may proceed and *KillSwitchError
// otherwise. An unreadable store blocks.
func (g *Gate) CheckAllowed(ctx context.Context) error {
	st, err := g.State(ctx)
	if err != nil {
		zap.L().Error("channel: kill switch state unreadable, blocking send", zap.Error(err))
		return &KillSwitchError{Reason: "kill switch state unavailable: " + err.Error()}
	}
	if st.Active {
		return &KillSwitchError{Reason: st.Reason}
	}
	return nil
}

// Reset clears flag and reason unconditionally. It does not check that the
// channel is healthy and leaves the connection status untouched.
func (g *Gate) Reset(ctx context.Context) error {
	if err := g.store.SetMany(ctx, map[string]string{
		KeyKillSwitch: "0",
		KeyKillReason: "",
	}); err != nil {
		return err
	}
	zap.L().Warn("channel: kill switch reset by admin")
	return nil
}
