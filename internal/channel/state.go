package channel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/oasis-iglesia/oasis/internal/domain"
	"github.com/oasis-iglesia/oasis/internal/settings"
)

const (
	reasonBanned = "number banned (401)"

	// status reason the provider uses for a requested, clean close
	normalCloseReason = 200
	bannedReason      = 401
)

// State is the persisted view the state machine works on.
type State struct {
	Status      Status
	KillSwitch  bool
	KillReason  string
	QRCode      string
	LastEventAt time.Time
}

// Event is a normalized webhook delivery.
type Event struct {
	Type string
	Data map[string]interface{}
	// At is the provider timestamp; zero when the delivery carried none.
	At time.Time
}

// WebhookEvent is the raw body posted by the provider.
type WebhookEvent struct {
	Event    string      `json:"event"`
	Instance string      `json:"instance,omitempty"`
	Data     interface{} `json:"data"`
	DateTime string      `json:"date_time,omitempty"`
}

// Rule identifies which transition rule handled an event, in priority order.
type Rule int

const (
	RuleBanned Rule = iota + 1
	RuleUnexpectedClose
	RuleOpen
	RuleConnecting
	RuleQRCode
	RuleStartup
	RuleIgnored
)

// Outcome describes what Transition did with an event.
type Outcome struct {
	Rule         Rule
	Applied      bool
	ConnState    string
	StatusReason string
	Note         string
}

type reasonData struct {
	StatusReason *int `mapstructure:"statusReason"`
}

type connectionData struct {
	State string `mapstructure:"state"`
}

type qrData struct {
	QRCode struct {
		Base64 string `mapstructure:"base64"`
	} `mapstructure:"qrcode"`
}

// NormalizeEventType maps "connection.update" style names to CONNECTION_UPDATE.
func NormalizeEventType(t string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(t), ".", "_"))
}

// Transition is the pure state function. Replaying an event yields the same
// result. Events older than the last applied one are dropped only when they
// could regress the status (connecting, QR); ban/close/open always apply.
func Transition(prev State, ev Event) (State, Outcome) {
	next := prev
	switch ev.Type {
	case EventConnectionUpdate:
		// statusReason is decoded on its own so a ban survives a malformed sibling field
		var r reasonData
		reasonErr := mapstructure.WeakDecode(ev.Data, &r)
		var d connectionData
		stateErr := mapstructure.WeakDecode(ev.Data, &d)
		out := Outcome{ConnState: d.State}
		if reasonErr == nil && r.StatusReason != nil {
			out.StatusReason = strconv.Itoa(*r.StatusReason)
		}
		if out.StatusReason == strconv.Itoa(bannedReason) {
			next.Status = StatusBannedOrDisconnected
			next.KillSwitch = true
			next.KillReason = reasonBanned
			out.Rule = RuleBanned
			out.Applied = true
			return stamp(next, ev), out
		}
		if err := errors.Join(reasonErr, stateErr); err != nil {
			return prev, ignored((&MalformedWebhookError{Event: ev.Type, Detail: err.Error()}).Error())
		}
		switch {
		case d.State == "close" && (r.StatusReason == nil || *r.StatusReason != normalCloseReason):
			reason := "unknown"
			if r.StatusReason != nil {
				reason = out.StatusReason
			}
			next.Status = StatusBannedOrDisconnected
			next.KillSwitch = true
			next.KillReason = fmt.Sprintf("session closed unexpectedly (reason: %s)", reason)
			out.Rule = RuleUnexpectedClose
		case d.State == "open":
			next.Status = StatusConnected
			next.KillSwitch = false
			next.KillReason = ""
			next.QRCode = ""
			out.Rule = RuleOpen
		case d.State == "connecting":
			out.Rule = RuleConnecting
			if isStale(prev, ev) {
				out.Note = "stale event dropped"
				return prev, out
			}
			next.Status = StatusConnecting
		default:
			out.Rule = RuleIgnored
			out.Note = fmt.Sprintf("unhandled connection state %q", d.State)
			return prev, out
		}
		out.Applied = true
		return stamp(next, ev), out

	case EventQRCodeUpdated:
		var d qrData
		if err := mapstructure.WeakDecode(ev.Data, &d); err != nil || d.QRCode.Base64 == "" {
			return prev, ignored((&MalformedWebhookError{Event: ev.Type, Detail: "missing qrcode.base64"}).Error())
		}
		out := Outcome{Rule: RuleQRCode}
		if isStale(prev, ev) {
			out.Note = "stale event dropped"
			return prev, out
		}
		next.Status = StatusQRPending
		next.QRCode = d.QRCode.Base64
		out.Applied = true
		return stamp(next, ev), out

	case EventApplicationStartup:
		return prev, Outcome{Rule: RuleStartup, Note: "instance started"}
	}
	return prev, ignored("unrecognized event")
}

func ignored(note string) Outcome {
	return Outcome{Rule: RuleIgnored, Note: note}
}

func isStale(prev State, ev Event) bool {
	return !ev.At.IsZero() && !prev.LastEventAt.IsZero() && ev.At.Before(prev.LastEventAt)
}

func stamp(s State, ev Event) State {
	if ev.At.After(s.LastEventAt) {
		s.LastEventAt = ev.At
	}
	return s
}

// Publisher is the subset of the event bus the state machine needs.
type Publisher interface {
	Publish(topic string, args ...interface{})
}

// EventRecorder stores the audit trail of webhook deliveries.
type EventRecorder interface {
	Record(ctx context.Context, ev *domain.ChannelEvent) error
}

// StateMachine applies webhook events to the persisted connection state.
// There is no locking: concurrent deliveries race and the last write wins.
type StateMachine struct {
	store    settings.Store
	recorder EventRecorder
	bus      Publisher
	// audit budget for deliveries that do not touch the connection state
	ignoredBudget *rate.Limiter
}

func NewStateMachine(store settings.Store, recorder EventRecorder, bus Publisher) *StateMachine {
	return &StateMachine{store: store, recorder: recorder, bus: bus}
}

// LimitIgnoredAudit caps how many ignored deliveries per second reach the
// recorder. State-changing events are always processed and recorded.
func (m *StateMachine) LimitIgnoredAudit(perSecond float64, burst int) {
	if perSecond <= 0 {
		m.ignoredBudget = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	m.ignoredBudget = rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (m *StateMachine) withinBudget(out Outcome) bool {
	if out.Rule != RuleIgnored || m.ignoredBudget == nil {
		return true
	}
	return m.ignoredBudget.Allow()
}

// LoadState reads the persisted state; missing keys take their defaults.
func LoadState(ctx context.Context, store settings.Store) (State, error) {
	all, err := store.All(ctx)
	if err != nil {
		return State{Status: StatusUnknown}, err
	}
	s := State{
		Status:     Status(all[KeyStatus]),
		KillSwitch: cast.ToBool(all[KeyKillSwitch]),
		KillReason: all[KeyKillReason],
		QRCode:     all[KeyQRCode],
	}
	if s.Status == "" {
		s.Status = StatusUnknown
	}
	if v := all[KeyLastEventAt]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			s.LastEventAt = t
		}
	}
	return s, nil
}

func diffState(prev, next State) map[string]string {
	changes := map[string]string{}
	if prev.Status != next.Status {
		changes[KeyStatus] = string(next.Status)
	}
	if prev.KillSwitch != next.KillSwitch {
		changes[KeyKillSwitch] = boolFlag(next.KillSwitch)
	}
	if prev.KillReason != next.KillReason {
		changes[KeyKillReason] = next.KillReason
	}
	if prev.QRCode != next.QRCode {
		changes[KeyQRCode] = next.QRCode
	}
	if !prev.LastEventAt.Equal(next.LastEventAt) {
		changes[KeyLastEventAt] = next.LastEventAt.UTC().Format(time.RFC3339Nano)
	}
	return changes
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// ToEvent normalizes a raw delivery. It never fails: a non-object data field
// becomes an empty map and an unparseable timestamp is ignored.
func (w WebhookEvent) ToEvent() Event {
	ev := Event{Type: NormalizeEventType(w.Event)}
	if m, ok := w.Data.(map[string]interface{}); ok {
		ev.Data = m
	} else {
		ev.Data = map[string]interface{}{}
	}
	if w.DateTime != "" {
		if t, err := dateparse.ParseAny(w.DateTime); err == nil {
			ev.At = t
		}
	}
	return ev
}

// ProcessEvent applies one delivery. It never returns an error: malformed or
// unknown events are logged and discarded, store failures are logged.
func (m *StateMachine) ProcessEvent(ctx context.Context, raw WebhookEvent) Outcome {
	ev := raw.ToEvent()
	log := zap.L().With(zap.String("event", ev.Type))

	prev, err := LoadState(ctx, m.store)
	if err != nil {
		log.Error("channel: load state failed", zap.Error(err))
	}
	next, out := Transition(prev, ev)

	switch {
	case out.Rule == RuleIgnored:
		log.Info("channel: webhook discarded", zap.String("note", out.Note))
	case out.Rule == RuleStartup:
		log.Info("channel: instance started")
	case !out.Applied:
		log.Info("channel: webhook not applied", zap.String("note", out.Note))
	}

	if changes := diffState(prev, next); len(changes) > 0 {
		if err := m.store.SetMany(ctx, changes); err != nil {
			log.Error("channel: persist state failed", zap.Error(err))
		}
	}

	if next.KillSwitch && (!prev.KillSwitch || prev.KillReason != next.KillReason) {
		log.Error("channel: kill switch activated", zap.String("reason", next.KillReason))
		m.publish(TopicKillSwitch, next.KillReason)
	}
	if prev.Status != next.Status {
		log.Info("channel: status changed",
			zap.String("from", string(prev.Status)),
			zap.String("to", string(next.Status)))
		m.publish(TopicStatus, prev.Status, next.Status)
	}

	if m.recorder == nil {
		return out
	}
	if !m.withinBudget(out) {
		log.Debug("channel: ignored event over audit budget, not recorded")
		return out
	}
	rec := &domain.ChannelEvent{
		Event:        ev.Type,
		State:        out.ConnState,
		StatusReason: out.StatusReason,
		Status:       string(next.Status),
		KillSwitch:   next.KillSwitch,
		Applied:      out.Applied,
		Note:         out.Note,
		CreatedAt:    time.Now(),
	}
	if err := m.recorder.Record(ctx, rec); err != nil {
		log.Warn("channel: record event failed", zap.Error(err))
	}
	return out
}

func (m *StateMachine) publish(topic string, args ...interface{}) {
	if m.bus != nil {
		m.bus.Publish(topic, args...)
	}
}
