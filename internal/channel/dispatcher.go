package channel

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oasis-iglesia/oasis/pkg/metrics"
)

// MessageKind selects payload construction and humanization defaults.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindDocument MessageKind = "document"
)

const (
	PresenceComposing = "composing"
	PresenceRecording = "recording"
)

const DefaultDocumentName = "documento.pdf"

// Metric names.
const (
	MetricSendOK      = "channel_send_ok"
	MetricSendFailed  = "channel_send_failed"
	MetricSendBlocked = "channel_send_blocked"
)

var (
	ErrInvalidRecipient = errors.New("recipient has no digits")
	ErrDispatchAborted  = errors.New("dispatch aborted")
)

type kindProfile struct {
	minDelay      time.Duration
	maxDelay      time.Duration
	presence      string
	window        time.Duration
	providerDelay int // ms
}

var profiles = map[MessageKind]kindProfile{
	KindText:     {15 * time.Second, 45 * time.Second, PresenceComposing, 3 * time.Second, 1500},
	KindDocument: {10 * time.Second, 30 * time.Second, PresenceRecording, 2 * time.Second, 1200},
	KindImage:    {5 * time.Second, 20 * time.Second, PresenceComposing, 2 * time.Second, 1000},
}

// OutboundMessage lives only for the duration of one dispatch.
type OutboundMessage struct {
	To       string
	Kind     MessageKind
	Text     string
	MediaURL string
	Caption  string
	FileName string

	MinDelay       time.Duration
	MaxDelay       time.Duration
	Presence       string
	PresenceWindow time.Duration
	ProviderDelay  int
}

// SendOption overrides per-kind defaults.
type SendOption func(*OutboundMessage)

// WithDelay sets the inclusive bounds of the random pre-send delay.
func WithDelay(lo, hi time.Duration) SendOption {
	return func(m *OutboundMessage) {
		m.MinDelay, m.MaxDelay = lo, hi
	}
}

// WithPresenceWindow sets how long the presence signal is held before sending.
func WithPresenceWindow(d time.Duration) SendOption {
	return func(m *OutboundMessage) {
		m.PresenceWindow = d
	}
}

func newMessage(kind MessageKind, to string, opts []SendOption) OutboundMessage {
	p := profiles[kind]
	m := OutboundMessage{
		To:             to,
		Kind:           kind,
		MinDelay:       p.minDelay,
		MaxDelay:       p.maxDelay,
		Presence:       p.presence,
		PresenceWindow: p.window,
		ProviderDelay:  p.providerDelay,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Guard is the kill switch check consulted before network calls.
type Guard interface {
	CheckAllowed(ctx context.Context) error
}

// Dispatcher sends messages with human-like cadence:
// delay -> presence -> send, exactly one attempt, no retry.
type Dispatcher struct {
	guard   Guard
	configs ConfigProvider
	clients ClientFactory
	sched   Scheduler
	int64n  func(n int64) int64
}

func NewDispatcher(guard Guard, configs ConfigProvider, clients ClientFactory, sched Scheduler) *Dispatcher {
	return &Dispatcher{
		guard:   guard,
		configs: configs,
		clients: clients,
		sched:   sched,
		int64n:  rand.Int63n,
	}
}

func (d *Dispatcher) SendText(ctx context.Context, to, text string, opts ...SendOption) (Response, error) {
	m := newMessage(KindText, to, opts)
	m.Text = text
	return d.Dispatch(ctx, m)
}

func (d *Dispatcher) SendImage(ctx context.Context, to, imageURL, caption string, opts ...SendOption) (Response, error) {
	m := newMessage(KindImage, to, opts)
	m.MediaURL, m.Caption = imageURL, caption
	return d.Dispatch(ctx, m)
}

func (d *Dispatcher) SendDocument(ctx context.Context, to, fileURL, caption, fileName string, opts ...SendOption) (Response, error) {
	m := newMessage(KindDocument, to, opts)
	if strings.TrimSpace(fileName) == "" {
		fileName = DefaultDocumentName
	}
	m.MediaURL, m.Caption, m.FileName = fileURL, caption, fileName
	return d.Dispatch(ctx, m)
}

// Dispatch runs the full sequence and waits for its result.
func (d *Dispatcher) Dispatch(ctx context.Context, m OutboundMessage) (Response, error) {
	type result struct {
		resp Response
		err  error
	}
	done := make(chan result, 1)
	d.Enqueue(ctx, m, func(resp Response, err error) {
		done <- result{resp, err}
	})
	r := <-done
	return r.resp, r.err
}

// Enqueue starts the sequence and returns immediately; onDone is called
// exactly once. Local refusals (kill switch, configuration) call onDone
// before Enqueue returns. Caller cancellation does not stop a started send.
func (d *Dispatcher) Enqueue(ctx context.Context, m OutboundMessage, onDone func(Response, error)) {
	log := zap.L().With(
		zap.String("dispatch_id", uuid.NewString()),
		zap.String("kind", string(m.Kind)),
		zap.String("to", m.To))

	var once sync.Once
	finish := func(resp Response, err error) {
		once.Do(func() { d.complete(log, onDone, resp, err) })
	}
	// a panicking stage still completes the dispatch
	guarded := func(fn func()) func() {
		return func() {
			defer func() {
				if p := recover(); p != nil {
					finish(nil, fmt.Errorf("%w: %v", ErrDispatchAborted, p))
				}
			}()
			fn()
		}
	}

	if err := d.guard.CheckAllowed(ctx); err != nil {
		finish(nil, err)
		return
	}
	cfg, err := d.configs.Resolve(ctx)
	if err != nil {
		finish(nil, err)
		return
	}
	number := NormalizeNumber(m.To)
	if number == AddressSuffix {
		finish(nil, ErrInvalidRecipient)
		return
	}
	api := d.clients(cfg)
	ctx = context.WithoutCancel(ctx)

	delay := d.sampleDelay(m.MinDelay, m.MaxDelay)
	log.Info("channel: waiting before send", zap.Duration("delay", delay))

	d.sched.After(delay, guarded(func() {
		if err := d.guard.CheckAllowed(ctx); err != nil {
			finish(nil, err)
			return
		}
		d.signalPresence(ctx, api, number, m, log)
		d.sched.After(m.PresenceWindow, guarded(func() {
			if err := d.guard.CheckAllowed(ctx); err != nil {
				finish(nil, err)
				return
			}
			finish(d.send(ctx, api, number, m))
		}))
	}))
}

func (d *Dispatcher) complete(log *zap.Logger, onDone func(Response, error), resp Response, err error) {
	switch {
	case err == nil:
		metrics.Incr(MetricSendOK)
		log.Info("channel: message sent")
	case IsKillSwitch(err):
		metrics.Incr(MetricSendBlocked)
		log.Warn("channel: send blocked", zap.Error(err))
	default:
		metrics.Incr(MetricSendFailed)
		log.Error("channel: send failed", zap.Error(err))
	}
	onDone(resp, err)
}

func (d *Dispatcher) signalPresence(ctx context.Context, api API, number string, m OutboundMessage, log *zap.Logger) {
	if m.Presence == "" {
		return
	}
	err := api.SendPresence(ctx, PresenceRequest{
		Number: number,
		Options: PresenceOptions{
			Presence: m.Presence,
			Delay:    int(m.PresenceWindow / time.Millisecond),
		},
	})
	if err != nil {
		log.Warn("channel: presence signal failed, continuing", zap.Error(err))
	}
}

func (d *Dispatcher) send(ctx context.Context, api API, number string, m OutboundMessage) (Response, error) {
	switch m.Kind {
	case KindImage, KindDocument:
		return api.SendMedia(ctx, SendMediaRequest{
			Number:  number,
			Options: SendOptions{Delay: m.ProviderDelay},
			MediaMessage: MediaMessage{
				MediaType: string(m.Kind),
				Media:     m.MediaURL,
				FileName:  m.FileName,
				Caption:   m.Caption,
			},
		})
	default:
		return api.SendText(ctx, SendTextRequest{
			Number:      number,
			Options:     SendOptions{Delay: m.ProviderDelay, Presence: m.Presence},
			TextMessage: TextMessage{Text: m.Text},
		})
	}
}

// sampleDelay draws uniformly from [lo, hi] at millisecond resolution.
func (d *Dispatcher) sampleDelay(lo, hi time.Duration) time.Duration {
	if lo < 0 {
		lo = 0
	}
	if hi < 0 {
		hi = 0
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	span := int64((hi - lo) / time.Millisecond)
	return lo + time.Duration(d.int64n(span+1))*time.Millisecond
}
