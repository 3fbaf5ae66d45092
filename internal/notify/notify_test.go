package notify

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/oasis-iglesia/oasis/internal/channel"
	"github.com/oasis-iglesia/oasis/internal/settings"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []*gomail.Message
	host string
	port int
	err  error
}

func (f *fakeMailer) DialAndSend(m ...*gomail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m...)
	return f.err
}

func (f *fakeMailer) dial(host string, port int, _, _ string) Mailer {
	f.mu.Lock()
	f.host, f.port = host, port
	f.mu.Unlock()
	return f
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestNotifier_SendsAlert(t *testing.T) {
	store := settings.NewMemoryStore(map[string]string{
		KeyEmail:      "pastor@example.org",
		KeySMTPHost:   "smtp.example.org",
		KeySMTPUser:   "alerts@example.org",
		KeyChurchName: "Iglesia Oasis",
	})
	mailer := &fakeMailer{}
	NewNotifier(store, mailer.dial).OnKillSwitch("number banned (401)")

	require.Equal(t, 1, mailer.count())
	assert.Equal(t, "smtp.example.org", mailer.host)
	assert.Equal(t, 587, mailer.port)

	msg := mailer.sent[0]
	assert.Equal(t, []string{"pastor@example.org"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"alerts@example.org"}, msg.GetHeader("From"))
	assert.Contains(t, msg.GetHeader("Subject")[0], "Iglesia Oasis")

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "number banned (401)")
}

func TestNotifier_SkipsWithoutSMTP(t *testing.T) {
	mailer := &fakeMailer{}
	NewNotifier(settings.NewMemoryStore(map[string]string{KeyEmail: "a@b.c"}), mailer.dial).
		OnKillSwitch("x")
	assert.Zero(t, mailer.count())
}

func TestNotifier_SendFailureIsLogged(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("535 auth failed")}
	store := settings.NewMemoryStore(map[string]string{
		KeyEmail:    "a@b.c",
		KeySMTPHost: "smtp",
		KeySMTPPort: "2525",
	})
	assert.NotPanics(t, func() { NewNotifier(store, mailer.dial).OnKillSwitch("x") })
	assert.Equal(t, 2525, mailer.port)
}

func TestNotifier_SubscribesToBus(t *testing.T) {
	store := settings.NewMemoryStore(map[string]string{
		KeyEmail:    "a@b.c",
		KeySMTPHost: "smtp",
	})
	mailer := &fakeMailer{}
	bus := EventBus.New()
	require.NoError(t, NewNotifier(store, mailer.dial).Subscribe(bus))

	bus.Publish(channel.TopicKillSwitch, "session closed unexpectedly (reason: 428)")
	bus.WaitAsync()
	assert.Eventually(t, func() bool { return mailer.count() == 1 }, time.Second, 10*time.Millisecond)
}
