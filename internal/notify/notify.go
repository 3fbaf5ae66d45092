// Package notify e-mails the church administrator when the channel kill
// switch trips.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/oasis-iglesia/oasis/internal/channel"
	"github.com/oasis-iglesia/oasis/internal/settings"
)

// Settings keys in the "notify" category.
const (
	KeyEmail      = "notify_email"
	KeySMTPHost   = "smtp_host"
	KeySMTPPort   = "smtp_port"
	KeySMTPUser   = "smtp_user"
	KeySMTPPass   = "smtp_pass"
	KeySMTPFrom   = "smtp_from"
	KeyChurchName = "church_name"
)

// Mailer sends composed messages.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// DialFunc builds a Mailer for one delivery.
type DialFunc func(host string, port int, user, pass string) Mailer

func defaultDial(host string, port int, user, pass string) Mailer {
	return gomail.NewDialer(host, port, user, pass)
}

type Notifier struct {
	store settings.Store
	dial  DialFunc
}

func NewNotifier(store settings.Store, dial DialFunc) *Notifier {
	if dial == nil {
		dial = defaultDial
	}
	return &Notifier{store: store, dial: dial}
}

// Subscribe registers the kill switch handler on the bus. Delivery is
// asynchronous so a slow SMTP server never delays webhook processing.
func (n *Notifier) Subscribe(bus EventBus.Bus) error {
	return bus.SubscribeAsync(channel.TopicKillSwitch, n.OnKillSwitch, false)
}

// OnKillSwitch sends the alert; missing SMTP settings only skip it.
func (n *Notifier) OnKillSwitch(reason string) {
	if err := n.send(context.Background(), reason); err != nil {
		zap.L().Error("notify: kill switch alert failed", zap.Error(err))
	}
}

func (n *Notifier) send(ctx context.Context, reason string) error {
	all, err := n.store.All(ctx)
	if err != nil {
		return err
	}
	to := strings.TrimSpace(all[KeyEmail])
	host := strings.TrimSpace(all[KeySMTPHost])
	if to == "" || host == "" {
		zap.L().Info("notify: smtp not configured, alert skipped", zap.String("reason", reason))
		return nil
	}
	port := cast.ToInt(all[KeySMTPPort])
	if port == 0 {
		port = 587
	}
	from := strings.TrimSpace(all[KeySMTPFrom])
	if from == "" {
		from = all[KeySMTPUser]
	}
	church := all[KeyChurchName]
	if church == "" {
		church = "Oasis"
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("[%s] WhatsApp channel stopped", church))
	m.SetBody("text/plain", fmt.Sprintf(
		"The outbound WhatsApp channel was blocked at %s.\n\nReason: %s\n\n"+
			"No messages will be sent until an administrator reconnects the number and resets the kill switch.",
		time.Now().Format(time.RFC1123), reason))

	if err := n.dial(host, port, all[KeySMTPUser], all[KeySMTPPass]).DialAndSend(m); err != nil {
		return err
	}
	zap.L().Info("notify: kill switch alert sent", zap.String("to", to))
	return nil
}
