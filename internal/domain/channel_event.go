package domain

import "time"

// ChannelEvent is the audit row for a webhook delivery from the messaging
// provider. Ignored deliveries are sampled under channel.ignored_audit_rate.
type ChannelEvent struct {
	ID           int64     `json:"id,string" gorm:"primaryKey" csv:"id"`
	Event        string    `json:"event" gorm:"index" csv:"event"`
	State        string    `json:"state" csv:"state"`
	StatusReason string    `json:"status_reason" csv:"status_reason"`
	Status       string    `json:"status" csv:"status"` // connection status after processing
	KillSwitch   bool      `json:"kill_switch" csv:"kill_switch"`
	Applied      bool      `json:"applied" csv:"applied"`
	Note         string    `json:"note" csv:"note"`
	CreatedAt    time.Time `json:"created_at" gorm:"index" csv:"created_at"`
}

func (ChannelEvent) TableName() string {
	return "channel_event"
}
