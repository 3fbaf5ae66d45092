package channel

// Settings keys in the "whatsapp" category.
const (
	KeyBaseURL      = "evolution_url"
	KeyAPIKey       = "evolution_key"
	KeyInstanceName = "evolution_instance"
	KeyAppURL       = "app_url"

	KeyStatus      = "wa_status"
	KeyKillSwitch  = "wa_kill_switch"
	KeyKillReason  = "wa_kill_reason"
	KeyQRCode      = "wa_qr_code"
	KeyLastEventAt = "wa_last_event_at"

	KeyLiveState     = "wa_live_state"
	KeyLiveCheckedAt = "wa_live_checked_at"
)

const DefaultInstanceName = "oasis-iglesia"

// Status is the persisted connection status of the channel instance.
type Status string

const (
	StatusUnknown              Status = "unknown"
	StatusCreated              Status = "created"
	StatusQRPending            Status = "qr_pending"
	StatusConnecting           Status = "connecting"
	StatusConnected            Status = "connected"
	StatusBannedOrDisconnected Status = "banned_or_disconnected"
	StatusDisconnected         Status = "disconnected"
)

// LiveStateUnreachable is stored when the provider cannot be queried.
const LiveStateUnreachable = "api_unreachable"

// Webhook event types.
const (
	EventConnectionUpdate   = "CONNECTION_UPDATE"
	EventQRCodeUpdated      = "QRCODE_UPDATED"
	EventApplicationStartup = "APPLICATION_STARTUP"
	EventMessagesSet        = "MESSAGES_SET"
	EventMessagesUpsert     = "MESSAGES_UPSERT"
)

// Event bus topics.
const (
	TopicKillSwitch = "channel:kill_switch" // args: reason string
	TopicStatus     = "channel:status"      // args: old, new Status
)
