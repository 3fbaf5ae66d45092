package channel

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError is returned before any network call when credentials
// are missing from the settings store.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "channel not configured: missing " + strings.Join(e.Missing, ", ")
}

// TransportError wraps a failure to reach the provider (DNS, refused, timeout).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: provider unreachable: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError is a non-2xx answer from the provider.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s failed: %d %s", e.Op, e.StatusCode, e.Body)
}

// KillSwitchError means the send was refused locally; no network call was made.
type KillSwitchError struct {
	Reason string
}

func (e *KillSwitchError) Error() string {
	if e.Reason == "" {
		return "kill switch active"
	}
	return "kill switch active: " + e.Reason
}

// MalformedWebhookError describes a webhook event missing expected fields.
// It is only logged; webhooks are always acknowledged.
type MalformedWebhookError struct {
	Event  string
	Detail string
}

func (e *MalformedWebhookError) Error() string {
	return fmt.Sprintf("malformed webhook %s: %s", e.Event, e.Detail)
}

func IsKillSwitch(err error) bool {
	var target *KillSwitchError
	return errors.As(err, &target)
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsProviderError(err error) bool {
	var target *ProviderError
	return errors.As(err, &target)
}

func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}
