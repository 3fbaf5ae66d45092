package channel

import (
	"context"
	"strings"

	"github.com/oasis-iglesia/oasis/internal/settings"
)

// Config holds the provider credentials resolved for one operation.
type Config struct {
	BaseURL      string
	APIKey       string
	InstanceName string
	AppURL       string
}

// WebhookURL is the address the provider should post events to.
func (c Config) WebhookURL() string {
	return strings.TrimRight(c.AppURL, "/") + "/api/v1/channel/webhook"
}

// ConfigProvider resolves Config from the settings store on every call.
// Nothing is cached: an admin edit takes effect on the next operation.
type ConfigProvider interface {
	Resolve(ctx context.Context) (Config, error)
}

type storeConfigProvider struct {
	store settings.Store
}

func NewConfigProvider(store settings.Store) ConfigProvider {
	return &storeConfigProvider{store: store}
}

func (p *storeConfigProvider) Resolve(ctx context.Context) (Config, error) {
	all, err := p.store.All(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		BaseURL:      strings.TrimRight(strings.TrimSpace(all[KeyBaseURL]), "/"),
		APIKey:       strings.TrimSpace(all[KeyAPIKey]),
		InstanceName: strings.TrimSpace(all[KeyInstanceName]),
		AppURL:       strings.TrimSpace(all[KeyAppURL]),
	}
	if cfg.InstanceName == "" {
		cfg.InstanceName = DefaultInstanceName
	}
	var missing []string
	if cfg.BaseURL == "" {
		missing = append(missing, KeyBaseURL)
	}
	if cfg.APIKey == "" {
		missing = append(missing, KeyAPIKey)
	}
	if len(missing) > 0 {
		return cfg, &ConfigurationError{Missing: missing}
	}
	return cfg, nil
}
