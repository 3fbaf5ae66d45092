package app

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// ConfigManager reads and writes runtime settings by category.
// Nothing is cached; every read goes to the store.
type ConfigManager struct {
	app *Application
}

func NewConfigManager(app *Application) *ConfigManager {
	return &ConfigManager{app: app}
}

func (m *ConfigManager) get(category, key string) string {
	store, err := m.app.SettingsStore(category)
	if err != nil {
		zap.L().Error("settings store unavailable", zap.String("category", category), zap.Error(err))
		return ""
	}
	v, _, err := store.Get(context.Background(), key)
	if err != nil {
		zap.L().Error("settings read failed", zap.String("key", category+"."+key), zap.Error(err))
	}
	return v
}

func (m *ConfigManager) GetString(category, key string) string {
	return m.get(category, key)
}

func (m *ConfigManager) GetInt(category, key string) int {
	return cast.ToInt(m.get(category, key))
}

func (m *ConfigManager) GetInt64(category, key string) int64 {
	return cast.ToInt64(m.get(category, key))
}

func (m *ConfigManager) GetBool(category, key string) bool {
	return cast.ToBool(m.get(category, key))
}

// All returns every key of a category.
func (m *ConfigManager) All(ctx context.Context, category string) (map[string]string, error) {
	store, err := m.app.SettingsStore(category)
	if err != nil {
		return nil, err
	}
	return store.All(ctx)
}

// Set writes one value.
func (m *ConfigManager) Set(ctx context.Context, category, key, value string) error {
	store, err := m.app.SettingsStore(category)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, value)
}

// SaveAll writes "category.name" keyed values, stringifying with cast.
func (m *ConfigManager) SaveAll(values map[string]interface{}) error {
	grouped := map[string]map[string]string{}
	for k, v := range values {
		parts := strings.SplitN(k, ".", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return errors.Errorf("invalid settings key %q, want category.name", k)
		}
		if grouped[parts[0]] == nil {
			grouped[parts[0]] = map[string]string{}
		}
		grouped[parts[0]][parts[1]] = cast.ToString(v)
	}
	ctx := context.Background()
	for category, kv := range grouped {
		store, err := m.app.SettingsStore(category)
		if err != nil {
			return err
		}
		if err := store.SetMany(ctx, kv); err != nil {
			return errors.Wrapf(err, "save %s settings", category)
		}
	}
	return nil
}
