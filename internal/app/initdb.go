package app

import (
	"context"
	_ "embed"
	"strings"

	"go.uber.org/zap"
)

//go:embed config_schemas.json
var configSchemasData []byte

// ConfigSchema describes one runtime setting and its default.
type ConfigSchema struct {
	Key         string `json:"key"` // category.name
	Type        string `json:"type"`
	Default     string `json:"default"`
	Description string `json:"description"`
}

type ConfigSchemasJSON struct {
	Schemas []ConfigSchema `json:"schemas"`
}

// LoadConfigSchemas parses the embedded settings definitions.
func LoadConfigSchemas() ([]ConfigSchema, error) {
	var data ConfigSchemasJSON
	if err := json.Unmarshal(configSchemasData, &data); err != nil {
		return nil, err
	}
	return data.Schemas, nil
}

func (a *Application) checkSettings() {
	schemas, err := LoadConfigSchemas()
	if err != nil {
		zap.L().Error("failed to load config schemas from JSON", zap.Error(err))
		return
	}
	ctx := context.Background()

	// Iterate over all configuration definitions, initializing missing entries
	for _, schema := range schemas {
		parts := strings.SplitN(schema.Key, ".", 2)
		if len(parts) != 2 {
			zap.L().Warn("invalid config key format", zap.String("key", schema.Key))
			continue
		}
		category, name := parts[0], parts[1]

		store, err := a.SettingsStore(category)
		if err != nil {
			zap.L().Error("settings store unavailable", zap.String("category", category), zap.Error(err))
			continue
		}
		_, ok, err := store.Get(ctx, name)
		if err != nil {
			zap.L().Error("failed to read config", zap.String("key", schema.Key), zap.Error(err))
			continue
		}
		if ok {
			continue
		}
		if err := store.Set(ctx, name, schema.Default); err != nil {
			zap.L().Error("failed to initialize config", zap.String("key", schema.Key), zap.Error(err))
			continue
		}
		zap.L().Info("initialized config",
			zap.String("key", schema.Key),
			zap.String("default", schema.Default))
	}
}
