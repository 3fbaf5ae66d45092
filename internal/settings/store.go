// Package settings holds the key/value runtime settings store shared by the
// channel subsystem (credentials, connection status, kill switch, QR payload).
package settings

import "context"

// Store is a flat string key/value store scoped to one settings category.
// Implementations are safe for concurrent use but offer no multi-key
// transactions; callers read-modify-write without isolation.
type Store interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// SetMany writes all pairs; it is not atomic across keys.
	SetMany(ctx context.Context, values map[string]string) error
	All(ctx context.Context) (map[string]string, error)
}

// GetString returns the stored value or def when the key is missing or blank.
func GetString(ctx context.Context, s Store, key, def string) (string, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil {
		return def, err
	}
	if !ok || v == "" {
		return def, nil
	}
	return v, nil
}
