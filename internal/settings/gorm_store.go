package settings

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/oasis-iglesia/oasis/internal/domain"
)

// GormStore keeps settings in the sys_config table, one category per store.
type GormStore struct {
	db       *gorm.DB
	category string
}

func NewGormStore(db *gorm.DB, category string) *GormStore {
	return &GormStore{db: db, category: category}
}

func (s *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	var row domain.SysConfig
	err := s.db.WithContext(ctx).
		Where("type = ? and name = ?", s.category, key).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, pkgerrors.Wrapf(err, "settings: get %s.%s", s.category, key)
	}
	return row.Value, true, nil
}

func (s *GormStore) Set(ctx context.Context, key, value string) error {
	db := s.db.WithContext(ctx)
	res := db.Model(&domain.SysConfig{}).
		Where("type = ? and name = ?", s.category, key).
		Updates(map[string]interface{}{"value": value, "updated_at": time.Now()})
	if res.Error != nil {
		return pkgerrors.Wrapf(res.Error, "settings: set %s.%s", s.category, key)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	now := time.Now()
	if err := db.Create(&domain.SysConfig{
		Type:      s.category,
		Name:      key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error; err != nil {
		return pkgerrors.Wrapf(err, "settings: create %s.%s", s.category, key)
	}
	return nil
}

func (s *GormStore) SetMany(ctx context.Context, values map[string]string) error {
	for k, v := range values {
		if err := s.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *GormStore) All(ctx context.Context) (map[string]string, error) {
	var rows []domain.SysConfig
	if err := s.db.WithContext(ctx).
		Where("type = ?", s.category).
		Order("sort asc").
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrapf(err, "settings: list %s", s.category)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Name] = r.Value
	}
	return out, nil
}
