package channel

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/oasis-iglesia/oasis/internal/domain"
)

// GormEventRecorder persists ChannelEvent rows.
type GormEventRecorder struct {
	db   *gorm.DB
	node *snowflake.Node
}

func NewGormEventRecorder(db *gorm.DB, node *snowflake.Node) *GormEventRecorder {
	return &GormEventRecorder{db: db, node: node}
}

func (r *GormEventRecorder) Record(ctx context.Context, ev *domain.ChannelEvent) error {
	if ev.ID == 0 {
		ev.ID = r.node.Generate().Int64()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(ev).Error
}

// List returns events newest first with the total count.
func (r *GormEventRecorder) List(ctx context.Context, event string, page, pageSize int) ([]domain.ChannelEvent, int64, error) {
	db := r.db.WithContext(ctx).Model(&domain.ChannelEvent{})
	if event != "" {
		db = db.Where("event = ?", NormalizeEventType(event))
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []domain.ChannelEvent
	if err := db.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// DeleteOlderThan purges events older than the given number of days.
func (r *GormEventRecorder) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("created_at < ?", time.Now().AddDate(0, 0, -days)).
		Delete(&domain.ChannelEvent{})
	return res.RowsAffected, res.Error
}
