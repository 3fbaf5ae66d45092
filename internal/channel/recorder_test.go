package channel

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oasis-iglesia/oasis/internal/domain"
)

func newRecorderDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:recorder_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.ChannelEvent{}))
	return db
}

func TestGormEventRecorder(t *testing.T) {
	ctx := context.Background()
	db := newRecorderDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	rec := NewGormEventRecorder(db, node)

	old := &domain.ChannelEvent{Event: EventQRCodeUpdated, Applied: true, CreatedAt: time.Now().AddDate(0, 0, -40)}
	require.NoError(t, rec.Record(ctx, old))
	assert.NotZero(t, old.ID)

	for i := 0; i < 3; i++ {
		require.NoError(t, rec.Record(ctx, &domain.ChannelEvent{
			Event:        EventConnectionUpdate,
			State:        "close",
			StatusReason: "401",
			KillSwitch:   true,
			Applied:      true,
		}))
	}

	rows, total, err := rec.List(ctx, "", 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, rows, 2)
	assert.Equal(t, EventConnectionUpdate, rows[0].Event)

	rows, total, err = rec.List(ctx, "qrcode.updated", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, old.ID, rows[0].ID)

	n, err := rec.DeleteOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = rec.DeleteOlderThan(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}
