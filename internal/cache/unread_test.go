package cache

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutiful-scheduler/internal/common/logger"
)

func TestUnreadCache_GetSet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewUnreadCache(client, logger.NewNoOpLogger())
	ctx := context.Background()

	mock.ExpectSet("notifications:unread:student-1", 4, unreadTTL).SetVal("OK")
	cache.Set(ctx, "student-1", 4)

	mock.ExpectGet("notifications:unread:student-1").SetVal("4")
	count, ok := cache.Get(ctx, "student-1")
	assert.True(t, ok)
	assert.Equal(t, 4, count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnreadCache_Miss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewUnreadCache(client, logger.NewNoOpLogger())

	mock.ExpectGet("notifications:unread:student-2").RedisNil()

	_, ok := cache.Get(context.Background(), "student-2")
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnreadCache_Invalidate(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewUnreadCache(client, logger.NewNoOpLogger())

	mock.ExpectDel("notifications:unread:student-1").SetVal(1)

	cache.Invalidate(context.Background(), "student-1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnreadCache_NilClientIsNoOp(t *testing.T) {
	cache := NewUnreadCache(nil, logger.NewNoOpLogger())
	ctx := context.Background()

	cache.Set(ctx, "student-1", 9)
	cache.Invalidate(ctx, "student-1")
	_, ok := cache.Get(ctx, "student-1")
	assert.False(t, ok)
}
