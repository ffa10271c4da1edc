package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/tradeflowhq/tradeflow/config"
	"github.com/tradeflowhq/tradeflow/model"
)

func newTestCache(t *testing.T) Cache {
	t.Helper()

	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
	})

	c, err := NewCache()
	if err != nil {
		t.Fatalf("Error creating cache: %s", err)
	}
	return c
}

func TestCacheSetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	intent := &model.PendingAction{
		IntentID:  "int_cache1",
		SessionID: "sess_1",
		Status:    model.StatusPending,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	err := c.Set(ctx, IntentKey(intent.IntentID), intent, IntentTTL)
	assert.NoError(t, err)

	got := &model.PendingAction{}
	err = c.Get(ctx, IntentKey(intent.IntentID), got)
	assert.NoError(t, err)
	assert.Equal(t, intent.IntentID, got.IntentID)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestCacheGet_Miss(t *testing.T) {
	c := newTestCache(t)

	got := &model.PendingAction{}
	err := c.Get(context.Background(), IntentKey("int_absent"), got)
	assert.NoError(t, err)
	assert.Empty(t, got.IntentID)
}

func TestCacheDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	intent := &model.PendingAction{IntentID: "int_cache2", Status: model.StatusPending}
	err := c.Set(ctx, IntentKey(intent.IntentID), intent, IntentTTL)
	assert.NoError(t, err)

	err = c.Delete(ctx, IntentKey(intent.IntentID))
	assert.NoError(t, err)

	got := &model.PendingAction{}
	err = c.Get(ctx, IntentKey(intent.IntentID), got)
	assert.NoError(t, err)
	assert.Empty(t, got.IntentID)
}
