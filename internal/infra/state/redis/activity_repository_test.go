package redisstate

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func TestRedisActivityRepository_Keys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	assert.Equal(t, "hill:room:ABC234:last_active", NewRedisActivityRepository(client, "").lastActiveKey("ABC234"))
	assert.Equal(t, "x:room:ABC234:last_active", NewRedisActivityRepository(client, "x:").lastActiveKey("ABC234"))
	assert.Panics(t, func() { NewRedisActivityRepository(nil, "") })
}

func TestRedisActivityRepository_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	repo := NewRedisActivityRepository(client, "")
	ctx := context.Background()

	assert.Error(t, repo.Touch(ctx, "ABC234", time.Now()))
	_, err := repo.LastActive(ctx, "ABC234")
	assert.Error(t, err)
	assert.Error(t, repo.Forget(ctx, "ABC234"))
}
