package testutil

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SetupTestRedis returns a client on a flushed test DB at TEST_REDIS_ADDR
// (default localhost:56379, DB from TEST_REDIS_DB, default 1).
// The test is skipped when Redis does not answer.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr := envOr("TEST_REDIS_ADDR", "localhost:56379")
	db, err := strconv.Atoi(envOr("TEST_REDIS_DB", "1"))
	if err != nil || db < 0 {
		t.Fatalf("invalid TEST_REDIS_DB %q", envOr("TEST_REDIS_DB", ""))
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err = client.Ping(ctx).Err(); err != nil {
		closeAndLog(t, "redis client", client)
		unavailable(t, requireRedis(), "redis not available at %s: %v", addr, err)
		return nil
	}
	if err = client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis db %d: %v", db, err)
	}
	onCleanup(t, func() { closeAndLog(t, "redis client", client) })
	return client
}
