package rdx

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

var Conn *redis.Client

// Connect initializes the process-wide redis client. Redis is advisory
// infrastructure here (locks, event fan-out); a failed ping is logged but
// not fatal.
func Connect(addr string) {
	Conn = redis.NewClient(&redis.Options{
		Addr: addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := Conn.Ping(ctx).Err(); err != nil {
		log.Printf("redis ping failed (%s): %v", addr, err)
	}
}

// AcquireLock takes a short-lived distributed lock keyed by the payment
// being confirmed. Narrows the dual-channel race window; the status CAS in
// the store is the actual authority.
func AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if Conn == nil {
		return true, nil
	}
	return Conn.SetNX(ctx, "confirm_lock:"+key, "1", ttl).Result()
}

// ReleaseLock releases the lock
func ReleaseLock(ctx context.Context, key string) {
	if Conn == nil {
		return
	}
	if err := Conn.Del(ctx, "confirm_lock:"+key).Err(); err != nil {
		log.Printf("ReleaseLock: failed for %s, err=%v", key, err)
	}
}

// Publish pushes an event payload onto a pub/sub channel, best-effort.
func Publish(ctx context.Context, channel string, payload []byte) {
	if Conn == nil {
		return
	}
	if err := Conn.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("redis publish to %s failed: %v", channel, err)
	}
}
