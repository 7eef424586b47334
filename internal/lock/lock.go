package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// BookingLocker 用 redis 的 SET NX + 过期时间实现针对单个预约的互斥锁，
// 用于串行化 webhook 重试等并发的预约状态变更。
// redis 不可用时按"已获取"处理，预约处理不因为 redis 故障而不可用。
type BookingLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewBookingLocker(client *redis.Client, ttl time.Duration) *BookingLocker {
	return &BookingLocker{
		client: client,
		ttl:    ttl,
	}
}

// Acquire 尝试获取某个预约的锁，返回的 release 总是可以安全调用。
func (l *BookingLocker) Acquire(ctx context.Context, bookingID int64) (release func(), acquired bool) {
	key := fmt.Sprintf("booking_lock_%d", bookingID)

	ok, err := l.client.SetNX(ctx, key, 1, l.ttl).Result()
	if err != nil {
		// 优雅降级
		slog.Warn("redis 不可用，跳过预约锁", "bookingID", bookingID, "error", err)
		return func() {}, true
	}
	if !ok {
		return func() {}, false
	}

	return func() {
		if err := l.client.Del(context.Background(), key).Err(); err != nil {
			slog.Warn("释放预约锁失败，等待锁自动过期", "bookingID", bookingID, "error", err)
		}
	}, true
}
