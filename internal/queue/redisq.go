// Package queue moves order ids from the API to workers through Redis.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list holding queued order ids.
const DefaultKey = "orders:queue"

// RedisQueue is a FIFO list: producers LPUSH, consumers BRPOP.
type RedisQueue struct {
	rdb redis.Cmdable
	key string
}

func NewRedisQueue(rdb redis.Cmdable, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{rdb: rdb, key: key}
}

// Dispatch enqueues a single order id.
func (q *RedisQueue) Dispatch(ctx context.Context, orderID string) error {
	if err := q.rdb.LPush(ctx, q.key, orderID).Err(); err != nil {
		return fmt.Errorf("queue: push %s: %w", orderID, err)
	}
	return nil
}

// Requeue enqueues ids in one round trip. Any copy of an id still waiting
// in the list is removed first, so an order appears at most once however
// often it is re-queued.
func (q *RedisQueue) Requeue(ctx context.Context, orderIDs ...string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	pipe := q.rdb.TxPipeline()
	for _, id := range orderIDs {
		pipe.LRem(ctx, q.key, 0, id)
		pipe.LPush(ctx, q.key, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: requeue: %w", err)
	}
	return nil
}

// Pop blocks up to block for the next id. It returns "" when nothing
// arrived in time.
func (q *RedisQueue) Pop(ctx context.Context, block time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, block, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	if len(res) == 2 {
		return res[1], nil
	}
	return "", nil
}
