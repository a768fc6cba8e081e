package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/mahudhurio/core/notification"
)

const defaultQueueKey = "mahudhurio:notifications"

// NewRedisClient connects to redis with short timeouts.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
}

// RedisPublisher pushes addressed alerts on a redis list consumed by the push gateway.
type RedisPublisher struct {
	client *redis.Client
	key    string
}

var _ notification.Fanout = (*RedisPublisher)(nil)

func NewRedisPublisher(client *redis.Client, key string) *RedisPublisher {
	if key == "" {
		key = defaultQueueKey
	}
	return &RedisPublisher{client: client, key: key}
}

// Fanout LPUSHes every resolved alert as JSON, in a single round trip.
// Unresolved alerts have nobody to be pushed to and are skipped.
func (p *RedisPublisher) Fanout(ctx context.Context, batch []notification.SchoolNotification) error {
	values := make([]interface{}, 0, len(batch))
	for _, n := range batch {
		if n.Unresolved() {
			continue
		}
		data, err := json.Marshal(n)
		if err != nil {
			return errors.Wrapf(err, "encoding notification %s", n.ID)
		}
		values = append(values, data)
	}
	if len(values) == 0 {
		return nil
	}

	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, p.key, values...)
		return nil
	})
	return errors.Wrap(err, "pushing notifications")
}

// Healthy verifies redis connectivity.
func (p *RedisPublisher) Healthy(ctx context.Context) bool {
	return p.client.Ping(ctx).Err() == nil
}
