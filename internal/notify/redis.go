package notify

import (
	"context"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/Rajchodisetti/alertbot/internal/observ"
)

// RedisSink publishes every notification as an Envelope on one channel.
type RedisSink struct {
	channel string
	timeout time.Duration
	publish func(ctx context.Context, channel string, payload []byte) error
}

func NewRedisSink(rdb *goredis.Client, channel string) *RedisSink {
	return newRedisSink(channel, func(ctx context.Context, ch string, payload []byte) error {
		return rdb.Publish(ctx, ch, payload).Err()
	})
}

func newRedisSink(channel string, publish func(context.Context, string, []byte) error) *RedisSink {
	return &RedisSink{channel: channel, timeout: 2 * time.Second, publish: publish}
}

// DialRedis connects and pings, returning a client ready for NewRedisSink.
func DialRedis(ctx context.Context, addr, password string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, Password: password})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (r *RedisSink) Handle(n Notification) {
	payload, err := Encode(n)
	if err != nil {
		observ.Error("redis_encode_failed", err, map[string]any{"kind": string(n.Kind())})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.publish(ctx, r.channel, payload); err != nil {
		observ.Error("redis_publish_failed", err, map[string]any{"channel": r.channel, "kind": string(n.Kind())})
	}
}
