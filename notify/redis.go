package notify

import (
	"context"
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/nijaru/vidsum/errors"
)

// RedisAPI is satisfied by *redis.Client.
type RedisAPI interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Close() error
}

// RedisNotifier appends each summary to a list so consumers can BLPOP it.
type RedisNotifier struct {
	Client RedisAPI
	Key    string
}

func NewRedisNotifier(client RedisAPI, key string) *RedisNotifier {
	return &RedisNotifier{
		Client: client,
		Key:    key,
	}
}

func (n *RedisNotifier) Notify(ctx context.Context, summary Summary) error {
	const op = "RedisNotifier.Notify"

	data, err := marshal(op, summary)
	if err != nil {
		return err
	}

	if err := n.Client.RPush(ctx, n.Key, data).Err(); err != nil {
		return errors.Transport(op, pkgerrors.Wrap(err, "rpush"), fmt.Sprintf("failed to notify redis list %s", n.Key))
	}
	return nil
}

func (n *RedisNotifier) Close() error {
	return n.Client.Close()
}
