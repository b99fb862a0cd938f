package rdx

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// NewClient connects to Redis. url is either a redis:// URL or a host:port
// address.
func NewClient(ctx context.Context, url, password string) (*redis.Client, error) {
	opts := &redis.Options{Addr: url, Password: password}
	if strings.Contains(url, "://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, errors.Wrap(err, "parse REDIS_URL")
		}
		if password != "" {
			parsed.Password = password
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "ping redis at %s", opts.Addr)
	}
	return client, nil
}
