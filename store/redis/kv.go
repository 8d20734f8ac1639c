package redis

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/kochabx/rentoso/store"
)

const scanCount = 100

func (c *Client) key(k string) string {
	return c.config.KeyPrefix + k
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, store.ErrNotFound
	}
	return v, err
}

func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, c.key(key), value, c.config.TTL).Err()
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Del(ctx, full...).Err()
}

// Keys 使用 SCAN 遍历，返回的键不含 KeyPrefix
func (c *Client) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	match := escapeGlob(c.key(prefix)) + "*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			out = append(out, strings.TrimPrefix(k, c.config.KeyPrefix))
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

var globReplacer = strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
