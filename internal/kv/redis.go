package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldMeta  = "meta"
	fieldValue = "value"
)

// RedisStore keeps every entry as a Redis hash at kv:<namespace>:<name>
// with "meta" and "value" fields.
type RedisStore struct {
	client   *redis.Client
	pageSize int
}

// NewRedisStore creates a new RedisStore from a Redis URL.
func NewRedisStore(redisURL string, pageSize int) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &RedisStore{client: redis.NewClient(opts), pageSize: pageSize}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Namespace returns a handle on one collection.
func (s *RedisStore) Namespace(name string) *RedisNamespace {
	return &RedisNamespace{store: s, name: name}
}

// IncrWithExpiry increments key and (re)sets its expiry in one round trip.
func (s *RedisStore) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RedisNamespace implements Namespace on top of RedisStore.
type RedisNamespace struct {
	store *RedisStore
	name  string
}

// List continues a SCAN over the namespace until at least one page worth of
// keys has been collected or the scan completes. SCAN may report a key more
// than once across pages; callers must tolerate repeats.
func (n *RedisNamespace) List(ctx context.Context, cursor string) (Page, error) {
	var scanCursor uint64
	if cursor != "" {
		c, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			return Page{}, fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		scanCursor = c
	}

	prefix := EntryKey(n.name, "")
	pattern := NamespacePattern(n.name)
	seen := make(map[string]bool)
	var redisKeys []string

	for {
		batch, next, err := n.store.client.Scan(ctx, scanCursor, pattern, int64(n.store.pageSize)).Result()
		if err != nil {
			return Page{}, fmt.Errorf("scan %s: %w", n.name, err)
		}
		for _, k := range batch {
			if !seen[k] {
				seen[k] = true
				redisKeys = append(redisKeys, k)
			}
		}
		scanCursor = next
		if scanCursor == 0 || len(redisKeys) >= n.store.pageSize {
			break
		}
	}

	page := Page{Keys: make([]Key, 0, len(redisKeys))}
	if scanCursor != 0 {
		page.Cursor = strconv.FormatUint(scanCursor, 10)
	}
	if len(redisKeys) == 0 {
		return page, nil
	}

	pipe := n.store.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(redisKeys))
	for i, k := range redisKeys {
		cmds[i] = pipe.HGet(ctx, k, fieldMeta)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Page{}, fmt.Errorf("read %s metadata: %w", n.name, err)
	}

	for i, k := range redisKeys {
		key := Key{Name: strings.TrimPrefix(k, prefix)}
		meta, err := cmds[i].Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return Page{}, fmt.Errorf("read %s metadata: %w", k, err)
		default:
			key.Metadata = json.RawMessage(meta)
		}
		page.Keys = append(page.Keys, key)
	}
	return page, nil
}

func (n *RedisNamespace) Get(ctx context.Context, name string) ([]byte, bool, error) {
	val, err := n.store.client.HGet(ctx, EntryKey(n.name, name), fieldValue).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (n *RedisNamespace) Put(ctx context.Context, name string, value []byte, metadata any) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if value == nil {
		value = []byte{}
	}
	key := EntryKey(n.name, name)
	pipe := n.store.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fieldMeta, meta, fieldValue, value)
	_, err = pipe.Exec(ctx)
	return err
}

func (n *RedisNamespace) Delete(ctx context.Context, name string) error {
	return n.store.client.Del(ctx, EntryKey(n.name, name)).Err()
}
