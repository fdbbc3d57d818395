package redisstore

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/esdes/campus/core"
	"github.com/esdes/campus/core/session"
)

const keyPrefix = "campus:session:"

// Store keeps each session in a redis hash that expires after ttl.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

var _ session.Store = (*Store)(nil)

func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Open connects to the configured redis server.
func Open(ctx context.Context, conf *core.Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Session.RedisAddr,
		Password: conf.Session.RedisPassword,
		DB:       conf.Session.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis.Ping")
	}
	return New(client, conf.Session.TTL), nil
}

func sessionKey(sid string) string { return keyPrefix + sid }

func (st *Store) Load(ctx context.Context, sid string) (map[string]string, error) {
	values, err := st.client.HGetAll(ctx, sessionKey(sid)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[string]string{}, nil
		}
		return nil, errors.Wrap(err, "redis.HGetAll")
	}
	return values, nil
}

// Save replaces the session hash and restarts its ttl.
func (st *Store) Save(ctx context.Context, sid string, values map[string]string) error {
	key := sessionKey(sid)
	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		fields[k] = v
	}

	pipe := st.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
		if st.ttl > 0 {
			pipe.Expire(ctx, key, st.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "redis.Exec")
	}
	return nil
}

func (st *Store) Delete(ctx context.Context, sid string) error {
	if err := st.client.Del(ctx, sessionKey(sid)).Err(); err != nil {
		return errors.Wrap(err, "redis.Del")
	}
	return nil
}

func (st *Store) Close() error {
	return st.client.Close()
}
