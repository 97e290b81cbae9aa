package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "match:"
	// redisIdleIndex is a sorted set of match ids scored by last update time.
	redisIdleIndex  = "matches:updated_at"
	redisMaxRetries = 8
)

// RedisStore keeps each match as a JSON document. Updates use WATCH/MULTI so a
// concurrent writer to the same key forces a retry instead of a lost update.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore stores matches with the given expiry. A zero ttl keeps them
// until they are deleted.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		ttl: ttl,
	}
}

func matchKey(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisStore) Create(ctx context.Context, m *Match) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal match: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, matchKey(m.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store match: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: match %s already exists", ErrConflict, m.ID)
	}
	if err := s.rdb.ZAdd(ctx, redisIdleIndex, redis.Z{Score: unixScore(m.UpdatedAt), Member: m.ID}).Err(); err != nil {
		return fmt.Errorf("failed to index match: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Match, error) {
	data, err := s.rdb.Get(ctx, matchKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match %s: %w", id, err)
	}
	var m Match
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match %s: %w", id, err)
	}
	return &m, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Match) error) (*Match, error) {
	key := matchKey(id)
	var result *Match

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get match %s: %w", id, err)
		}
		var m Match
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("failed to unmarshal match %s: %w", id, err)
		}

		if err := fn(&m); err != nil {
			return err
		}

		updated, err := json.Marshal(&m)
		if err != nil {
			return fmt.Errorf("failed to marshal match %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, s.ttl)
			pipe.ZAdd(ctx, redisIdleIndex, redis.Z{Score: unixScore(m.UpdatedAt), Member: id})
			return nil
		})
		if err != nil {
			return err
		}
		result = &m
		return nil
	}

	for i := 0; i < redisMaxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("failed to update match %s: too much contention", id)
}

// DeleteIdle also reports ids whose key already expired through the ttl, so
// the caller can still release their connections.
func (s *RedisStore) DeleteIdle(ctx context.Context, before time.Time) ([]string, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, redisIdleIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatFloat(unixScore(before), 'f', -1, 64),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list idle matches: %w", err)
	}

	var removed []string
	for _, id := range ids {
		ok, err := s.deleteIfIdle(ctx, id, before)
		if err != nil {
			return removed, err
		}
		if ok {
			removed = append(removed, id)
		}
	}
	return removed, nil
}

func (s *RedisStore) deleteIfIdle(ctx context.Context, id string, before time.Time) (bool, error) {
	key := matchKey(id)
	deleted := false

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to get match %s: %w", id, err)
		}
		if err == nil {
			var m Match
			if err := json.Unmarshal(data, &m); err != nil {
				return fmt.Errorf("failed to unmarshal match %s: %w", id, err)
			}
			if !m.UpdatedAt.Before(before) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, redisIdleIndex, id)
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	}

	for i := 0; i < redisMaxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return deleted, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return false, err
	}
	return false, nil
}

func unixScore(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
