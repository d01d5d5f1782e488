// Package redis provides a Redis-backed checkpoint store. Each thread's
// lineage is a list of JSON checkpoints; a sorted set scored by first append
// time indexes the threads.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/ragchat/pkg/checkpoint"
	"github.com/papercomputeco/ragchat/pkg/conversation"
)

const (
	keyPrefix  = "ragchat:thread:"
	threadsKey = "ragchat:threads"
)

// Store implements checkpoint.Store using Redis lists and a sorted set.
// Appends run under WATCH on the thread key so a concurrent writer aborts
// the transaction.
type Store struct {
	Client *goredis.Client
}

// NewStore connects to Redis. addr may be a redis:// URL or a host:port.
func NewStore(ctx context.Context, addr string, db int) (*Store, error) {
	opt, err := goredis.ParseURL(addr)
	if err != nil {
		opt = &goredis.Options{
			Addr: addr,
			DB:   db,
		}
	}

	client := goredis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Store{Client: client}, nil
}

func threadKey(threadID string) string {
	return keyPrefix + threadID
}

// Load returns the latest checkpoint of the thread.
func (s *Store) Load(ctx context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	cp, err := latest(ctx, s.Client, threadID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, checkpoint.NotFoundError{ThreadID: threadID}
	}

	return cp, nil
}

// Append pushes a new checkpoint onto the thread's list inside MULTI/EXEC.
// A concurrent change to the thread key fails the append with
// checkpoint.ErrConflict.
func (s *Store) Append(ctx context.Context, threadID string, state conversation.State, next string) (*checkpoint.Checkpoint, error) {
	key := threadKey(threadID)
	var cp *checkpoint.Checkpoint

	txf := func(tx *goredis.Tx) error {
		parent, err := latest(ctx, tx, threadID)
		if err != nil {
			return err
		}

		cp = checkpoint.New(threadID, parent, state, next)
		data, err := json.Marshal(cp)
		if err != nil {
			return fmt.Errorf("failed to marshal checkpoint: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.RPush(ctx, key, data)
			pipe.ZAddNX(ctx, threadsKey, goredis.Z{
				Score:  float64(cp.CreatedAt.UnixNano()),
				Member: threadID,
			})
			return nil
		})
		return err
	}

	err := s.Client.Watch(ctx, txf, key)
	if errors.Is(err, goredis.TxFailedErr) {
		return nil, fmt.Errorf("%w: thread %s", checkpoint.ErrConflict, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to append checkpoint: %w", err)
	}

	return cp, nil
}

// History returns the thread's lineage, oldest first.
func (s *Store) History(ctx context.Context, threadID string) ([]*checkpoint.Checkpoint, error) {
	raw, err := s.Client.LRange(ctx, threadKey(threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read thread %s: %w", threadID, err)
	}

	cps := make([]*checkpoint.Checkpoint, 0, len(raw))
	for _, r := range raw {
		cp, err := decode(r)
		if err != nil {
			return nil, err
		}
		cps = append(cps, cp)
	}

	return cps, nil
}

// ListThreads returns thread IDs ordered by their first checkpoint.
func (s *Store) ListThreads(ctx context.Context) ([]string, error) {
	threads, err := s.Client.ZRange(ctx, threadsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	return threads, nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.Client.Close()
}

func latest(ctx context.Context, c goredis.Cmdable, threadID string) (*checkpoint.Checkpoint, error) {
	raw, err := c.LIndex(ctx, threadKey(threadID), -1).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read thread %s: %w", threadID, err)
	}

	return decode(raw)
}

func decode(raw string) (*checkpoint.Checkpoint, error) {
	cp := &checkpoint.Checkpoint{}
	if err := json.Unmarshal([]byte(raw), cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return cp, nil
}
