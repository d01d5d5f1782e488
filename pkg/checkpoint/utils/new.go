// Package checkpointutils builds a checkpoint.Store from configuration.
package checkpointutils

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/ragchat/pkg/checkpoint"
	"github.com/papercomputeco/ragchat/pkg/checkpoint/inmemory"
	"github.com/papercomputeco/ragchat/pkg/checkpoint/postgres"
	"github.com/papercomputeco/ragchat/pkg/checkpoint/redis"
	"github.com/papercomputeco/ragchat/pkg/checkpoint/sqlite"
)

type NewStoreOpts struct {
	// ProviderType is one of "sqlite", "postgres", "redis" or "inmemory".
	ProviderType string
	SQLitePath   string
	PostgresDSN  string
	RedisAddr    string
	RedisDB      int
}

func NewStore(ctx context.Context, o *NewStoreOpts) (checkpoint.Store, error) {
	switch o.ProviderType {
	case "sqlite":
		if o.SQLitePath == "" {
			return nil, errors.New("sqlite checkpoint store requires a path")
		}
		return sqlite.NewStore(ctx, o.SQLitePath)
	case "postgres":
		if o.PostgresDSN == "" {
			return nil, errors.New("postgres checkpoint store requires a DSN")
		}
		return postgres.NewStore(ctx, o.PostgresDSN)
	case "redis":
		return redis.NewStore(ctx, o.RedisAddr, o.RedisDB)
	case "inmemory", "":
		return inmemory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported checkpoint store provider: %s", o.ProviderType)
	}
}
