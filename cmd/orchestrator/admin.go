package main

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/holo-host/hpos-core/pkg/adminhttp"
	"github.com/holo-host/hpos-core/pkg/store"
)

func newAdminServer(db *store.DB, rdb *redis.Client) *adminhttp.Server {
	return adminhttp.New(map[string]adminhttp.Checker{
		"store": func(ctx context.Context) error {
			_, err := db.LatestResumeToken(ctx)
			return err
		},
		"bus": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	})
}
