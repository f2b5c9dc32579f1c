package main

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/holo-host/hpos-core/pkg/adminhttp"
	"github.com/holo-host/hpos-core/pkg/executor"
)

func newAdminServer(rdb *redis.Client, runtime *executor.ContainerRuntime) *adminhttp.Server {
	return adminhttp.New(map[string]adminhttp.Checker{
		"bus": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
		"containerd": runtime.Ping,
	})
}
