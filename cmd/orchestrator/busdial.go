package main

import (
	"fmt"

	"github.com/go-redis/redis/v8"
)

// busServiceSubject is the one root subject every hpos-core process
// binds its bus.Service to. AUTH/WORKLOAD/INVENTORY subjects are shared
// between the orchestrator and every host agent (§6.1), so they must
// all derive the same Redis Streams key for a given subject.
const busServiceSubject = "HPOS"

// dialBus parses busURL (a redis:// connection string, reusing the
// NATS_URL env var name per config's historical naming) and overlays
// explicit user/pass when set.
func dialBus(busURL, user, pass string) (*redis.Client, error) {
	opts, err := redis.ParseURL(busURL)
	if err != nil {
		return nil, fmt.Errorf("parsing bus url: %w", err)
	}
	if user != "" {
		opts.Username = user
	}
	if pass != "" {
		opts.Password = pass
	}
	return redis.NewClient(opts), nil
}
