package hostagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/holo-host/hpos-core/pkg/bus"
	"github.com/holo-host/hpos-core/pkg/log"
)

const (
	hcGatewayReopenDelay = 2 * time.Second
	hcGatewayHTTPTimeout = 30 * time.Second
	hcGatewayReadBlock   = 5 * time.Second
)

// GatewayEntry is one key's value in the HC_HTTP_GW key/value bucket
// (§4.4): {desired_state, hc_http_gw_url_base, installed_app_id}.
type GatewayEntry struct {
	Key             string `json:"key"` // installed_app_id, also the bucket key
	DesiredState    string `json:"desired_state"`
	HcHttpGwURLBase string `json:"hc_http_gw_url_base"`
	InstalledAppID  string `json:"installed_app_id"`
}

// HcHttpGwRequest is the payload published on WORKLOAD.HC_HTTP_GW.{installed_app_id}.
type HcHttpGwRequest struct {
	CoordinatorIdentifier string `json:"coordinator_identifier"`
	DnaHash               string `json:"dna_hash"`
	Zome                  string `json:"zome"`
	Function              string `json:"fn"`
	Payload               string `json:"payload"`
}

// HcHttpGwResponse packages the gateway HTTP response.
type HcHttpGwResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body"`
}

// HcHttpGwResponseMsg is the bus response body. ResponseSubject is
// always nil here — dynamic fanout is handled by the caller's
// reply_override header, per §4.1's reply-subject selection order,
// not by this field.
type HcHttpGwResponseMsg struct {
	Response        HcHttpGwResponse `json:"response"`
	ResponseSubject *string          `json:"response_subject"`
}

// GatewayWatcher is the HC-HTTP-Gateway key/value bucket watcher:
// replays HC-HTTP-GW-WORKER_{device_id}'s history once, then watches
// for new entries, registering or unregistering a per-key bus consumer
// as each key's desired_state dictates. Structured after
// pkg/store/changestream.go's replay-then-watch shape and
// cuemby-warren's worker/health_monitor.go per-key register/unregister
// loop (there: map[string]context.CancelFunc over containers; here:
// a set of keys with a registered bus consumer).
type GatewayWatcher struct {
	Bus        *bus.Service
	Redis      *redis.Client
	DeviceID   string
	HTTPClient *http.Client

	logger zerolog.Logger

	mu        sync.Mutex
	consumers map[string]struct{} // set of installed_app_id keys with a registered bus consumer

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewGatewayWatcher builds a watcher bound to deviceID's bucket.
func NewGatewayWatcher(busSvc *bus.Service, rdb *redis.Client, deviceID string) *GatewayWatcher {
	return &GatewayWatcher{
		Bus:        busSvc,
		Redis:      rdb,
		DeviceID:   deviceID,
		HTTPClient: &http.Client{Timeout: hcGatewayHTTPTimeout},
		logger:     log.WithHost(deviceID),
		consumers:  make(map[string]struct{}),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

func (w *GatewayWatcher) bucketStream() string {
	return "HC-HTTP-GW-WORKER_" + w.DeviceID
}

// Start replays the bucket's full history once (applying every key's
// most recent entry) and spawns the watch loop.
func (w *GatewayWatcher) Start(ctx context.Context) error {
	lastID, err := w.replay(ctx)
	if err != nil {
		return fmt.Errorf("hostagent: replaying gateway bucket: %w", err)
	}
	go w.watch(lastID)
	return nil
}

// Stop signals the watch loop to exit, waits for it, and unregisters
// every consumer still registered.
func (w *GatewayWatcher) Stop() {
	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	defer w.mu.Unlock()
	for key := range w.consumers {
		_ = w.Bus.DeleteConsumer(gatewayConsumerName(key))
	}
	w.consumers = make(map[string]struct{})
}

// replay reads the bucket's entire history, reduces to the latest
// entry per key, applies each once, and returns the last stream ID
// seen (the cursor the watch loop resumes from).
func (w *GatewayWatcher) replay(ctx context.Context) (string, error) {
	msgs, err := w.Redis.XRange(ctx, w.bucketStream(), "-", "+").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "0", err
	}

	latest := make(map[string]GatewayEntry)
	lastID := "0"
	for _, m := range msgs {
		entry, err := decodeBucketEntry(m.Values)
		if err != nil {
			w.logger.Warn().Err(err).Str("id", m.ID).Msg("skipping malformed gateway bucket entry")
			continue
		}
		latest[entry.Key] = entry
		lastID = m.ID
	}

	for _, entry := range latest {
		w.applyEntry(entry)
	}
	return lastID, nil
}

// watch blocks reading new bucket entries after lastID, applying each
// as it arrives. A block timeout (no error, just no new data) is
// treated as a stream-end condition: wait hcGatewayReopenDelay and
// reopen, per §4.4, unless shutdown has been signaled.
func (w *GatewayWatcher) watch(lastID string) {
	defer close(w.doneCh)
	ctx := context.Background()

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		res, err := w.Redis.XRead(ctx, &redis.XReadArgs{
			Streams: []string{w.bucketStream(), lastID},
			Block:   hcGatewayReadBlock,
			Count:   100,
		}).Result()

		if errors.Is(err, redis.Nil) {
			select {
			case <-time.After(hcGatewayReopenDelay):
			case <-w.stopCh:
				return
			}
			continue
		}
		if err != nil {
			w.logger.Error().Err(err).Msg("gateway bucket watch read failed")
			select {
			case <-time.After(hcGatewayReopenDelay):
			case <-w.stopCh:
				return
			}
			continue
		}

		for _, stream := range res {
			for _, m := range stream.Messages {
				entry, err := decodeBucketEntry(m.Values)
				if err != nil {
					w.logger.Warn().Err(err).Str("id", m.ID).Msg("skipping malformed gateway bucket entry")
					continue
				}
				w.applyEntry(entry)
				lastID = m.ID
			}
		}
	}
}

// applyEntry registers or unregisters the per-key gateway consumer per
// §4.4's desired_state rule.
func (w *GatewayWatcher) applyEntry(entry GatewayEntry) {
	w.mu.Lock()
	_, registered := w.consumers[entry.Key]
	w.mu.Unlock()

	if entry.DesiredState != "Running" {
		if registered {
			w.unregister(entry.Key)
		}
		return
	}
	if !registered {
		w.register(entry)
	}
}

func (w *GatewayWatcher) register(entry GatewayEntry) {
	name := gatewayConsumerName(entry.Key)
	subject := "WORKLOAD.HC_HTTP_GW." + entry.InstalledAppID

	if err := w.Bus.AddConsumer(name, subject, w.gatewayHandler(entry), nil); err != nil {
		w.logger.Error().Err(err).Str("installed_app_id", entry.InstalledAppID).Msg("failed to register gateway consumer")
		return
	}

	w.mu.Lock()
	w.consumers[entry.Key] = struct{}{}
	w.mu.Unlock()
}

func (w *GatewayWatcher) unregister(key string) {
	w.mu.Lock()
	delete(w.consumers, key)
	w.mu.Unlock()
	_ = w.Bus.DeleteConsumer(gatewayConsumerName(key))
}

// gatewayHandler deserializes the incoming request, validates the
// coordinator identifier against installed_app_id, issues the GET, and
// packages the result — §4.4's per-key HC-HTTP-GW consumer body.
func (w *GatewayWatcher) gatewayHandler(entry GatewayEntry) bus.Handler {
	return func(ctx context.Context, msg bus.Message) (bus.Response, error) {
		var req HcHttpGwRequest
		if err := json.Unmarshal(msg.Body, &req); err != nil {
			return bus.Response{}, fmt.Errorf("hostagent: decoding gateway request: %w", err)
		}
		if req.CoordinatorIdentifier != entry.InstalledAppID {
			return bus.Response{}, fmt.Errorf("hostagent: coordinator_identifier %q does not match installed_app_id %q", req.CoordinatorIdentifier, entry.InstalledAppID)
		}

		target := fmt.Sprintf("%s/%s/%s/%s/%s?payload=%s",
			strings.TrimRight(entry.HcHttpGwURLBase, "/"),
			req.DnaHash, req.CoordinatorIdentifier, req.Zome, req.Function,
			url.QueryEscape(req.Payload))

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return bus.Response{}, fmt.Errorf("hostagent: building gateway request: %w", err)
		}

		resp, err := w.HTTPClient.Do(httpReq)
		if err != nil {
			return bus.Response{}, fmt.Errorf("hostagent: gateway request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return bus.Response{}, fmt.Errorf("hostagent: reading gateway response: %w", err)
		}

		headers := make(map[string]string, len(resp.Header))
		for k := range resp.Header {
			headers[k] = resp.Header.Get(k)
		}

		out := HcHttpGwResponseMsg{
			Response: HcHttpGwResponse{
				Status:  resp.StatusCode,
				Headers: headers,
				Body:    body,
			},
		}
		outBody, err := json.Marshal(out)
		if err != nil {
			return bus.Response{}, fmt.Errorf("hostagent: encoding gateway response: %w", err)
		}
		return bus.Response{Body: outBody}, nil
	}
}

// PutGatewayEntry writes one key's current state into device deviceID's
// HC-HTTP-GW bucket. The orchestrator side calls this (rather than the
// watcher, which only reads) when a HolochainDhtV1Manifest workload's
// desired_state changes; writes are keyed by installed_app_id so
// concurrent writers for different apps never collide, per §5's
// shared-resource policy.
func PutGatewayEntry(ctx context.Context, rdb *redis.Client, deviceID string, entry GatewayEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("hostagent: encoding gateway bucket entry: %w", err)
	}
	stream := "HC-HTTP-GW-WORKER_" + deviceID
	return rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: 1000, // approximates JetStream KV's history=10-per-key retention as a bounded shared log
		Approx: true,
		Values: map[string]interface{}{"entry": string(raw)},
	}).Err()
}

func decodeBucketEntry(values map[string]interface{}) (GatewayEntry, error) {
	var entry GatewayEntry
	raw, ok := values["entry"].(string)
	if !ok {
		return entry, fmt.Errorf("gateway bucket entry missing \"entry\" field")
	}
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return entry, err
	}
	return entry, nil
}

// gatewayConsumerName sanitizes installedAppID-derived keys into a bus
// consumer name: any character outside [A-Za-z0-9_-] becomes '_'.
func gatewayConsumerName(key string) string {
	var b strings.Builder
	b.WriteString("hc_http_gw_")
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
