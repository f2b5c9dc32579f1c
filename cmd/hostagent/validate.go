package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/holo-host/hpos-core/pkg/authcallout"
	"github.com/holo-host/hpos-core/pkg/bus"
	"github.com/holo-host/hpos-core/pkg/identity"
)

// requestValidation runs the host side of §4.2.2: sign a ValidateRequest
// with the host nkey, publish it to AUTH.validate with a reply_override
// pointed at a per-process reply subject, and wait for the orchestrator's
// ValidateResponse.
func requestValidation(ctx context.Context, busSvc *bus.Service, hostKey, sysKey identity.KeyPair, deviceID string) (authcallout.ValidateResponse, error) {
	hostPubkey, err := hostKey.PublicNkey()
	if err != nil {
		return authcallout.ValidateResponse{}, fmt.Errorf("encoding host pubkey: %w", err)
	}
	sysPubkey, err := sysKey.PublicNkey()
	if err != nil {
		return authcallout.ValidateResponse{}, fmt.Errorf("encoding sys pubkey: %w", err)
	}
	nonce, err := randomNonce()
	if err != nil {
		return authcallout.ValidateResponse{}, err
	}

	req := authcallout.ValidateRequest{
		DeviceID:       deviceID,
		HostPubkey:     hostPubkey,
		MaybeSysPubkey: sysPubkey,
		Nonce:          nonce,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return authcallout.ValidateResponse{}, fmt.Errorf("encoding validate request: %w", err)
	}
	signature := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(hostKey.Sign(payload))

	replySubject := "AUTH." + deviceID + ".validate.reply.local"
	replies := make(chan bus.Message, 1)
	consumerName := "validate-reply-" + deviceID
	if err := busSvc.AddConsumer(consumerName, replySubject, func(ctx context.Context, msg bus.Message) (bus.Response, error) {
		select {
		case replies <- msg:
		default:
		}
		return bus.Response{}, nil
	}, nil); err != nil {
		return authcallout.ValidateResponse{}, fmt.Errorf("registering validate reply consumer: %w", err)
	}
	defer busSvc.DeleteConsumer(consumerName)

	headers := map[string]string{
		"X-Signature":    signature,
		"reply_override": replySubject,
	}
	if err := busSvc.Publish(ctx, "AUTH.validate", payload, headers); err != nil {
		return authcallout.ValidateResponse{}, fmt.Errorf("publishing validate request: %w", err)
	}

	select {
	case msg := <-replies:
		var resp authcallout.ValidateResponse
		if err := json.Unmarshal(msg.Body, &resp); err != nil {
			return authcallout.ValidateResponse{}, fmt.Errorf("decoding validate response: %w", err)
		}
		return resp, nil
	case <-time.After(30 * time.Second):
		return authcallout.ValidateResponse{}, fmt.Errorf("timed out waiting for validate response")
	case <-ctx.Done():
		return authcallout.ValidateResponse{}, ctx.Err()
	}
}

func randomNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b), nil
}
