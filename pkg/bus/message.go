package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/holo-host/hpos-core/pkg/hostcoreerr"
)

// Message is an inbound item off a stream, decoded from its Redis
// Streams field map.
type Message struct {
	ID            string
	Subject       string
	Body          []byte
	Headers       map[string]string
	ReplyOverride string // set from the "reply_override" header, per the reply-subject selection order
}

// Response is what a Handler returns: a reply body plus the tag map a
// ReplySubjectFn uses to compute dynamic reply subjects.
type Response struct {
	Body []byte
	Tags map[string]string
}

// Handler processes one inbound message and produces a reply.
type Handler func(ctx context.Context, msg Message) (Response, error)

// ReplySubjectFn computes zero or more reply subjects from a response's
// tag map, used when neither a reply_override header nor a native
// reply address is present.
type ReplySubjectFn func(tags map[string]string) []string

func decodeMessage(xm redis.XMessage) (Message, error) {
	msg := Message{ID: xm.ID, Headers: map[string]string{}}

	if v, ok := xm.Values["subject"].(string); ok {
		msg.Subject = v
	}
	if v, ok := xm.Values["body"].(string); ok {
		msg.Body = []byte(v)
	}
	if v, ok := xm.Values["headers"].(string); ok && v != "" {
		if err := json.Unmarshal([]byte(v), &msg.Headers); err != nil {
			return Message{}, hostcoreerr.New(hostcoreerr.Request, fmt.Errorf("bus: decoding headers: %w", err))
		}
	}
	msg.ReplyOverride = msg.Headers["reply_override"]
	return msg, nil
}

func encodeMessage(subject string, body []byte, headers map[string]string) (map[string]interface{}, error) {
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return nil, hostcoreerr.New(hostcoreerr.Request, fmt.Errorf("bus: encoding headers: %w", err))
	}
	return map[string]interface{}{
		"subject": subject,
		"body":    body,
		"headers": string(headersJSON),
	}, nil
}
