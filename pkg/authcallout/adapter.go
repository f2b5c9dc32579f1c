package authcallout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/holo-host/hpos-core/pkg/bus"
)

// CalloutHandler adapts HandleCallout to a bus.Handler for the
// $SYS.REQ.USER.AUTH subject: the message body is the outer
// authorization-request token, and the reply body is the signed
// authorization-response token. A failure is returned as a
// bus.ServiceError so §4.1's framing carries it to the reply body
// instead of the caller timing out silently.
func (s *Service) CalloutHandler() bus.Handler {
	return func(ctx context.Context, msg bus.Message) (bus.Response, error) {
		responseToken, err := s.HandleCallout(ctx, string(msg.Body))
		if err != nil {
			return bus.Response{}, bus.WrapServiceError("authcallout", "$SYS.REQ.USER.AUTH", err)
		}
		return bus.Response{Body: []byte(responseToken)}, nil
	}
}

// ValidateHandler adapts HandleValidate to a bus.Handler for the
// AUTH.validate subject: the message body is the JSON-encoded
// ValidateRequest payload, and "X-Signature" is read from headers. On
// success the response carries a host_pubkey tag so the framing routes
// the reply to a per-host subject.
func (s *Service) ValidateHandler() bus.Handler {
	return func(ctx context.Context, msg bus.Message) (bus.Response, error) {
		var req ValidateRequest
		if err := json.Unmarshal(msg.Body, &req); err != nil {
			return bus.Response{}, bus.NewServiceError("authcallout", "AUTH.validate", fmt.Sprintf("decoding request: %v", err))
		}
		resp, err := s.HandleValidate(ctx, msg.Body, req, msg.Headers["X-Signature"])
		if err != nil {
			return bus.Response{}, bus.WrapServiceError("authcallout", "AUTH.validate", err)
		}
		body, err := json.Marshal(resp)
		if err != nil {
			return bus.Response{}, bus.NewServiceError("authcallout", "AUTH.validate", fmt.Sprintf("encoding response: %v", err))
		}
		return bus.Response{Body: body, Tags: map[string]string{"host_pubkey": resp.HostPubkey}}, nil
	}
}

// ValidateReplySubjects is the bus.ReplySubjectFn paired with
// ValidateHandler: it routes a response's host_pubkey tag to that
// host's own reply namespace, the same "AUTH.{pk}.>" subject tree
// derivePermissions grants the host subscribe access to.
func ValidateReplySubjects(tags map[string]string) []string {
	pk := tags["host_pubkey"]
	if pk == "" {
		return nil
	}
	return []string{"AUTH." + lowerPubkey(pk) + ".validate.reply"}
}
