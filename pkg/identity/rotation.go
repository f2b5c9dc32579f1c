package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/holo-host/hpos-core/pkg/authtoken"
	"github.com/holo-host/hpos-core/pkg/log"
)

// rotationThreshold is cuemby-warren's certRotationThreshold pattern
// (pkg/security/certs.go) rescaled to this domain's much shorter-lived
// credential: §4.2's auth response JWTs carry a 7-day exp, not a
// year-long cert, so the teacher's 30-day threshold would leave every
// token perpetually due. A day's notice before a 7-day token lapses
// gives the host agent room to re-run the callout handshake.
const rotationThreshold = 24 * time.Hour

// CredentialSource reads a named credential's current on-disk state,
// matching LoadCredentials' signature shape.
type CredentialSource func() (Credentials, error)

// RotationHandler re-issues a credential that has fallen within
// rotationThreshold of its JWT's exp claim. Implementations re-run the
// auth-callout handshake and persist the result via Credentials.Upgrade.
type RotationHandler func(ctx context.Context, name string, current Credentials) error

// RotationSweep periodically checks a set of named credential sources
// for an approaching exp and invokes a handler for any that are due,
// driven by robfig/cron/v3 rather than the teacher's manual timer loop.
type RotationSweep struct {
	cron    *cron.Cron
	sources map[string]CredentialSource
	handler RotationHandler
}

// NewRotationSweep builds a sweep that calls handler for any watched
// credential found due for rotation.
func NewRotationSweep(handler RotationHandler) *RotationSweep {
	return &RotationSweep{
		cron:    cron.New(),
		sources: make(map[string]CredentialSource),
		handler: handler,
	}
}

// Watch registers a named credential source to be checked on every sweep.
func (r *RotationSweep) Watch(name string, source CredentialSource) {
	r.sources[name] = source
}

// Start schedules the sweep on spec (a cron/v3 expression, e.g.
// "@every 1h") and begins running it in the background.
func (r *RotationSweep) Start(spec string) error {
	if _, err := r.cron.AddFunc(spec, r.sweepOnce); err != nil {
		return fmt.Errorf("identity: scheduling rotation sweep: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop halts the sweep, waiting for any in-flight run to finish.
func (r *RotationSweep) Stop() {
	<-r.cron.Stop().Done()
}

func (r *RotationSweep) sweepOnce() {
	ctx := context.Background()
	for name, source := range r.sources {
		creds, err := source()
		if err != nil {
			log.Errorf(fmt.Sprintf("identity: rotation sweep reading credentials %q", name), err)
			continue
		}
		due, err := dueForRotation(creds)
		if err != nil {
			log.Errorf(fmt.Sprintf("identity: rotation sweep decoding token %q", name), err)
			continue
		}
		if !due {
			continue
		}
		if err := r.handler(ctx, name, creds); err != nil {
			log.Errorf(fmt.Sprintf("identity: rotation sweep re-issuing credentials %q", name), err)
		}
	}
}

// dueForRotation reports whether creds' stored JWT has less than
// rotationThreshold remaining before its exp claim. Guard credentials are
// never due: they carry no JWT to rotate and are upgraded by the auth
// callout handshake instead, not by this sweep.
func dueForRotation(creds Credentials) (bool, error) {
	if creds.State() != StateAuthenticated {
		return false, nil
	}
	_, claims, err := authtoken.Decode(creds.JWT())
	if err != nil {
		return false, fmt.Errorf("identity: decoding stored jwt: %w", err)
	}
	if claims.Expires == 0 {
		return true, nil
	}
	return time.Until(time.Unix(claims.Expires, 0)) < rotationThreshold, nil
}
