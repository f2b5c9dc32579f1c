package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// State is the one-way-per-boot credential state machine from I5.
type State string

const (
	StateGuard         State = "guard"
	StateAuthenticated State = "authenticated"
)

// Credentials is the file-backed set of bus credentials a host agent
// holds. It is either guard or authenticated — never both — and callers
// must not construct one directly; use NewGuardCredentials /
// Credentials.Upgrade.
type Credentials struct {
	state    State
	jwt      string
	seedPath string
}

// State reports the current credential state.
func (c Credentials) State() State { return c.state }

// NewGuardCredentials builds the minimal unauthenticated publish-only
// credential set a host starts with before hoster validation succeeds.
func NewGuardCredentials() Credentials {
	return Credentials{state: StateGuard}
}

// Upgrade transitions guard credentials to authenticated, persisting the
// issued JWT. It refuses to downgrade or re-upgrade already-authenticated
// credentials, enforcing the one-way transition in I5.
func (c Credentials) Upgrade(jwt, path string) (Credentials, error) {
	if c.state == StateAuthenticated {
		return c, errors.New("identity: credentials already authenticated, transition is one-way")
	}
	if err := writeCredsFile(path, jwt); err != nil {
		return c, err
	}
	return Credentials{state: StateAuthenticated, jwt: jwt, seedPath: path}, nil
}

// JWT returns the stored authenticated JWT, or "" for guard credentials.
func (c Credentials) JWT() string { return c.jwt }

func writeCredsFile(path, jwt string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("identity: creating credentials directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(jwt+"\n"), 0o600); err != nil {
		return fmt.Errorf("identity: writing credentials file %s: %w", path, err)
	}
	return nil
}

// LoadCredentials reads a previously-persisted authenticated credentials
// file, or returns guard credentials if none exists yet (§6.3's "fallback
// for unauthenticated state points at an auth_guard user").
func LoadCredentials(path string) (Credentials, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewGuardCredentials(), nil
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("identity: reading credentials file %s: %w", path, err)
	}
	return Credentials{state: StateAuthenticated, jwt: string(trimNewline(b)), seedPath: path}, nil
}
