package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// KeyPair is a single ed25519 key pair together with its nkey-encoded
// public identity.
type KeyPair struct {
	Prefix  Prefix
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// PublicNkey returns the encoded public key string.
func (k KeyPair) PublicNkey() (string, error) {
	return EncodeNkey(k.Prefix, k.Public)
}

// Sign signs payload with the private key.
func (k KeyPair) Sign(payload []byte) []byte {
	return ed25519.Sign(k.Private, payload)
}

// GenerateKeyPair creates a fresh ed25519 key pair for the given prefix.
func GenerateKeyPair(prefix Prefix) (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("identity: generating key pair: %w", err)
	}
	return KeyPair{Prefix: prefix, Public: pub, Private: priv}, nil
}

// seedFileContents encodes a private key as a hex seed string — the
// on-disk format referenced by HOSTING_AGENT_HOST_NKEY_PATH /
// HOSTING_AGENT_SYS_NKEY_PATH (§6.3).
func seedFileContents(k KeyPair) []byte {
	return []byte(hex.EncodeToString(k.Private) + "\n")
}

// SaveSeed writes the private key to path with owner-only permissions,
// creating parent directories as needed. A failure after the directory
// was created does not attempt its own cleanup — callers bootstrapping
// multiple seeds use SaveSeeds for atomic-ish all-or-nothing behavior.
func SaveSeed(path string, k KeyPair) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("identity: creating key directory: %w", err)
	}
	if err := os.WriteFile(path, seedFileContents(k), 0o600); err != nil {
		return fmt.Errorf("identity: writing seed file %s: %w", path, err)
	}
	return nil
}

// SaveSeeds writes multiple seed files, cleaning up any already-written
// files if a later write fails — §5's "shared-resource policy" for
// credential files.
func SaveSeeds(files map[string]KeyPair) (err error) {
	written := make([]string, 0, len(files))
	defer func() {
		if err != nil {
			for _, p := range written {
				_ = os.Remove(p)
			}
		}
	}()

	for path, k := range files {
		if err = SaveSeed(path, k); err != nil {
			return err
		}
		written = append(written, path)
	}
	return nil
}

// LoadSeed reads a private key seed file and reconstructs the full key pair.
func LoadSeed(path string, prefix Prefix) (KeyPair, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return KeyPair{}, fmt.Errorf("identity: reading seed file %s: %w", path, err)
	}
	b = trimNewline(b)
	raw, err := hex.DecodeString(string(b))
	if err != nil {
		return KeyPair{}, fmt.Errorf("identity: decoding seed file %s: %w", path, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return KeyPair{}, fmt.Errorf("identity: seed file %s has wrong length", path)
	}
	priv := ed25519.PrivateKey(raw)
	pub := priv.Public().(ed25519.PublicKey)
	return KeyPair{Prefix: prefix, Public: pub, Private: priv}, nil
}

// LoadOrGenerateSeed loads an existing seed file, or generates and persists
// a new one if it does not exist yet — the host agent's first-boot path.
func LoadOrGenerateSeed(path string, prefix Prefix) (KeyPair, error) {
	if _, err := os.Stat(path); err == nil {
		return LoadSeed(path, prefix)
	}
	k, err := GenerateKeyPair(prefix)
	if err != nil {
		return KeyPair{}, err
	}
	if err := SaveSeed(path, k); err != nil {
		return KeyPair{}, err
	}
	return k, nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
