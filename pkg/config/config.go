package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MachineIDPath is the one process-wide static path this package reads;
// every other setting flows through an explicit Paths/Config value.
const MachineIDPath = "/etc/machine-id"

// Paths groups the on-disk locations a host agent needs (§6.3, §9's
// "pass an explicit Paths value" note — no process-wide statics beyond
// MachineIDPath).
type Paths struct {
	HostNkeySeedFile string // HOSTING_AGENT_HOST_NKEY_PATH
	SysNkeySeedFile  string // HOSTING_AGENT_SYS_NKEY_PATH
	HostCredsFile    string // HOST_CREDS_FILE_PATH
	LedStateDir      string // LED_STATE_DIR (build-time override)
}

// HostAgentConfig is the full set of environment knobs a host agent
// process reads at startup.
type HostAgentConfig struct {
	Paths   Paths
	BusURL  string // NATS_URL -> bus connection string
	BusUser string
	BusPass string
	BusSkipTLSVerifyDanger bool // NATS_SKIP_TLS_VERIFICATION_DANGER, developer-only
}

// OrchestratorConfig is the full set of environment knobs the orchestrator
// process reads at startup.
type OrchestratorConfig struct {
	RootAuthNkeySeedFile    string // ORCHESTRATOR_ROOT_AUTH_NKEY_PATH
	SigningAuthNkeySeedFile string // ORCHESTRATOR_SIGNING_AUTH_NKEY_PATH
	BusURL                  string
	BusUser                 string
	BusPass                 string
	BusSkipTLSVerifyDanger  bool
	StoreDSN                string // MONGO_URI -> STORE_DSN, a postgres DSN
	StoreDatabase           string // HOLO_DATABASE_NAME
}

func lookupEnv(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	if file, ok := os.LookupEnv(key + "_FILE"); ok {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", false
		}
		return strings.TrimSpace(string(b)), true
	}
	return "", false
}

func requireEnv(key string) (string, error) {
	v, ok := lookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("config: required environment variable %s is not set", key)
	}
	return v, nil
}

// LoadHostAgentConfig reads the host-agent environment variables from §6.4.
func LoadHostAgentConfig() (HostAgentConfig, error) {
	var cfg HostAgentConfig

	hostSeed, err := requireEnv("HOSTING_AGENT_HOST_NKEY_PATH")
	if err != nil {
		return cfg, err
	}
	sysSeed, err := requireEnv("HOSTING_AGENT_SYS_NKEY_PATH")
	if err != nil {
		return cfg, err
	}
	busURL, err := requireEnv("NATS_URL")
	if err != nil {
		return cfg, err
	}

	cfg.Paths = Paths{
		HostNkeySeedFile: hostSeed,
		SysNkeySeedFile:  sysSeed,
		HostCredsFile:    os.Getenv("HOST_CREDS_FILE_PATH"),
		LedStateDir:      os.Getenv("LED_STATE_DIR"),
	}
	cfg.BusURL = busURL
	cfg.BusUser = os.Getenv("NATS_USER")
	cfg.BusPass, _ = lookupEnv("NATS_PASSWORD")
	cfg.BusSkipTLSVerifyDanger = os.Getenv("NATS_SKIP_TLS_VERIFICATION_DANGER") == "true"

	return cfg, nil
}

// LoadOrchestratorConfig reads the orchestrator environment variables from §6.4.
func LoadOrchestratorConfig() (OrchestratorConfig, error) {
	var cfg OrchestratorConfig

	rootSeed, err := requireEnv("ORCHESTRATOR_ROOT_AUTH_NKEY_PATH")
	if err != nil {
		return cfg, err
	}
	signingSeed, err := requireEnv("ORCHESTRATOR_SIGNING_AUTH_NKEY_PATH")
	if err != nil {
		return cfg, err
	}
	busURL, err := requireEnv("NATS_URL")
	if err != nil {
		return cfg, err
	}
	storeDSN, err := requireEnv("MONGO_URI")
	if err != nil {
		return cfg, err
	}

	cfg.RootAuthNkeySeedFile = rootSeed
	cfg.SigningAuthNkeySeedFile = signingSeed
	cfg.BusURL = busURL
	cfg.BusUser = os.Getenv("NATS_USER")
	cfg.BusPass, _ = lookupEnv("NATS_PASSWORD")
	cfg.BusSkipTLSVerifyDanger = os.Getenv("NATS_SKIP_TLS_VERIFICATION_DANGER") == "true"
	cfg.StoreDSN = storeDSN
	cfg.StoreDatabase = os.Getenv("HOLO_DATABASE_NAME")

	return cfg, nil
}

// Overlay is an optional YAML file carrying bus and store settings.
// LoadOverlay only parses it; nothing in this package merges it into the
// environment-derived config.
type Overlay struct {
	BusURL   string `yaml:"bus_url"`
	StoreDSN string `yaml:"store_dsn"`
}

// LoadOverlay parses a YAML overlay file. A missing file is not an error —
// overlays are optional by design.
func LoadOverlay(path string) (*Overlay, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading overlay %s: %w", path, err)
	}

	var o Overlay
	if err := yaml.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("config: parsing overlay %s: %w", path, err)
	}
	return &o, nil
}

// ReadMachineID reads the FreeDesktop machine-id once at boot, the one
// permitted process-wide static read (§9).
func ReadMachineID() (string, error) {
	b, err := os.ReadFile(MachineIDPath)
	if err != nil {
		return "", fmt.Errorf("config: reading machine id: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
