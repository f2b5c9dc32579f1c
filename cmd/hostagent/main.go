package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/holo-host/hpos-core/pkg/blobstore"
	"github.com/holo-host/hpos-core/pkg/config"
	"github.com/holo-host/hpos-core/pkg/executor"
	"github.com/holo-host/hpos-core/pkg/hostagent"
	"github.com/holo-host/hpos-core/pkg/identity"
	"github.com/holo-host/hpos-core/pkg/log"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "hostagent",
	Short:   "hpos-core host agent: local job API dispatch and the HC-HTTP-GW watcher",
	Version: Version,
	RunE:    runHostAgent,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("hostagent version %s\nCommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().String("admin-addr", "127.0.0.1:9091", "Admin HTTP address (healthz/readyz/metrics)")
	rootCmd.Flags().String("containerd-socket", "/run/containerd/containerd.sock", "containerd socket path")
	rootCmd.Flags().String("status-db-path", "./hostagent-data/status.db", "bbolt file for the local status cache")
	rootCmd.Flags().String("blobstore-path", "./hostagent-data/blobstore", "root directory for the local content-addressed blob store")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

func runHostAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadHostAgentConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	deviceID, err := config.ReadMachineID()
	if err != nil {
		return fmt.Errorf("reading device id: %w", err)
	}

	hostKey, err := identity.LoadOrGenerateSeed(cfg.Paths.HostNkeySeedFile, identity.PrefixHost)
	if err != nil {
		return fmt.Errorf("loading host key: %w", err)
	}
	sysKey, err := identity.LoadOrGenerateSeed(cfg.Paths.SysNkeySeedFile, identity.PrefixSys)
	if err != nil {
		return fmt.Errorf("loading sys key: %w", err)
	}

	credsPath := cfg.Paths.HostCredsFile
	if credsPath == "" {
		credsPath = filepath.Join(filepath.Dir(cfg.Paths.HostNkeySeedFile), "host.creds")
	}
	creds, err := identity.LoadCredentials(credsPath)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	busPass := cfg.BusPass
	if creds.State() == identity.StateAuthenticated {
		busPass = creds.JWT()
	}
	rdb, err := dialBus(cfg.BusURL, cfg.BusUser, busPass)
	if err != nil {
		return fmt.Errorf("dialing bus: %w", err)
	}
	defer rdb.Close()

	busSvc := hostagentBus(rdb, deviceID)

	if creds.State() != identity.StateAuthenticated {
		resp, err := requestValidation(context.Background(), busSvc, hostKey, sysKey, deviceID)
		if err != nil {
			log.Errorf("hostagent: initial validation handshake failed, continuing with guard credentials", err)
		} else {
			upgraded, err := creds.Upgrade(resp.HostJWT, credsPath)
			if err != nil {
				log.Errorf("hostagent: persisting upgraded credentials", err)
			} else {
				creds = upgraded
				log.Info("hostagent: upgraded to authenticated credentials")
			}
		}
	}

	socketPath, _ := cmd.Flags().GetString("containerd-socket")
	runtime, err := executor.NewContainerRuntime(socketPath)
	if err != nil {
		return fmt.Errorf("connecting to containerd: %w", err)
	}
	defer runtime.Close()

	blobsPath, _ := cmd.Flags().GetString("blobstore-path")
	blobs, err := blobstore.Open(blobsPath)
	if err != nil {
		return fmt.Errorf("opening blob store: %w", err)
	}

	exec := executor.NewExecutor(runtime, nil, blobs)

	statusDBPath, _ := cmd.Flags().GetString("status-db-path")
	agent, err := hostagent.NewAgent(hostagent.Config{
		DeviceID:     deviceID,
		Bus:          busSvc,
		Redis:        rdb,
		Runner:       exec,
		StatusDBPath: statusDBPath,
	})
	if err != nil {
		return fmt.Errorf("building host agent: %w", err)
	}

	startCtx, cancelStart := context.WithCancel(context.Background())
	defer cancelStart()
	if err := agent.Start(startCtx); err != nil {
		return fmt.Errorf("starting host agent: %w", err)
	}
	defer agent.Stop()

	rotation := identity.NewRotationSweep(func(ctx context.Context, name string, current identity.Credentials) error {
		resp, err := requestValidation(ctx, busSvc, hostKey, sysKey, deviceID)
		if err != nil {
			return fmt.Errorf("re-validating %q: %w", name, err)
		}
		// current is authenticated (only authenticated credentials are
		// ever due), and Upgrade refuses those, so the re-issued JWT is
		// persisted through a fresh guard set.
		upgraded, err := identity.NewGuardCredentials().Upgrade(resp.HostJWT, credsPath)
		if err != nil {
			return fmt.Errorf("persisting rotated %q: %w", name, err)
		}
		creds = upgraded
		return nil
	})
	rotation.Watch("host", func() (identity.Credentials, error) { return creds, nil })
	if err := rotation.Start("@every 1h"); err != nil {
		return fmt.Errorf("starting rotation sweep: %w", err)
	}
	defer rotation.Stop()

	adminAddr, _ := cmd.Flags().GetString("admin-addr")
	admin := newAdminServer(rdb, runtime)
	go func() {
		fmt.Printf("admin endpoints: http://%s/{healthz,readyz,metrics}\n", adminAddr)
		if err := http.ListenAndServe(adminAddr, admin); err != nil {
			log.Errorf("hostagent: admin server error", err)
		}
	}()

	fmt.Printf("host agent started (device_id=%s)\n", deviceID)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("shutting down...")
	return nil
}
