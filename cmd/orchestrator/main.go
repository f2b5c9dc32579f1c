package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/holo-host/hpos-core/pkg/authcallout"
	"github.com/holo-host/hpos-core/pkg/bus"
	"github.com/holo-host/hpos-core/pkg/config"
	"github.com/holo-host/hpos-core/pkg/identity"
	"github.com/holo-host/hpos-core/pkg/log"
	"github.com/holo-host/hpos-core/pkg/reconciler"
	"github.com/holo-host/hpos-core/pkg/store"
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
	Use:     "orchestrator",
	Short:   "hpos-core orchestrator: identity keystore, auth-callout and workload reconciler",
	Version: Version,
	RunE:    runOrchestrator,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("orchestrator version %s\nCommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().String("admin-addr", "127.0.0.1:9090", "Admin HTTP address (healthz/readyz/metrics)")
	rootCmd.Flags().String("nonce-cache-path", "./orchestrator-data/nonces.db", "Path to the auth-callout nonce replay cache")
	rootCmd.Flags().Duration("nonce-window", 5*time.Minute, "Replay window the nonce cache rejects duplicates within")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

func runOrchestrator(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrchestratorConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	rootKey, err := identity.LoadOrGenerateSeed(cfg.RootAuthNkeySeedFile, identity.PrefixAccount)
	if err != nil {
		return fmt.Errorf("loading root auth key: %w", err)
	}
	signingKey, err := identity.LoadOrGenerateSeed(cfg.SigningAuthNkeySeedFile, identity.PrefixAccount)
	if err != nil {
		return fmt.Errorf("loading signing auth key: %w", err)
	}
	// SYS account shares the signing seed's directory convention but is
	// its own account key; no dedicated env var exists yet for it, so it
	// is derived alongside the signing key file rather than invented.
	sysKey, err := identity.LoadOrGenerateSeed(cfg.SigningAuthNkeySeedFile+".sys", identity.PrefixAccount)
	if err != nil {
		return fmt.Errorf("loading sys account key: %w", err)
	}

	db, err := store.Open(cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	rdb, err := dialBus(cfg.BusURL, cfg.BusUser, cfg.BusPass)
	if err != nil {
		return fmt.Errorf("dialing bus: %w", err)
	}
	defer rdb.Close()

	// Every process binds the same root service subject: AUTH and
	// WORKLOAD subjects are shared between the orchestrator and every
	// host agent, so a stream key derived from a per-role subject here
	// would never rendezvous with the host side's.
	busSvc := bus.NewService(rdb, busServiceSubject)

	nonceCachePath, _ := cmd.Flags().GetString("nonce-cache-path")
	nonceWindow, _ := cmd.Flags().GetDuration("nonce-window")
	nonces, err := authcallout.OpenNonceCache(nonceCachePath, nonceWindow)
	if err != nil {
		return fmt.Errorf("opening nonce cache: %w", err)
	}
	defer nonces.Close()

	callout := &authcallout.Service{
		Store:      db,
		SigningKey: signingKey,
		SysKey:     sysKey,
		RootKey:    rootKey,
		Nonces:     nonces,
	}
	if err := busSvc.AddConsumer("auth-callout", "$SYS.REQ.USER.AUTH", callout.CalloutHandler(), nil); err != nil {
		return fmt.Errorf("registering auth callout consumer: %w", err)
	}
	if err := busSvc.AddConsumer("auth-validate", "AUTH.validate", callout.ValidateHandler(), authcallout.ValidateReplySubjects); err != nil {
		return fmt.Errorf("registering auth validate consumer: %w", err)
	}
	defer busSvc.DeleteConsumer("auth-callout")
	defer busSvc.DeleteConsumer("auth-validate")

	recon := reconciler.NewReconciler(db, busSvc)
	ctx, cancelRecon := context.WithCancel(context.Background())
	defer cancelRecon()
	if err := recon.Start(ctx, cfg.StoreDSN); err != nil {
		return fmt.Errorf("starting reconciler: %w", err)
	}
	defer recon.Stop()

	rotation := identity.NewRotationSweep(func(ctx context.Context, name string, current identity.Credentials) error {
		log.Warn(fmt.Sprintf("orchestrator: credential %q is due for rotation but no re-issuance path is wired for orchestrator-held account keys yet", name))
		return nil
	})
	if err := rotation.Start("@every 1h"); err != nil {
		return fmt.Errorf("starting rotation sweep: %w", err)
	}
	defer rotation.Stop()

	adminAddr, _ := cmd.Flags().GetString("admin-addr")
	admin := newAdminServer(db, rdb)
	go func() {
		fmt.Printf("admin endpoints: http://%s/{healthz,readyz,metrics}\n", adminAddr)
		if err := http.ListenAndServe(adminAddr, admin); err != nil {
			log.Errorf("orchestrator: admin server error", err)
		}
	}()

	fmt.Println("orchestrator started")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("shutting down...")
	return nil
}
