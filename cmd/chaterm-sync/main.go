// chaterm-sync is the local-first sync daemon and CLI for Chaterm asset
// data: it captures local changes, ships them to the sync server and
// applies server changes back into the local database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/authstore"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/config"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/controller"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/cryptoprov"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/remote"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/storage/sqlite"
)

// Version information set via ldflags during build.
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "chaterm-sync",
		Short:         "Chaterm asset sync daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "directory containing config.yaml")

	root.AddCommand(
		newDaemonCmd(),
		newSyncCmd(),
		newFullSyncCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the composed subsystem for one command invocation.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  *sqlite.Store
	auth   *authstore.Store
	ctl    *controller.Controller
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)

	store, err := sqlite.Open(ctx, cfg.DataDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open data store: %w", err)
	}

	auth, err := authstore.New(ctx, cfg.AuthDBPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open auth store: %w", err)
	}

	client := remote.NewClient(cfg.ServerURL, auth, logger)

	crypto := cryptoprov.New(logger)
	if userID, err := auth.GetUserID(ctx); err == nil {
		// Startup is never blocked by crypto state; sync simply stays
		// gated until initialization succeeds.
		_ = crypto.Initialize(userID, true)
	}

	ctl := controller.New(cfg, store, client, crypto, logger)
	return &app{cfg: cfg, logger: logger, store: store, auth: auth, ctl: ctl}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.ctl.Destroy(ctx); err != nil {
		a.logger.Error("shutdown failed", "error", err)
	}
	if err := a.auth.Close(); err != nil {
		a.logger.Error("failed to close auth store", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the sync loops until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			// Startup convergence, then steady-state loops.
			if res := a.ctl.FullSyncAll(ctx); !res.Success {
				a.logger.Warn("startup full sync failed", "message", res.Message)
			}
			a.ctl.StartAutoSync()

			a.logger.Info("sync daemon running",
				"version", Version, "server", a.cfg.ServerURL)
			<-ctx.Done()
			a.logger.Info("shutting down")
			return nil
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one incremental sync pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			res := a.ctl.SyncNow(cmd.Context())
			if !res.Success {
				return fmt.Errorf("sync failed: %s", res.Message)
			}
			fmt.Printf("synced %d changes", res.SyncedCount)
			if res.Message != "" {
				fmt.Printf(" (%s)", res.Message)
			}
			fmt.Println()
			return nil
		},
	}
}

func newFullSyncCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "full-sync",
		Short: "Run a full table resync",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			var res controller.Result
			if force {
				res = a.ctl.FullSyncNow(cmd.Context())
			} else {
				res = a.ctl.FullSyncAll(cmd.Context())
			}
			if !res.Success {
				return fmt.Errorf("full sync failed: %s", res.Message)
			}
			if res.Message != "" {
				fmt.Println(res.Message)
			} else {
				fmt.Println("full sync complete")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "resync even when already converged")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			status, err := a.ctl.GetSystemStatus(cmd.Context())
			if err != nil {
				return err
			}

			authenticated, err := a.auth.IsAuthenticated(cmd.Context())
			if err != nil {
				return err
			}

			out := map[string]any{
				"authenticated":    authenticated,
				"encryption_ready": status.EncryptionReady,
				"last_sequence_id": status.LastSequenceID,
				"pending_changes":  status.PendingChanges,
				"last_full_sync":   status.LastFullSync,
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chaterm-sync %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		},
	}
}
