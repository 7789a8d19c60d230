package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gqlscope/internal/audit"
	"gqlscope/internal/bridge"
	"gqlscope/internal/config"
	"gqlscope/internal/inspector"
	"gqlscope/internal/logging"
	"gqlscope/internal/redact"
	"gqlscope/internal/refclient"
)

type serveOptions struct {
	configPath string
	demo       bool
}

func newServeCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Attach to the built-in client and serve the inspection bridge",
		Long: `Load the YAML config, attach the inspector to a built-in GraphQL
client pointed at the configured endpoint, and serve the websocket event
channel on the configured listen address under /inspect.

With --demo, a small query/mutation workload runs against the endpoint so
connected inspectors have live traffic to watch.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "gqlscope.yaml", "path to YAML config")
	cmd.Flags().BoolVar(&opts.demo, "demo", false, "run a demo workload against the endpoint")

	return cmd
}

func runServe(opts *serveOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logger := logging.Setup(cfg.Log.Format, cfg.Log.Level)
	session := uuid.NewString()
	logger.Info("starting", "session", session, "endpoint", cfg.Endpoint, "listen", cfg.Listen)

	var trail *audit.Trail
	if cfg.Audit.Path != "" {
		trail, err = audit.NewTrail(cfg.Audit.Path)
		if err != nil {
			return fmt.Errorf("open audit trail: %w", err)
		}
		defer trail.Close()
		logger.Info("session trail enabled", "path", cfg.Audit.Path)
	}

	hub := bridge.New(logger, session)
	if trail != nil {
		hub.SetTrail(trail)
	}

	masker := redact.NewMasker()
	masker.AddMarkers(cfg.Redact.Markers)

	insp := inspector.New(hub, masker, logger)
	if trail != nil {
		insp.SetTrail(trail, session)
	}
	hub.SetControlHandler(insp.HandleControl)

	client := refclient.New(cfg.Endpoint)
	if err := insp.Attach(inspector.AttachOptions{
		Client:              client,
		ClientType:          "builtin",
		IncludeVariables:    cfg.Tracking.IncludeVariables,
		IncludeResponseData: cfg.Tracking.IncludeResponseData,
		MaxInFlight:         cfg.Tracking.MaxInFlight,
		PollInterval:        cfg.PollInterval(),
		SyntheticDuration:   cfg.SyntheticDuration(),
	}); err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	defer insp.Detach()

	mux := http.NewServeMux()
	mux.Handle("/inspect", hub)
	srv := &http.Server{Addr: cfg.Listen, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("bridge listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	workloadCtx, stopWorkload := context.WithCancel(context.Background())
	defer stopWorkload()
	if opts.demo {
		go runDemoWorkload(workloadCtx, client, logger)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("bridge server failed", "error", err)
		return err
	}

	stopWorkload()
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runDemoWorkload keeps a trickle of queries and mutations flowing so a
// connected inspector sees starts, completions, cache hits and refetches.
func runDemoWorkload(ctx context.Context, client *refclient.Client, logger *slog.Logger) {
	const userQuery = `query GetUser($id: ID!) { user(id: $id) { __typename id name } }`
	const renameMutation = `mutation RenameUser($id: ID!, $name: String!) { renameUser(id: $id, name: $name) { __typename id name } }`

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n++
		id := fmt.Sprintf("%d", n%3+1)
		if _, err := client.Query(ctx, userQuery, map[string]any{"id": id}); err != nil {
			logger.Warn("demo query failed", "error", err)
		}
		if n%5 == 0 {
			if _, err := client.Mutate(ctx, renameMutation, map[string]any{"id": id, "name": fmt.Sprintf("user-%d", n)}); err != nil {
				logger.Warn("demo mutation failed", "error", err)
			}
		}
		if n%7 == 0 {
			if _, err := client.Refetch(ctx, userQuery, map[string]any{"id": id}); err != nil {
				logger.Warn("demo refetch failed", "error", err)
			}
		}
	}
}
