package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zjrosen/agentpanel/internal/follow"
	"github.com/zjrosen/agentpanel/internal/inspector"
	"github.com/zjrosen/agentpanel/internal/log"
	"github.com/zjrosen/agentpanel/internal/metrics"
	"github.com/zjrosen/agentpanel/internal/session"
	"github.com/zjrosen/agentpanel/internal/tracing"
	"github.com/zjrosen/agentpanel/internal/wire"
)

var (
	watchNewOnly  bool
	watchRequests string
)

var watchCmd = &cobra.Command{
	Use:   "watch <capture.jsonl>",
	Short: "Follow a growing capture in a terminal inspector",
	Long: `Watch tails a capture file the host appends broadcasts to and dispatches
every new line through a live UI session, showing each envelope, the roster,
and typing indicators as they change.

Requests made from the inspector (r to refresh) are appended as envelope
lines to the --requests file, or discarded when none is given.

Examples:
  agentpanel watch host.jsonl
  agentpanel watch host.jsonl --new-only --requests ui.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchNewOnly, "new-only", false, "skip lines already in the file")
	watchCmd.Flags().StringVar(&watchRequests, "requests", "", "append outbound requests to this file")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving capture path: %w", err)
	}

	followCfg := follow.DefaultConfig(path)
	followCfg.FromStart = !watchNewOnly
	follower, err := follow.New(followCfg)
	if err != nil {
		return err
	}
	lines, err := follower.Start()
	if err != nil {
		return err
	}
	defer func() { _ = follower.Stop() }()

	port := wire.NewLineWriter(io.Discard)
	if watchRequests != "" {
		f, err := os.OpenFile(watchRequests, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: requests path is user-supplied
		if err != nil {
			return fmt.Errorf("opening requests file: %w", err)
		}
		defer func() { _ = f.Close() }()
		port = wire.NewLineWriter(f)
	}

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("creating tracer: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			log.ErrorErr(log.CatTrace, "tracer shutdown failed", err)
		}
	}()

	s := session.New(port,
		session.WithProtocol(cfg.Protocol),
		session.WithTracer(provider.Tracer()),
		session.WithMetrics(metrics.New()),
	)
	defer s.Close()

	return inspector.Run(cmd.Context(), s, lines, inspector.Config{
		MaxEvents:    cfg.Inspector.MaxEvents,
		ShowPayloads: cfg.Inspector.ShowPayloads,
		Title:        filepath.Base(path),
	})
}
