package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/agentpanel/internal/eventloop"
	"github.com/zjrosen/agentpanel/internal/log"
	"github.com/zjrosen/agentpanel/internal/metrics"
	"github.com/zjrosen/agentpanel/internal/presentation"
	"github.com/zjrosen/agentpanel/internal/protocol/outbound"
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
	"github.com/zjrosen/agentpanel/internal/session"
	"github.com/zjrosen/agentpanel/internal/tracing"
	"github.com/zjrosen/agentpanel/internal/wire"
)

var (
	replayOutput string
	replayStats  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture.jsonl|->",
	Short: "Replay captured host broadcasts and print the resulting UI state",
	Long: `Replay feeds every line of a capture through a fresh UI session, in order,
and prints what the session knows afterwards: roster, task queue, memories,
typing indicators, retries, host errors, auth and suggestions.

Lines that are not valid JSON, not envelopes, of unknown kinds, or whose
payload does not match their kind are dropped and counted.

Examples:
  agentpanel replay capture.jsonl
  agentpanel replay capture.jsonl -o yaml --stats
  cat capture.jsonl | agentpanel replay -`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVarP(&replayOutput, "output", "o", presentation.FormatJSON, "output format (json or yaml)")
	replayCmd.Flags().BoolVar(&replayStats, "stats", false, "include dispatch counters")
	rootCmd.AddCommand(replayCmd)
}

type replayReport struct {
	Snapshot session.Snapshot `json:"snapshot" yaml:"snapshot"`
	Metrics  []metrics.Sample `json:"metrics" yaml:"metrics"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	formatter, err := presentation.NewFormatter(cmd.OutOrStdout(), replayOutput)
	if err != nil {
		return err
	}

	in, closeIn, err := openInput(cmd, args[0])
	if err != nil {
		return err
	}
	defer closeIn()

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("creating tracer: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			log.ErrorErr(log.CatTrace, "tracer shutdown failed", err)
		}
	}()

	m := metrics.New()
	// Requests have nowhere to go during a replay.
	port := outbound.PortFunc(func(_ context.Context, env schema.Envelope) error {
		log.Debug(log.CatOutbound, "replay discards request", "kind", env.Kind)
		return nil
	})
	s := session.New(port,
		session.WithProtocol(cfg.Protocol),
		session.WithTracer(provider.Tracer()),
		session.WithMetrics(m),
	)
	defer s.Close()

	if err := replay(cmd.Context(), s, in, m, cfg.Protocol.QueueCapacity); err != nil {
		return err
	}

	if !replayStats {
		return formatter.Format(s.Snapshot())
	}
	samples, err := m.Summary()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	return formatter.Format(replayReport{Snapshot: s.Snapshot(), Metrics: samples})
}

// replay pushes every line of r through the session's event loop and waits
// until all of them are dispatched. The reader is paced to the queue so no
// line is lost to a full queue.
func replay(ctx context.Context, s *session.Session, r io.Reader, m *metrics.Dispatch, capacity int) error {
	loop := eventloop.New(s.Dispatcher(),
		eventloop.WithQueueCapacity(capacity),
		eventloop.WithMetrics(m),
	)
	go loop.Run(ctx)
	if err := loop.WaitForReady(ctx); err != nil {
		return err
	}

	scanErr := wire.Scan(ctx, r, func(line wire.Line) error {
		for loop.QueueLength() >= capacity {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
		}
		return loop.SubmitLine(line)
	})
	loop.Drain()
	if scanErr != nil {
		return fmt.Errorf("replaying capture: %w", scanErr)
	}

	log.Info(log.CatDispatch, "replay finished",
		"processed", loop.ProcessedCount(),
		"dropped", loop.DroppedCount(),
		"handler_errors", loop.HandlerErrorCount())
	return nil
}

// openInput opens a capture file, or stdin for "-".
func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path) //nolint:gosec // G304: capture path is user-supplied
	if err != nil {
		return nil, nil, fmt.Errorf("opening capture: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
