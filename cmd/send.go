package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/agentpanel/internal/metrics"
	"github.com/zjrosen/agentpanel/internal/protocol/messages"
	"github.com/zjrosen/agentpanel/internal/protocol/outbound"
	"github.com/zjrosen/agentpanel/internal/wire"
)

var sendPayload string

var sendCmd = &cobra.Command{
	Use:   "send <kind>",
	Short: "Validate a request and write it as one envelope line",
	Long: `Send builds a UI-to-host request envelope and writes it to stdout as one
line of JSON, ready to be piped to the host. The payload is checked against
the kind's shape first; nothing is written when it does not conform.

Examples:
  agentpanel send get-agents-status
  agentpanel send request-memory-snapshot --payload '{"agentId":"agent-1"}'
  agentpanel send agent-retry-request -p '{"agentId":"a1","taskId":"t1"}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload any
		if sendPayload != "" {
			v, err := wire.Decode([]byte(sendPayload))
			if err != nil {
				return fmt.Errorf("parsing --payload: %w", err)
			}
			payload = v
		}

		client := outbound.New(wire.NewLineWriter(cmd.OutOrStdout()), messages.Registry(),
			outbound.WithMetrics(metrics.New()))
		return client.SendRaw(cmd.Context(), args[0], payload)
	},
}

func init() {
	sendCmd.Flags().StringVarP(&sendPayload, "payload", "p", "", "payload as a JSON document")
	rootCmd.AddCommand(sendCmd)
}
