package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/agentpanel/internal/presentation"
	"github.com/zjrosen/agentpanel/internal/protocol/conformance"
	"github.com/zjrosen/agentpanel/internal/protocol/messages"
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
)

var (
	schemaOutput    string
	schemaSubsystem string
	schemaWithDocs  bool
	checkOutput     string
	checkStrict     bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect the message catalog",
}

var schemaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered kind",
	Long: `List every registered kind with its subsystem, direction and whether its
payload may be omitted.

Examples:
  agentpanel schema list
  agentpanel schema list --subsystem memory -o yaml
  agentpanel schema list --with-schema | jq '.[].schema'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		formatter, err := presentation.NewFormatter(cmd.OutOrStdout(), schemaOutput)
		if err != nil {
			return err
		}
		reg := messages.Registry()
		entries := reg.Entries()
		if schemaSubsystem != "" {
			entries = entriesOf(reg, schema.Subsystem(schemaSubsystem))
			if len(entries) == 0 {
				return fmt.Errorf("unknown subsystem %q (known: %v)", schemaSubsystem, reg.Subsystems())
			}
		}
		return formatter.FormatKinds(presentation.FromEntries(entries, schemaWithDocs))
	},
}

var schemaExportCmd = &cobra.Command{
	Use:   "export [kind]",
	Short: "Export envelope JSON Schemas",
	Long: `Export the draft-07 JSON Schema of one kind's envelope, or of every kind
keyed by kind name.

Examples:
  agentpanel schema export > catalog.json
  agentpanel schema export AGENT_TYPING -o yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := presentation.NewFormatter(cmd.OutOrStdout(), schemaOutput)
		if err != nil {
			return err
		}
		reg := messages.Registry()
		if len(args) == 0 {
			return formatter.Format(reg.Catalog())
		}
		doc, err := reg.EnvelopeSchema(args[0])
		if err != nil {
			return err
		}
		return formatter.Format(doc)
	},
}

var schemaCheckCmd = &cobra.Command{
	Use:   "check <capture.jsonl|->",
	Short: "Check a capture against the validators and the exported schemas",
	Long: `Check judges every line of a capture twice: with the runtime validator and
with the exported JSON Schema of its kind. Each line reports both verdicts
and whether they agree.

With --strict the command fails when any line is invalid.

Examples:
  agentpanel schema check capture.jsonl
  agentpanel schema check capture.jsonl --strict -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := presentation.NewFormatter(cmd.OutOrStdout(), checkOutput)
		if err != nil {
			return err
		}
		in, closeIn, err := openInput(cmd, args[0])
		if err != nil {
			return err
		}
		defer closeIn()

		report, err := conformance.New(messages.Registry()).Run(cmd.Context(), in)
		if err != nil {
			return err
		}
		if err := formatter.FormatCheckReport(report); err != nil {
			return err
		}
		if report.Disagreed > 0 {
			return fmt.Errorf("%d line(s) where validator and schema disagree", report.Disagreed)
		}
		if checkStrict && report.Invalid > 0 {
			return fmt.Errorf("%d of %d line(s) invalid", report.Invalid, report.Total)
		}
		return nil
	},
}

func entriesOf(reg *schema.Registry, sub schema.Subsystem) []schema.Entry {
	var out []schema.Entry
	for _, kind := range reg.Kinds(sub) {
		if e, ok := reg.Lookup(kind); ok {
			out = append(out, e)
		}
	}
	return out
}

func init() {
	for _, c := range []*cobra.Command{schemaListCmd, schemaExportCmd} {
		c.Flags().StringVarP(&schemaOutput, "output", "o", presentation.FormatJSON, "output format (json or yaml)")
	}
	schemaListCmd.Flags().StringVarP(&schemaSubsystem, "subsystem", "s", "", "only list kinds of this subsystem")
	schemaListCmd.Flags().BoolVar(&schemaWithDocs, "with-schema", false, "include each envelope schema")
	schemaCheckCmd.Flags().StringVarP(&checkOutput, "output", "o", presentation.FormatJSON, "output format (json or yaml)")
	schemaCheckCmd.Flags().BoolVar(&checkStrict, "strict", false, "fail when any line is invalid")

	schemaCmd.AddCommand(schemaListCmd, schemaExportCmd, schemaCheckCmd)
	rootCmd.AddCommand(schemaCmd)
}
