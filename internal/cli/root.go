package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string
	SchemaPath string
}

// QueryOptions holds the flags shared by commands that select records.
type QueryOptions struct {
	Where []string
	Order []string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the bgrealm CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "bgrealm",
		Short: "bgrealm - inspect and edit a BackgroundRealm store",
		Long: `Read, write and watch the records of a BackgroundRealm store.

Record kinds come from the schema file named by --schema or the config
file, or from the built-in User and UserContainer kinds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.SchemaPath, "schema", "", "path to CUE schema file (overrides config)")

	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewPurgeCommand(opts))
	cmd.AddCommand(NewChildCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// addQueryFlags registers --where and --order on cmd.
func addQueryFlags(cmd *cobra.Command, opts *QueryOptions) {
	cmd.Flags().StringArrayVarP(&opts.Where, "where", "w", nil, "filter term field<op>value, op one of = != < <= > >= (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Order, "order", nil, "sort field, prefix with - for descending (repeatable)")
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
