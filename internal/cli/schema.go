package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// KindView is the JSON form of a declared record kind.
type KindView struct {
	Name       string   `json:"name"`
	PrimaryKey string   `json:"primary_key,omitempty"`
	Lists      []string `json:"lists,omitempty"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the record kinds the store accepts",
		Long: `Compile the configured CUE schema and print its record kinds. The
database is not opened.

Example:
  bgrealm schema --schema ./kinds.cue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return report(out, err)
			}
			kinds, err := cfg.LoadSchema()
			if err != nil {
				return report(out, WrapExitError(ExitCommandError, "failed to load schema", err))
			}

			views := make([]KindView, 0, len(kinds.Kinds()))
			for _, k := range kinds.Kinds() {
				views = append(views, KindView{Name: k.Name, PrimaryKey: k.PrimaryKey, Lists: k.Lists})
			}
			if out.Format == "json" {
				return out.Success(views)
			}
			for _, v := range views {
				line := v.Name
				if v.PrimaryKey != "" {
					line += " key=" + v.PrimaryKey
				}
				if len(v.Lists) > 0 {
					line += " lists=" + strings.Join(v.Lists, ",")
				}
				if _, err := fmt.Fprintln(out.Writer, line); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
