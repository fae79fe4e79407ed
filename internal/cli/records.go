package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AppleFlash/BackgroundRealm/internal/gateway"
	"github.com/AppleFlash/BackgroundRealm/internal/reactive"
	"github.com/AppleFlash/BackgroundRealm/internal/record"
	"github.com/AppleFlash/BackgroundRealm/internal/store"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	qopts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "get <kind>",
		Short: "Print the last record matching a query",
		Long: `Print the last record of a kind matching the --where terms, in result
order. Exits with status 1 when nothing matches.

Examples:
  bgrealm get User --where id=u1
  bgrealm get User --where age>=30 --order age`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session, out *OutputFormatter) error {
				q, err := buildQuery(args[0], qopts)
				if err != nil {
					return err
				}
				obj, err := gateway.Get(s.gateway, q, objectDecoder).Await(ctx)
				if err != nil {
					return err
				}
				if obj == nil {
					return WrapExitError(ExitFailure, args[0], errNoMatch)
				}
				return out.Records([]record.Object{*obj})
			})
		},
	}
	addQueryFlags(cmd, qopts)
	return cmd
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	QueryOptions
	Offset int
	Limit  int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "Print every record matching a query",
		Long: `Print the records of a kind matching the --where terms.

--offset and --limit select a window of the result; windows reaching past
the end are clamped.

Examples:
  bgrealm list User
  bgrealm list User --order=-age --limit 10 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Offset < 0 || opts.Limit < 0 {
				return report(rootOpts.formatter(cmd), NewExitError(ExitCommandError, "--offset and --limit must not be negative"))
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session, out *OutputFormatter) error {
				q, err := buildQuery(args[0], &opts.QueryOptions)
				if err != nil {
					return err
				}
				objs, err := reactive.AsSingle("list",
					gateway.ListenArray(s.gateway, q, opts.window(), objectDecoder)).Await(ctx)
				if err != nil {
					return err
				}
				out.VerboseLog("%d record(s)", len(objs))
				return out.Records(objs)
			})
		},
	}
	addQueryFlags(cmd, &opts.QueryOptions)
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "skip this many records")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "print at most this many records (0 = all)")
	return cmd
}

// window returns the result range, or nil for the whole result.
func (o *ListOptions) window() *gateway.Range {
	if o.Offset == 0 && o.Limit == 0 {
		return nil
	}
	end := int(^uint(0) >> 1)
	if o.Limit > 0 {
		end = o.Offset + o.Limit
	}
	return &gateway.Range{Start: o.Offset, End: end}
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	qopts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "count <kind>",
		Short: "Count the records matching a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session, out *OutputFormatter) error {
				q, err := buildQuery(args[0], qopts)
				if err != nil {
					return err
				}
				n, err := s.gateway.Count(q).Await(ctx)
				if err != nil {
					return err
				}
				if out.Format == "json" {
					return out.Success(map[string]int{"count": n})
				}
				return out.Success(n)
			})
		},
	}
	addQueryFlags(cmd, qopts)
	return cmd
}

// PutOptions holds flags for the put command.
type PutOptions struct {
	Policy string
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{}

	cmd := &cobra.Command{
		Use:   "put <kind> <json>...",
		Short: "Save records",
		Long: `Save one or more JSON objects as records of a kind, in one transaction.

--policy decides what happens when a record with the same primary key
exists: error rejects the write, modified replaces it only if the body
differs, all always replaces it.

Examples:
  bgrealm put User '{"id":"u1","name":"Ann","age":31}'
  bgrealm put User '{"id":"u1","name":"Ann"}' --policy error`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			policy, err := parsePolicy(opts.Policy)
			if err != nil {
				return report(out, err)
			}
			objs, err := parseObjects(args[1:])
			if err != nil {
				return report(out, err)
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session, out *OutputFormatter) error {
				if _, err := gateway.SaveAll(s.gateway, args[0], objs, objectEncoder, policy).Await(ctx); err != nil {
					return err
				}
				out.VerboseLog("saved %d %s record(s) with policy %s", len(objs), args[0], policy)
				if out.Format == "json" {
					return out.Success(map[string]int{"saved": len(objs)})
				}
				return out.Success(fmt.Sprintf("saved %d record(s)", len(objs)))
			})
		},
	}
	cmd.Flags().StringVar(&opts.Policy, "policy", "modified", "conflict policy (error|modified|all)")
	return cmd
}

func parsePolicy(s string) (store.UpdatePolicy, error) {
	for _, p := range []store.UpdatePolicy{store.UpdateError, store.UpdateModified, store.UpdateAll} {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid policy %q: must be one of error, modified, all", s))
}

func parseObjects(args []string) ([]record.Object, error) {
	objs := make([]record.Object, 0, len(args))
	for i, arg := range args {
		obj, err := record.Unmarshal([]byte(arg))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("record %d is not a JSON object", i+1), err)
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	QueryOptions
	All bool
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{}

	cmd := &cobra.Command{
		Use:   "delete <kind>",
		Short: "Delete the records matching a query",
		Long: `Delete the records of a kind matching the --where terms. Deleting every
record of the kind requires --all.

Examples:
  bgrealm delete User --where id=u1
  bgrealm delete User --all`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.Where) == 0 && !opts.All {
				return report(rootOpts.formatter(cmd), NewExitError(ExitCommandError, "refusing to delete every record without --all"))
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session, out *OutputFormatter) error {
				q, err := buildQuery(args[0], &opts.QueryOptions)
				if err != nil {
					return err
				}
				var deleted int64
				_, err = s.gateway.UpdateAction(ctx, func(ctx context.Context, tx *store.Tx) error {
					n, err := tx.Delete(ctx, q)
					deleted = n
					return err
				}).Await(ctx)
				if err != nil {
					return err
				}
				if out.Format == "json" {
					return out.Success(map[string]int64{"deleted": deleted})
				}
				return out.Success(fmt.Sprintf("deleted %d record(s)", deleted))
			})
		},
	}
	addQueryFlags(cmd, &opts.QueryOptions)
	cmd.Flags().BoolVar(&opts.All, "all", false, "allow deleting every record of the kind")
	return cmd
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every record of every kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return report(rootOpts.formatter(cmd), NewExitError(ExitCommandError, "purge deletes everything; pass --yes to confirm"))
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session, out *OutputFormatter) error {
				if err := s.gateway.DeleteAll(ctx); err != nil {
					return err
				}
				return out.Success("store purged")
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting everything")
	return cmd
}
