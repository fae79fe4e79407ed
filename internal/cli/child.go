package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AppleFlash/BackgroundRealm/internal/gateway"
	"github.com/AppleFlash/BackgroundRealm/internal/query"
	"github.com/AppleFlash/BackgroundRealm/internal/record"
)

// ChildOptions addresses an embedded child list.
type ChildOptions struct {
	Container string
	ID        string
	List      string
	Key       string
	Create    bool
}

// NewChildCommand creates the child command group.
func NewChildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChildOptions{}

	cmd := &cobra.Command{
		Use:   "child",
		Short: "Edit the ordered child list embedded in a container record",
		Long: `Edit the ordered child list embedded in a container record.

The container is the record of --container whose primary key is --id.
Children in --list are matched by their --key field.

Examples:
  bgrealm child add --id main '{"id":"u1","name":"Ann"}' --create
  bgrealm child update --id main '{"id":"u1","name":"Anna"}'
  bgrealm child remove --id main u1`,
	}

	cmd.PersistentFlags().StringVar(&opts.Container, "container", "UserContainer", "container kind")
	cmd.PersistentFlags().StringVar(&opts.ID, "id", "", "container primary key (required)")
	cmd.PersistentFlags().StringVar(&opts.List, "list", "users", "list field of the container")
	cmd.PersistentFlags().StringVar(&opts.Key, "key", "id", "child identity field")
	_ = cmd.MarkPersistentFlagRequired("id")

	add := &cobra.Command{
		Use:   "add <json>...",
		Short: "Append children to the end of the list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChild(cmd, rootOpts, opts, args, func(ctx context.Context, s *session, l gateway.List, children []record.Object) error {
				if opts.Create {
					pk, err := containerKey(s, opts)
					if err != nil {
						return err
					}
					empty := record.Object{pk: parseValue(opts.ID)}.WithObjects(opts.List, nil)
					if _, err := gateway.SaveContainerIfAbsent(s.gateway, l, empty, objectEncoder).Await(ctx); err != nil {
						return err
					}
				}
				_, err := gateway.AppendChildren(s.gateway, l, children, objectEncoder).Await(ctx)
				return err
			})
		},
	}
	add.Flags().BoolVar(&opts.Create, "create", false, "create the container if it does not exist")

	update := &cobra.Command{
		Use:   "update <json>",
		Short: "Replace a child in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChild(cmd, rootOpts, opts, args, func(ctx context.Context, s *session, l gateway.List, children []record.Object) error {
				_, err := gateway.UpdateChild(s.gateway, l, children[0], objectEncoder).Await(ctx)
				return err
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <key>",
		Short: "Remove a child from the list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session, out *OutputFormatter) error {
				l, err := childList(s, opts)
				if err != nil {
					return err
				}
				if _, err := s.gateway.DeleteChild(l, parseValue(args[0])).Await(ctx); err != nil {
					return err
				}
				return out.Success(fmt.Sprintf("removed %s from %s.%s", args[0], opts.Container, opts.List))
			})
		},
	}

	cmd.AddCommand(add, update, remove)
	return cmd
}

func runChild(cmd *cobra.Command, rootOpts *RootOptions, opts *ChildOptions, args []string,
	fn func(ctx context.Context, s *session, l gateway.List, children []record.Object) error) error {
	children, err := parseObjects(args)
	if err != nil {
		return report(rootOpts.formatter(cmd), err)
	}
	return withSession(cmd, rootOpts, func(ctx context.Context, s *session, out *OutputFormatter) error {
		l, err := childList(s, opts)
		if err != nil {
			return err
		}
		if err := fn(ctx, s, l, children); err != nil {
			return err
		}
		return out.Success(fmt.Sprintf("%s.%s updated", opts.Container, opts.List))
	})
}

// containerKey returns the primary key field of the container kind.
func containerKey(s *session, opts *ChildOptions) (string, error) {
	k, err := s.store.Kind(opts.Container)
	if err != nil {
		return "", err
	}
	if !k.Keyed() {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("kind %s has no primary key", opts.Container))
	}
	if !k.HasList(opts.List) {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("kind %s declares no list %q", opts.Container, opts.List))
	}
	return k.PrimaryKey, nil
}

func childList(s *session, opts *ChildOptions) (gateway.List, error) {
	pk, err := containerKey(s, opts)
	if err != nil {
		return gateway.List{}, err
	}
	return gateway.List{
		Container: query.Where(opts.Container, query.Eq(pk, parseValue(opts.ID))),
		Field:     opts.List,
		Key:       opts.Key,
	}, nil
}
