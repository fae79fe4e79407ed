package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AppleFlash/BackgroundRealm/internal/changeset"
	"github.com/AppleFlash/BackgroundRealm/internal/gateway"
	"github.com/AppleFlash/BackgroundRealm/internal/query"
	"github.com/AppleFlash/BackgroundRealm/internal/reactive"
	"github.com/AppleFlash/BackgroundRealm/internal/record"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	QueryOptions
	Changes bool
	List    string
	Events  int
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <kind>",
		Short: "Stream query results as the store changes",
		Long: `Print the records matching a query, then print again on every change
until interrupted.

With --changes each update is printed as the indices deleted, inserted
and modified instead of the whole result. With --list the ordered child
list embedded in the first matching container is watched instead; a
child whose content changed prints as a deletion and an insertion at its
position.

Examples:
  bgrealm watch User --order name
  bgrealm watch User --changes --format json
  bgrealm watch UserContainer --where id=main --list users`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session, out *OutputFormatter) error {
				q, err := buildQuery(args[0], &opts.QueryOptions)
				if err != nil {
					return err
				}
				ctx, stop := signalContext(ctx, s)
				defer stop()
				return opts.run(ctx, s, q, out)
			})
		},
	}
	addQueryFlags(cmd, &opts.QueryOptions)
	cmd.Flags().BoolVar(&opts.Changes, "changes", false, "print changesets instead of full results")
	cmd.Flags().StringVar(&opts.List, "list", "", "watch the child list field of the first matching container")
	cmd.Flags().IntVar(&opts.Events, "events", 0, "exit after this many emissions (0 = until interrupted)")
	return cmd
}

// signalContext cancels ctx on SIGINT or SIGTERM.
func signalContext(parent context.Context, s *session) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			s.logger.Info("received signal, stopping watch", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func (o *WatchOptions) run(ctx context.Context, s *session, q query.Query, out *OutputFormatter) error {
	if o.List != "" {
		return drain(ctx, o.Events,
			gateway.ListenOrderedArrayChanges(s.gateway, q, o.List, objectDecoder, sameChild), out.Changeset)
	}
	if o.Changes {
		return drain(ctx, o.Events, gateway.ListenArrayChanges(s.gateway, q, objectDecoder), out.Changeset)
	}
	return drain(ctx, o.Events, gateway.ListenArray(s.gateway, q, nil, objectDecoder), out.Snapshot)
}

// sameChild matches list children by full content, so edits are not
// swallowed as unchanged.
func sameChild(a, b record.Object) bool { return record.Equal(a, b) }

// drain prints every emission of src until it ends, ctx ends or limit
// emissions have been printed.
func drain[T any](ctx context.Context, limit int, src reactive.Observable[T], print func(T) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	values, errc := src.Values(ctx)
	seen := 0
	for v := range values {
		if limit > 0 && seen >= limit {
			continue
		}
		if err := print(v); err != nil {
			return err
		}
		seen++
		if limit > 0 && seen >= limit {
			cancel()
		}
	}
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Snapshot prints one full result. Text output separates results with a
// "---" line.
func (f *OutputFormatter) Snapshot(objs []record.Object) error {
	if f.Format == "json" {
		return f.Records(objs)
	}
	if err := f.Records(objs); err != nil {
		return err
	}
	_, err := fmt.Fprintln(f.Writer, "---")
	return err
}

// ChangeView is the JSON form of a changeset.
type ChangeView struct {
	Kind     string          `json:"kind"`
	Items    []record.Object `json:"items,omitempty"`
	Deleted  []int           `json:"deleted,omitempty"`
	Inserted []ItemView      `json:"inserted,omitempty"`
	Modified []ItemView      `json:"modified,omitempty"`
}

// ItemView is an indexed record in a ChangeView.
type ItemView struct {
	Index  int           `json:"index"`
	Record record.Object `json:"record"`
}

// Changeset prints one changeset.
func (f *OutputFormatter) Changeset(c changeset.Changeset[record.Object]) error {
	if f.Format == "json" {
		view := ChangeView{
			Kind:     c.Kind.String(),
			Items:    c.Items,
			Deleted:  c.Deleted,
			Inserted: itemViews(c.Inserted),
			Modified: itemViews(c.Modified),
		}
		return f.Success(view)
	}
	text := changeset.Map(c, func(obj record.Object) string {
		data, err := record.Marshal(obj)
		if err != nil {
			return fmt.Sprintf("<%v>", err)
		}
		return string(data)
	})
	return f.Success(text.String())
}

func itemViews(items []changeset.Item[record.Object]) []ItemView {
	if len(items) == 0 {
		return nil
	}
	out := make([]ItemView, len(items))
	for i, it := range items {
		out[i] = ItemView{Index: it.Index, Record: it.Item}
	}
	return out
}
