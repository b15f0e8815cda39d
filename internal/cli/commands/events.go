package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/planlineage/internal/config"
	"github.com/leapstack-labs/planlineage/internal/state"
)

// NewEventsCommand creates the events command group.
func NewEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect recorded lineage events",
		Long: `Query the lineage events recorded by "analyze --record" and "watch".

Events live in the state database (see --state).`,
	}

	cmd.AddCommand(newEventsListCommand())
	cmd.AddCommand(newEventsShowCommand())
	cmd.AddCommand(newEventsTableCommand())

	return cmd
}

func newEventsListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded events, newest first",
		Example: `  planlineage events list
  planlineage events list --limit 5 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(store *state.SQLiteStore) error {
				events, err := store.ListEvents(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return writeSummaries(cmd, events)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of events (0 = all)")

	return cmd
}

func newEventsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "show <event-id>",
		Short:   "Show one event with its column lineage",
		Example: `  planlineage events show 0f8e6c2a-3c51-4d0b-9a57-5f3f4f1d2a10`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *state.SQLiteStore) error {
				event, err := store.GetEvent(cmd.Context(), args[0])
				if errors.Is(err, state.ErrEventNotFound) {
					return fmt.Errorf("no event with id %q", args[0])
				}
				if err != nil {
					return err
				}
				ok, err := writeData(cmd.OutOrStdout(), config.FromContext(cmd.Context()).Output, event)
				if !ok {
					renderEvent(cmd.OutOrStdout(), event)
				}
				return err
			})
		},
	}
}

func newEventsTableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "table <name>",
		Short: "List events that read or wrote a table",
		Long: `List the events whose input or output tables include the given name.
Names are matched exactly as recorded, e.g. spark_catalog.db.orders.`,
		Example: `  planlineage events table spark_catalog.db.orders`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *state.SQLiteStore) error {
				events, err := store.EventsForTable(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeSummaries(cmd, events)
			})
		},
	}
}

func withStore(cmd *cobra.Command, fn func(*state.SQLiteStore) error) error {
	cfg := config.FromContext(cmd.Context())
	store, err := openStore(cfg.StatePath, config.GetLogger(cmd.Context()))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(store)
}

func writeSummaries(cmd *cobra.Command, events []state.EventSummary) error {
	if events == nil {
		events = []state.EventSummary{}
	}
	ok, err := writeData(cmd.OutOrStdout(), config.FromContext(cmd.Context()).Output, events)
	if !ok {
		renderEvents(cmd.OutOrStdout(), events)
	}
	return err
}
