package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/planlineage/internal/config"
	"github.com/leapstack-labs/planlineage/internal/listener"
	"github.com/leapstack-labs/planlineage/pkg/lineage"
)

// WatchOptions holds options for the watch command.
type WatchOptions struct {
	Record   bool
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Analyze plan documents as they appear in a directory",
		Long: `Watch a directory for plan documents (*.json) written by a query engine
and emit one lineage event per document as a JSON line on stdout.

Use --record to also store the events in the state database.
Stop with Ctrl-C.`,
		Example: `  # Stream lineage events
  planlineage watch /var/spool/plans

  # Stream and record
  planlineage watch /var/spool/plans --record`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Record, "record", false, "Record lineage events in the state database")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 0, "Quiet period before a changed file is analyzed (default: watch_debounce)")

	return cmd
}

func runWatch(cmd *cobra.Command, dir string, opts *WatchOptions) error {
	cfg := config.FromContext(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	delay := cfg.WatchDebounce
	if cmd.Flags().Changed("debounce") {
		delay = opts.Debounce
	}

	sinks := []listener.Sink{listener.NewJSONSink(cmd.OutOrStdout())}
	if opts.Record {
		store, err := openStore(cfg.StatePath, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		sinks = append(sinks, listener.NewStoreSink(store))
	}

	lst := listener.New(lineage.NewAnalyzer(cfg.AnalyzerOptions(logger)), logger, sinks...)

	w, err := newPlanWatcher(dir, delay, logger)
	if err != nil {
		return err
	}
	logger.Info("watching for plans", "dir", dir)

	ctx := cmd.Context()
	return w.Run(ctx, func(path string) {
		pf, err := loadPlanFile(path, cfg, logger)
		if err != nil {
			logger.Warn("failed to load plan", "path", path, "error", err)
			return
		}
		dispatch(ctx, lst, pf)
	})
}

// planWatcher reports plan files that were created or written in one
// directory. Bursts of writes to the same file are coalesced.
type planWatcher struct {
	watcher *fsnotify.Watcher
	delay   time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

func newPlanWatcher(dir string, delay time.Duration, logger *slog.Logger) (*planWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &planWatcher{
		watcher: watcher,
		delay:   delay,
		logger:  logger,
		timers:  make(map[string]*time.Timer),
	}, nil
}

// Run delivers changed plan files to handle until ctx is done. Pending
// callbacks are cancelled; running ones are waited for.
func (w *planWatcher) Run(ctx context.Context, handle func(path string)) error {
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !isPlanFile(event.Name) {
				continue
			}
			w.schedule(event.Name, handle)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *planWatcher) schedule(path string, handle func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		if t.Stop() {
			w.wg.Done()
		}
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.delay, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.timers[path] == t {
			delete(w.timers, path)
		}
		w.mu.Unlock()

		w.logger.Debug("plan changed", "path", path)
		handle(path)
	})
	w.timers[path] = t
}

func (w *planWatcher) stop() {
	w.mu.Lock()
	for path, t := range w.timers {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.timers, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	_ = w.watcher.Close()
}
