package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/mealpix/mealpix-go/internal/api"
	"github.com/mealpix/mealpix-go/internal/history"
	"github.com/mealpix/mealpix-go/internal/importer"
	"github.com/mealpix/mealpix-go/internal/upload"
	"github.com/mealpix/mealpix-go/internal/watch"
	"github.com/spf13/cobra"
)

var plainOutput bool

var importCmd = &cobra.Command{
	Use:   "import <photo.jpg>",
	Short: "Upload a recipe photo and track its import",
	Long: `Upload a recipe photo, register it with the recognition pipeline, and
follow the pipeline's progress until the recipe is ready.

Press Ctrl+C to cancel the import.

Examples:
  mealpix import dinner.jpg
  mealpix import --plain scan.jpg   # line-based output, no progress UI`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&plainOutput, "plain", false, "line-based output instead of the progress UI")
}

// observerAdapter narrows *watch.Subscription to the controller's Detacher.
type observerAdapter struct {
	watcher *watch.Watcher
}

func (o observerAdapter) Watch(ctx context.Context, jobID string, onUpdate func(watch.Update), onError func(error)) (importer.Detacher, error) {
	sub, err := o.watcher.Watch(ctx, jobID, onUpdate, onError)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	assetPath := args[0]
	started := time.Now()

	newController := func(onChange func(importer.Snapshot)) *importer.Controller {
		return importer.New(
			upload.New(cfg.StorageURL),
			api.New(cfg.ServiceURL, cfg.AuthToken),
			observerAdapter{watch.NewWatcher(cfg.WatchURL)},
			importer.Config{
				Namespace: cfg.Namespace,
				OwnerID:   cfg.OwnerID,
				OnChange:  onChange,
			},
		)
	}

	var final importer.Snapshot
	var cancelled bool
	var err error
	if plainOutput {
		final, cancelled, err = runImportPlain(newController, assetPath)
	} else {
		final, cancelled, err = runImportUI(newController, assetPath)
	}
	if err != nil {
		return err
	}

	if final.Status.Terminal() {
		rec := history.Record{
			JobID:      final.JobID,
			AssetPath:  assetPath,
			Status:     string(final.Status),
			Error:      final.Error,
			StartedAt:  started,
			FinishedAt: time.Now(),
		}
		if err := histStore.Add(rec); err != nil {
			slog.Warn("failed to record import outcome", "error", err)
		}
	}

	if cancelled {
		return nil
	}
	if final.Status == importer.StatusFailed {
		return errors.New(final.Error)
	}
	return nil
}

// runImportPlain drives an import with line-based output, for scripts and
// dumb terminals. Ctrl+C cancels the import.
func runImportPlain(newController func(func(importer.Snapshot)) *importer.Controller, assetPath string) (importer.Snapshot, bool, error) {
	snapshots := make(chan importer.Snapshot, 64)
	ctrl := newController(func(s importer.Snapshot) { snapshots <- s })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := ctrl.Start(context.Background(), assetPath); err != nil {
		return importer.Snapshot{}, false, err
	}

	lastStatus := importer.StatusIdle
	for {
		select {
		case <-ctx.Done():
			ctrl.Cancel()
			fmt.Println("import cancelled")
			return ctrl.Snapshot(), true, nil

		case snap := <-snapshots:
			if snap.Status != lastStatus {
				lastStatus = snap.Status
				fmt.Printf("%s\n", phaseLabel(snap.Status))
			}
			if snap.Status == importer.StatusFailed && snap.Error != "" {
				fmt.Println(snap.Error)
			}
			if snap.Status.Terminal() {
				return snap, false, nil
			}
		}
	}
}

// runImportUI drives an import behind the interactive progress display.
func runImportUI(newController func(func(importer.Snapshot)) *importer.Controller, assetPath string) (importer.Snapshot, bool, error) {
	ctrl := newController(nil)

	model := newImportModel(ctrl, assetPath)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return importer.Snapshot{}, false, fmt.Errorf("progress UI error: %w", err)
	}

	cancelled := false
	if m, ok := finalModel.(importModel); ok {
		cancelled = m.cancelled
	}
	return ctrl.Snapshot(), cancelled, nil
}

// phaseLabel maps an import status to its user-facing line.
func phaseLabel(status importer.Status) string {
	switch status {
	case importer.StatusUploading:
		return "Uploading photo..."
	case importer.StatusQueued:
		return "Waiting in queue..."
	case importer.StatusRecognizingText:
		return "Reading your recipe..."
	case importer.StatusStructuring:
		return "Structuring ingredients and steps..."
	case importer.StatusReady:
		return "Recipe ready!"
	case importer.StatusFailed:
		return "Import failed"
	default:
		return string(status)
	}
}
