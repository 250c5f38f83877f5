package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/sketch-match/internal/config"
	"github.com/kozaktomas/sketch-match/internal/indexer"
	"github.com/kozaktomas/sketch-match/internal/logging"
	"github.com/kozaktomas/sketch-match/internal/recognition"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the gallery photos into the recognition collection",
	Long: `Index every image under the gallery prefix into the Rekognition collection.

Each object key is turned into an external image id ("Photos/a b.jpg" becomes
"Photos_a_b.jpg") and every face found in the photo is registered under it.
Images are processed one at a time; a failed image is logged and skipped.
The collection is created first when it does not exist.

When DATABASE_URL is set, the original object key of every indexed photo is
stored in the face registry so matches resolve to the exact key.

Examples:
  # Index the default gallery prefix (Photos/)
  sketch-match index

  # Index another folder
  sketch-match index --prefix Archive/2023/

  # Show what would be indexed
  sketch-match index --dry-run`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().String("prefix", "", "Object key prefix to index (defaults to GALLERY_PREFIX)")
	indexCmd.Flags().Bool("dry-run", false, "List and name the images without indexing them")
	indexCmd.Flags().Bool("default-attributes", false, "Request the DEFAULT facial attribute set instead of ALL")
	indexCmd.Flags().Bool("json", false, "Output the report as JSON instead of a progress bar")
}

// IndexResult is the JSON report of an indexing run
type IndexResult struct {
	Success       bool          `json:"success"`
	Collection    string        `json:"collection"`
	Prefix        string        `json:"prefix"`
	DryRun        bool          `json:"dry_run,omitempty"`
	Total         int           `json:"total"`
	Indexed       int           `json:"indexed"`
	NoFace        int           `json:"no_face"`
	Faces         int           `json:"faces"`
	SharedID      int           `json:"shared_external_id,omitempty"`
	Failed        int           `json:"failed"`
	Failures      []IndexFailed `json:"failures,omitempty"`
	DurationMs    int64         `json:"duration_ms"`
	DurationHuman string        `json:"duration_human,omitempty"`
}

// IndexFailed names one image that could not be indexed
type IndexFailed struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

func runIndex(cmd *cobra.Command, args []string) error {
	prefix := mustGetString(cmd, "prefix")
	dryRun := mustGetBool(cmd, "dry-run")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, logger, err := setup(config.BackendDirect)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
	if prefix == "" {
		prefix = cfg.Storage.GalleryPrefix
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger = logging.WithOperation(logger, "index", uuid.NewString())

	svc, err := newAWSServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create AWS clients", zap.Error(err))
		return err
	}
	defer svc.Close()

	opts := indexer.Options{
		CollectionID: cfg.Recognition.CollectionID,
		Attributes:   recognition.AttributesAll,
		DryRun:       dryRun,
	}
	if mustGetBool(cmd, "default-attributes") {
		opts.Attributes = recognition.AttributesDefault
	}

	if !dryRun {
		created, err := svc.recognizer.EnsureCollection(ctx, opts.CollectionID)
		if err != nil {
			logger.Error("failed to prepare collection", zap.Error(err))
			return err
		}
		if created {
			logger.Info("created collection", zap.String("collection", opts.CollectionID))
		}
	}

	var bar *progressbar.ProgressBar
	var progress indexer.ProgressFunc
	if !jsonOutput {
		progress = func(done, total int, key string) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Indexing faces"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("photos"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
					progressbar.OptionSetWriter(os.Stderr),
				)
			}
			bar.Set(done) //nolint:errcheck // rendering only
		}
	}

	ix := indexer.New(svc.store, svc.recognizer, svc.registry, logger)
	report, runErr := ix.Run(ctx, prefix, opts, progress)
	if bar != nil {
		bar.Finish() //nolint:errcheck // rendering only
		fmt.Fprintln(os.Stderr)
	}
	if runErr != nil {
		logger.Error("indexing aborted", zap.Error(runErr))
	}

	result := newIndexResult(report, opts, prefix)
	result.Success = runErr == nil && report.Failed() == 0
	if jsonOutput {
		if err := outputJSON(result); err != nil {
			return err
		}
	} else {
		printIndexResult(result)
	}

	if runErr != nil {
		return runErr
	}
	if report.Failed() > 0 {
		return fmt.Errorf("%d of %d images could not be indexed", report.Failed(), report.Total)
	}
	return nil
}

func newIndexResult(report *indexer.Report, opts indexer.Options, prefix string) IndexResult {
	result := IndexResult{
		Collection:    opts.CollectionID,
		Prefix:        prefix,
		DryRun:        opts.DryRun,
		Total:         report.Total,
		Indexed:       report.Indexed,
		NoFace:        report.NoFace,
		Faces:         report.Faces,
		SharedID:      report.SharedID,
		Failed:        report.Failed(),
		DurationMs:    report.Duration.Milliseconds(),
		DurationHuman: report.Duration.Round(time.Millisecond).String(),
	}
	for _, f := range report.Failures {
		result.Failures = append(result.Failures, IndexFailed{Key: f.Key, Error: f.Err.Error()})
	}
	return result
}

func printIndexResult(r IndexResult) {
	if r.DryRun {
		fmt.Printf("Dry run: %d images under %s would be indexed into %s\n", r.Total, r.Prefix, r.Collection)
		return
	}
	fmt.Printf("Indexed %s into %s in %s\n", r.Prefix, r.Collection, r.DurationHuman)
	fmt.Printf("  Images:          %d\n", r.Total)
	fmt.Printf("  With faces:      %d (%d faces)\n", r.Indexed, r.Faces)
	fmt.Printf("  No face found:   %d\n", r.NoFace)
	if r.SharedID > 0 {
		fmt.Printf("  Shared ids:      %d (see warnings)\n", r.SharedID)
	}
	fmt.Printf("  Failed:          %d\n", r.Failed)
	for _, f := range r.Failures {
		fmt.Printf("    %s: %s\n", f.Key, f.Error)
	}
}
