package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/sketch-match/internal/apperr"
	"github.com/kozaktomas/sketch-match/internal/config"
	"github.com/kozaktomas/sketch-match/internal/constants"
	"github.com/kozaktomas/sketch-match/internal/logging"
	"github.com/kozaktomas/sketch-match/internal/matcher"
	"github.com/kozaktomas/sketch-match/internal/picture"
	"github.com/kozaktomas/sketch-match/internal/storage"
	"github.com/kozaktomas/sketch-match/internal/worker"
)

var matchCmd = &cobra.Command{
	Use:   "match <sketch> [sketch...]",
	Short: "Find the reference photos matching a sketch",
	Long: `Upload a sketch to the configured backend and list the best-matching
reference photos with their similarity and confidence scores.

Matched photos are fetched and decoded; a photo that cannot be loaded is
reported next to its match and the remaining matches are still shown.

Examples:
  # Search with the backend from the configuration
  sketch-match match suspect.jpg

  # Use the local sketch API instead
  sketch-match match suspect.jpg --backend proxy

  # Search several sketches and save the matched photos
  sketch-match match a.jpg b.jpg --save ./matches

  # JSON output for scripting
  sketch-match match suspect.jpg --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Bool("json", false, "Output as JSON")
	matchCmd.Flags().String("save", "", "Directory to save matched photos to")
	matchCmd.Flags().Int("max-size", 0, "Scale saved photos to fit this many pixels (0 = original size)")
	matchCmd.Flags().String("backend", "", "Search backend: direct or proxy (overrides BACKEND)")
	matchCmd.Flags().Int("concurrency", constants.WorkerPoolSize, "Number of sketches searched at once")
	matchCmd.Flags().Float64("min-similarity", 0, "Minimum similarity 0-100 (overrides MIN_SIMILARITY)")
}

// MatchResult is one matched photo in JSON output
type MatchResult struct {
	ExternalID string  `json:"external_id"`
	ObjectKey  string  `json:"object_key,omitempty"`
	FaceID     string  `json:"face_id,omitempty"`
	URL        string  `json:"url"`
	Similarity float64 `json:"similarity"`
	Confidence float64 `json:"confidence,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	ImageError string  `json:"image_error,omitempty"`
	SavedTo    string  `json:"saved_to,omitempty"`
}

// SketchOutput is the JSON output for one sketch
type SketchOutput struct {
	Sketch  string        `json:"sketch"`
	Backend string        `json:"backend,omitempty"`
	NoMatch bool          `json:"no_match"`
	Message string        `json:"message,omitempty"`
	Matches []MatchResult `json:"matches"`
	Error   string        `json:"error,omitempty"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	saveDir := mustGetString(cmd, "save")
	maxSize := mustGetInt(cmd, "max-size")
	concurrency := mustGetInt(cmd, "concurrency")
	minSimilarity := mustGetFloat64(cmd, "min-similarity")

	cfg, logger, err := setup(mustGetString(cmd, "backend"))
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
	if minSimilarity > 0 {
		if minSimilarity > 100 {
			return fmt.Errorf("--min-similarity must be between 0 and 100, got %v", minSimilarity)
		}
		cfg.Recognition.MinSimilarity = minSimilarity
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger = logging.WithOperation(logger, "match", uuid.NewString())
	ctx = logging.ContextWithLogger(ctx, logger)

	backend, closeBackend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create backend", zap.Error(err))
		return err
	}
	defer closeBackend()

	orch := matcher.NewOrchestrator(backend, logger)

	var spin *spinner
	if !jsonOutput {
		spin = startSpinner(fmt.Sprintf("Searching via %s backend", backend.Name()))
	}
	results := searchSketches(ctx, orch, args, concurrency)
	spin.Stop()

	outputs := make([]SketchOutput, len(args))
	var failed int
	var firstErr error
	for i, res := range results {
		out := SketchOutput{Sketch: args[i], Backend: backend.Name(), Matches: []MatchResult{}}
		if res.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = res.Err
			}
			logger.Error("search failed", zap.String("sketch", args[i]), zap.Error(res.Err))
			out.Error = fmt.Sprintf("%s: %v", apperr.Title(res.Err), res.Err)
			outputs[i] = out
			continue
		}
		outputs[i] = buildSketchOutput(res.Value, args[i], saveDir, maxSize, logger)
	}

	if jsonOutput {
		if err := outputJSON(outputs); err != nil {
			return err
		}
	} else {
		for _, out := range outputs {
			printSketchOutput(out)
		}
	}

	switch {
	case failed == 0:
		return nil
	case len(args) == 1:
		return fmt.Errorf("%s: %w", apperr.Title(firstErr), firstErr)
	default:
		return fmt.Errorf("%d of %d searches failed", failed, len(args))
	}
}

// searchSketches runs the searches off the command goroutine. A single sketch is awaited
// directly so Ctrl+C returns at once; several sketches share a worker pool. Sketches with
// the same base name are stored under the same probe key, so they are searched one after
// another within one task.
func searchSketches(ctx context.Context, orch *matcher.Orchestrator, paths []string, concurrency int) []worker.Result[*matcher.Outcome] {
	if len(paths) == 1 {
		outcome, err := worker.Await(ctx, worker.Run(ctx, func(ctx context.Context) (*matcher.Outcome, error) {
			return orch.FindMatch(ctx, paths[0])
		}))
		return []worker.Result[*matcher.Outcome]{{Value: outcome, Err: err}}
	}

	groups := groupByProbeKey(paths)
	grouped := worker.Map(ctx, groups, concurrency, func(ctx context.Context, idx []int) ([]worker.Result[*matcher.Outcome], error) {
		out := make([]worker.Result[*matcher.Outcome], len(idx))
		for j, i := range idx {
			out[j].Value, out[j].Err = orch.FindMatch(ctx, paths[i])
		}
		return out, nil
	})

	results := make([]worker.Result[*matcher.Outcome], len(paths))
	for g, r := range grouped {
		for j, i := range groups[g] {
			if r.Err != nil {
				results[i].Err = r.Err
				continue
			}
			results[i] = r.Value[j]
		}
	}
	return results
}

// groupByProbeKey returns the indexes of paths grouped by base name, groups ordered by
// first appearance.
func groupByProbeKey(paths []string) [][]int {
	var groups [][]int
	seen := make(map[string]int)
	for i, p := range paths {
		key := storage.ProbeKey("", p)
		if g, ok := seen[key]; ok {
			groups[g] = append(groups[g], i)
			continue
		}
		seen[key] = len(groups)
		groups = append(groups, []int{i})
	}
	return groups
}

// buildSketchOutput converts an outcome for display and saves the decoded photos when
// saveDir is set.
func buildSketchOutput(outcome *matcher.Outcome, sketch, saveDir string, maxSize int, logger *zap.Logger) SketchOutput {
	out := SketchOutput{
		Sketch:  sketch,
		Backend: outcome.Backend,
		NoMatch: outcome.NoMatch,
		Matches: make([]MatchResult, 0, len(outcome.Matches)),
	}
	if outcome.NoMatch {
		out.Message = matcher.NoMatchMessage
		return out
	}

	for i, m := range outcome.Matches {
		r := MatchResult{
			ExternalID: m.ExternalID,
			ObjectKey:  m.ObjectKey,
			FaceID:     m.FaceID,
			URL:        m.URL,
			Similarity: m.Similarity,
			Confidence: m.Confidence,
		}
		if m.ImageErr != nil {
			r.ImageError = fmt.Sprintf("%s: %v", apperr.Title(m.ImageErr), m.ImageErr)
			out.Matches = append(out.Matches, r)
			continue
		}
		r.Width, r.Height = m.Picture.Width(), m.Picture.Height()

		if saveDir != "" {
			path, err := saveMatch(saveDir, sketch, i+1, m.Picture, maxSize)
			if err != nil {
				logger.Warn("could not save matched photo", zap.String("external_id", m.ExternalID), zap.Error(err))
				r.ImageError = err.Error()
			} else {
				r.SavedTo = path
			}
		}
		out.Matches = append(out.Matches, r)
	}
	return out
}

// matchFileName names the saved copy of the n-th match of sketch: "suspect_match1.jpg".
func matchFileName(sketch string, n int) string {
	base := filepath.Base(sketch)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s_match%d.jpg", stem, n)
}

func saveMatch(dir, sketch string, n int, pic *picture.Picture, maxSize int) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, matchFileName(sketch, n))
	if err := picture.Save(picture.Thumbnail(pic.Image, maxSize), path); err != nil {
		return "", err
	}
	return path, nil
}

func printSketchOutput(out SketchOutput) {
	fmt.Printf("\nSketch: %s (backend: %s)\n", out.Sketch, out.Backend)
	if out.Error != "" {
		fmt.Printf("  %s\n", out.Error)
		return
	}
	if out.NoMatch {
		fmt.Printf("  %s\n", matcher.NoMatchMessage)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  #\tSIMILARITY\tCONFIDENCE\tIMAGE\tMATCH")
	for i, m := range out.Matches {
		confidence := "-"
		if m.Confidence > 0 {
			confidence = fmt.Sprintf("%.1f%%", m.Confidence)
		}
		image := fmt.Sprintf("%dx%d", m.Width, m.Height)
		if m.ImageError != "" {
			image = "unavailable"
		}
		fmt.Fprintf(w, "  %d\t%.1f%%\t%s\t%s\t%s\n", i+1, m.Similarity, confidence, image,
			config.Hyperlink(m.URL, m.ExternalID))
	}
	w.Flush()

	for i, m := range out.Matches {
		if m.ImageError != "" {
			fmt.Printf("  #%d %s\n", i+1, m.ImageError)
		}
		if m.SavedTo != "" {
			fmt.Printf("  #%d saved to %s\n", i+1, m.SavedTo)
		}
	}
}

// spinner animates an indeterminate progress bar until stopped.
type spinner struct {
	bar  *progressbar.ProgressBar
	done chan struct{}
}

func startSpinner(description string) *spinner {
	s := &spinner{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetDescription(description),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		),
		done: make(chan struct{}),
	}
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.bar.Add(1) //nolint:errcheck // rendering only
			}
		}
	}()
	return s
}

// Stop ends the animation. Safe on a nil spinner.
func (s *spinner) Stop() {
	if s == nil {
		return
	}
	close(s.done)
	s.bar.Finish() //nolint:errcheck // rendering only
}
