package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/sketch-match/internal/config"
	"github.com/kozaktomas/sketch-match/internal/database"
	"github.com/kozaktomas/sketch-match/internal/recognition"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "List the gallery photos and their external image ids",
	Long: `List the images under the gallery prefix together with the external image id
each one is indexed under. With DATABASE_URL set, the number of faces recorded
in the face registry is shown as well.

Examples:
  sketch-match gallery
  sketch-match gallery --prefix Archive/ --json`,
	Args: cobra.NoArgs,
	RunE: runGallery,
}

func init() {
	rootCmd.AddCommand(galleryCmd)

	galleryCmd.Flags().String("prefix", "", "Object key prefix to list (defaults to GALLERY_PREFIX)")
	galleryCmd.Flags().Bool("json", false, "Output as JSON")
}

// GalleryEntry is one gallery photo
type GalleryEntry struct {
	Key        string `json:"key"`
	ExternalID string `json:"external_id"`
	URL        string `json:"url"`
	Faces      *int   `json:"faces,omitempty"` // nil when unknown
}

func runGallery(cmd *cobra.Command, args []string) error {
	prefix := mustGetString(cmd, "prefix")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, logger, err := setup(config.BackendDirect)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
	if prefix == "" {
		prefix = cfg.Storage.GalleryPrefix
	}

	ctx := context.Background()
	svc, err := newAWSServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create AWS clients", zap.Error(err))
		return err
	}
	defer svc.Close()

	keys, err := svc.store.ListObjects(ctx, prefix)
	if err != nil {
		logger.Error("failed to list gallery", zap.String("prefix", prefix), zap.Error(err))
		return err
	}

	entries := galleryEntries(ctx, cfg, keys, svc.registryReader(), logger)

	if jsonOutput {
		return outputJSON(entries)
	}

	if len(entries) == 0 {
		fmt.Printf("No images found under %s\n", prefix)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EXTERNAL ID\tFACES\tKEY")
	for _, e := range entries {
		faces := "-"
		if e.Faces != nil {
			faces = fmt.Sprintf("%d", *e.Faces)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.ExternalID, faces, config.Hyperlink(e.URL, e.Key))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d images\n", len(entries))
	return nil
}

// galleryEntries names every key and, when a registry is given, attaches its face count.
// Keys the registry does not know are left without a count.
func galleryEntries(ctx context.Context, cfg *config.Config, keys []string, registry database.RegistryReader, logger *zap.Logger) []GalleryEntry {
	entries := make([]GalleryEntry, 0, len(keys))
	for _, key := range keys {
		e := GalleryEntry{
			Key:        key,
			ExternalID: recognition.SanitizeExternalID(key),
			URL:        cfg.ObjectURL(key),
		}
		if registry != nil {
			entry, err := registry.Lookup(ctx, cfg.Recognition.CollectionID, key)
			if err != nil {
				logger.Warn("registry lookup failed", zap.String("key", key), zap.Error(err))
			} else if entry != nil {
				n := len(entry.FaceIDs)
				e.Faces = &n
			}
		}
		entries = append(entries, e)
	}
	return entries
}
