package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/spf13/cobra"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Inspect and manage enrolled people",
}

var galleryListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List enrolled people with their sample counts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGalleryList,
}

var galleryRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove every sample of a person",
	Args:  cobra.ExactArgs(1),
	RunE:  runGalleryRemove,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryListCmd)
	galleryCmd.AddCommand(galleryRemoveCmd)

	galleryListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	query := ""
	if len(args) > 0 {
		query = args[0]
	}

	ctx := context.Background()
	a, err := newApp(ctx, true, false)
	if err != nil {
		return err
	}
	defer a.close()

	summaries, err := a.gallery.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("listing gallery: %w", err)
	}

	matched := summaries[:0]
	for _, s := range summaries {
		if facematch.MatchesQuery(s.Identity, query) {
			matched = append(matched, s)
		}
	}

	if jsonOutput {
		return outputJSON(matched)
	}
	if len(matched) == 0 {
		fmt.Println("No enrolled people.")
		return nil
	}

	total := 0
	for _, s := range matched {
		fmt.Printf("  %-30s %-12s %3d samples", s.Identity, s.ExternalID, s.SampleCount)
		if missing := s.SampleCount - s.FaceCount; missing > 0 {
			fmt.Printf(" (%d without face)", missing)
		}
		fmt.Println()
		total += s.SampleCount
	}
	fmt.Printf("\n%d people, %d samples\n", len(matched), total)
	return nil
}

func runGalleryRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, true, false)
	if err != nil {
		return err
	}
	defer a.close()

	identity := facematch.CanonicalIdentity(args[0])
	n, err := a.gallery.DeleteIdentity(ctx, identity)
	if err != nil {
		return fmt.Errorf("removing %s: %w", identity, err)
	}
	if n == 0 {
		return fmt.Errorf("no samples enrolled for %q", identity)
	}
	fmt.Printf("Removed %d samples of %s\n", n, identity)
	return nil
}
