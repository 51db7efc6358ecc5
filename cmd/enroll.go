package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll face samples into the gallery",
}

var enrollAddCmd = &cobra.Command{
	Use:   "add <image>",
	Short: "Enroll a single face sample",
	Long: `Encode the first face in the image and store it as a sample of the given
person. Enrolling the same sample index again replaces the earlier sample.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrollAdd,
}

var enrollImportCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Enroll every sample found in a training directory",
	Long: `Import a training directory laid out as <dir>/<name>/<studentId>_<n>.jpg.
Each subdirectory is one person; the file name prefix before "_" is the
student id and the number after it is the sample index.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrollImport,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	enrollCmd.AddCommand(enrollAddCmd)
	enrollCmd.AddCommand(enrollImportCmd)

	enrollAddCmd.Flags().String("name", "", "Person's display name (required)")
	enrollAddCmd.Flags().String("student-id", "", "Student id (default: unknown)")
	enrollAddCmd.Flags().Int("index", 0, "Sample index")
	enrollAddCmd.MarkFlagRequired("name")

	enrollImportCmd.Flags().Int("concurrency", constants.ImportWorkers, "Number of samples encoded in parallel")
	enrollImportCmd.Flags().Bool("json", false, "Output as JSON")
}

func runEnrollAdd(cmd *cobra.Command, args []string) error {
	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	ctx := context.Background()
	a, err := newApp(ctx, true, false)
	if err != nil {
		return err
	}
	defer a.close()

	encoder := a.encoder()
	enroller := gallery.NewEnroller(a.gallery, encoder, encoder.Model())
	sample, err := enroller.Enroll(ctx, gallery.EnrollRequest{
		Identity:    mustGetString(cmd, "name"),
		ExternalID:  mustGetString(cmd, "student-id"),
		SampleIndex: mustGetInt(cmd, "index"),
		Image:       image,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Stored sample %s for %s (%s)\n", facematch.SampleFileName(sample.ExternalID, sample.SampleIndex), sample.Identity, sample.ID)
	if !sample.HasFace() {
		fmt.Println("Warning: no face detected, the sample will never match")
	}
	return nil
}

// importJob is one sample file found in the training directory
type importJob struct {
	path string
	req  gallery.EnrollRequest
}

// ImportResult summarises an import run
type ImportResult struct {
	Success       bool   `json:"success"`
	Identities    int    `json:"identities"`
	Samples       int    `json:"samples"`
	WithoutFace   int    `json:"without_face"`
	Errors        int    `json:"errors"`
	DurationMs    int64  `json:"duration_ms"`
	DurationHuman string `json:"duration,omitempty"`
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".bmp"}

// collectImportJobs walks <dir>/<identity>/<file>. Files whose name carries no
// sample index get the next free index after the numbered ones.
func collectImportJobs(dir string) ([]importJob, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", dir, err)
	}

	var jobs []importJob
	identities := 0
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files, err := os.ReadDir(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, 0, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		var personJobs []importJob
		var unnumbered []importJob
		next := 0
		for _, f := range files {
			ext := strings.ToLower(filepath.Ext(f.Name()))
			if f.IsDir() || !slices.Contains(imageExtensions, ext) {
				continue
			}
			externalID, index := facematch.ParseSampleName(f.Name())
			job := importJob{
				path: filepath.Join(dir, entry.Name(), f.Name()),
				req: gallery.EnrollRequest{
					Identity:    entry.Name(),
					ExternalID:  externalID,
					SampleIndex: index,
				},
			}
			if index < 0 {
				unnumbered = append(unnumbered, job)
				continue
			}
			next = max(next, index+1)
			personJobs = append(personJobs, job)
		}
		for _, job := range unnumbered {
			job.req.SampleIndex = next
			next++
			personJobs = append(personJobs, job)
		}
		if len(personJobs) > 0 {
			identities++
			jobs = append(jobs, personJobs...)
		}
	}
	return jobs, identities, nil
}

func runEnrollImport(cmd *cobra.Command, args []string) error {
	concurrency := max(mustGetInt(cmd, "concurrency"), 1)
	jsonOutput := mustGetBool(cmd, "json")
	startTime := time.Now()

	jobs, identities, err := collectImportJobs(args[0])
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		if jsonOutput {
			return outputJSON(ImportResult{Success: true})
		}
		fmt.Println("No sample images found.")
		return nil
	}

	ctx := context.Background()
	a, err := newApp(ctx, true, false)
	if err != nil {
		return err
	}
	defer a.close()

	encoder := a.encoder()
	enroller := gallery.NewEnroller(a.gallery, encoder, encoder.Model())

	if !jsonOutput {
		fmt.Printf("Found %d samples of %d people to import\n\n", len(jobs), identities)
	}

	// Create progress bar (only for non-JSON output)
	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(jobs),
			progressbar.OptionSetDescription("Enrolling"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("samples"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	var withoutFace, errorCount int64
	var failures sync.Map
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, job := range jobs {
		wg.Add(1)
		go func(job importJob) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := importSample(ctx, enroller, job, &withoutFace); err != nil {
				atomic.AddInt64(&errorCount, 1)
				failures.Store(job.path, err)
			}

			if bar != nil {
				bar.Add(1)
			}
		}(job)
	}

	wg.Wait()

	if bar != nil {
		fmt.Println()
	}

	duration := time.Since(startTime)
	result := ImportResult{
		Success:       errorCount == 0,
		Identities:    identities,
		Samples:       len(jobs) - int(errorCount),
		WithoutFace:   int(withoutFace),
		Errors:        int(errorCount),
		DurationMs:    duration.Milliseconds(),
		DurationHuman: formatDuration(duration),
	}

	if jsonOutput {
		result.DurationHuman = ""
		return outputJSON(result)
	}

	failures.Range(func(path, err any) bool {
		fmt.Printf("  Failed %s: %v\n", path, err)
		return true
	})

	fmt.Println("\nImport complete!")
	fmt.Printf("  People:       %d\n", result.Identities)
	fmt.Printf("  Samples:      %d\n", result.Samples)
	if result.WithoutFace > 0 {
		fmt.Printf("  Without face: %d\n", result.WithoutFace)
	}
	if result.Errors > 0 {
		fmt.Printf("  Errors:       %d\n", result.Errors)
	}
	fmt.Printf("  Duration:     %s\n", result.DurationHuman)
	return nil
}

func importSample(ctx context.Context, enroller *gallery.Enroller, job importJob, withoutFace *int64) error {
	image, err := os.ReadFile(job.path)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}
	job.req.Image = image
	sample, err := enroller.Enroll(ctx, job.req)
	if err != nil {
		return err
	}
	if !sample.HasFace() {
		atomic.AddInt64(withoutFace, 1)
	}
	return nil
}
