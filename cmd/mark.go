package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/spf13/cobra"
)

var markCmd = &cobra.Command{
	Use:   "mark <image>",
	Short: "Mark attendance from a photo",
	Long: `Match the first face in the photo against the gallery and record
attendance for the matched person. A second mark on the same day is reported
as already recorded and does not change the ledger.`,
	Args: cobra.ExactArgs(1),
	RunE: runMark,
}

func init() {
	rootCmd.AddCommand(markCmd)

	markCmd.Flags().String("at", "", "Observation time in RFC 3339 (defaults to now)")
	markCmd.Flags().Bool("json", false, "Output as JSON")
}

// MarkOutput is the JSON output of the mark command
type MarkOutput struct {
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
	Date      string `json:"date,omitempty"`
	Time      string `json:"time,omitempty"`
	IsLate    bool   `json:"is_late"`
}

func runMark(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	var observedAt time.Time
	if at := mustGetString(cmd, "at"); at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid --at value: %w", err)
		}
		observedAt = t
	}

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	ctx := context.Background()
	a, err := newApp(ctx, true, true)
	if err != nil {
		return err
	}
	defer a.close()

	threshold, err := a.lateThreshold()
	if err != nil {
		return err
	}
	matcher := gallery.NewMatcher(a.gallery, a.encoder(), a.cfg.Attendance.MatchTolerance)
	svc := attendance.NewService(matcher, attendance.NewLedger(a.ledger, threshold, a.loc), nil)

	res, err := svc.Mark(ctx, image, observedAt)
	if errors.Is(err, attendance.ErrNoFaceDetected) {
		return errors.New("no face detected, please try again")
	}
	if err != nil {
		return err
	}

	out := MarkOutput{Name: res.Identity, StudentID: res.ExternalID, Status: "unmatched"}
	if res.Matched {
		out.Status = string(res.Outcome)
		out.Date = res.Record.Date()
		out.Time = res.Record.Time()
		out.IsLate = res.Record.IsLate
	}
	if jsonOutput {
		return outputJSON(out)
	}

	switch {
	case !res.Matched:
		fmt.Println("No enrolled person matched this photo.")
	case res.Outcome == attendance.Deduplicated:
		fmt.Printf("%s (%s) is already marked present today.\n", out.Name, out.StudentID)
	default:
		status := "on time"
		if out.IsLate {
			status = "late"
		}
		fmt.Printf("Marked %s (%s) present at %s %s, %s.\n", out.Name, out.StudentID, out.Date, out.Time, status)
	}
	return nil
}
