package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Show attendance records and statistics",
	Long: `Show attendance records for a time window with on-time, late and
attendance-rate statistics.

Periods: today, yesterday, week (last 7 days), month (last 30 days), all.
Unknown periods show all records.`,
	Args: cobra.NoArgs,
	RunE: runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)

	attendanceCmd.Flags().String("period", "today", "Time window to show")
	attendanceCmd.Flags().Bool("json", false, "Output as JSON")
}

func runAttendance(cmd *cobra.Command, args []string) error {
	window := attendance.ParseWindow(mustGetString(cmd, "period"))
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	a, err := newApp(ctx, false, true)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.reporter().Query(ctx, window)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(report)
	}

	fmt.Printf("Attendance: %s\n\n", report.Label)
	if len(report.Records) == 0 {
		fmt.Println("No attendance records.")
	}
	for _, r := range report.Records {
		late := ""
		if r.IsLate {
			late = "  late"
		}
		fmt.Printf("  %s %s  %-30s %s%s\n", r.Date(), r.Time(), r.Identity, r.ExternalID, late)
	}

	s := report.Stats
	fmt.Printf("\nPresent: %d  On time: %d  Late: %d  Rate: %.1f%%\n", s.TotalPresent, s.OnTime, s.Late, s.AttendanceRate)
	return nil
}
