package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/renameio"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export attendance records as CSV",
	Long: `Export attendance records for a time window as CSV with the columns
Name,StudentID,Date,Time,IsLate.

The pdf format is accepted and produces the same CSV content.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("period", "today", "Time window to export")
	exportCmd.Flags().String("format", attendance.FormatCSV, "Export format: csv or pdf")
	exportCmd.Flags().StringP("output", "o", "", "Output file (default: generated name, - for stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	window := attendance.ParseWindow(mustGetString(cmd, "period"))
	format := mustGetString(cmd, "format")
	output := mustGetString(cmd, "output")

	ctx := context.Background()
	a, err := newApp(ctx, false, true)
	if err != nil {
		return err
	}
	defer a.close()

	exp, err := a.reporter().Export(ctx, window, format)
	if errors.Is(err, attendance.ErrNoRecords) {
		return errors.New("no attendance records found")
	}
	if err != nil {
		return err
	}

	if output == "-" {
		_, err := os.Stdout.Write(exp.Data)
		return err
	}
	if output == "" {
		output = exp.Filename
	}
	if err := renameio.WriteFile(output, exp.Data, 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	fmt.Printf("Exported %s to %s\n", window.Label(), output)
	return nil
}
