package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Attendance HTTP API.
The API enrolls face samples, marks attendance from captured photos and
serves windowed attendance reports, CSV exports and Prometheus metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fmt.Printf("Connecting to PostgreSQL database...\n")
	a, err := newApp(ctx, true, true)
	if err != nil {
		return err
	}
	defer a.close()
	fmt.Printf("Using %s attendance ledger\n", a.cfg.Ledger.Backend)

	threshold, err := a.lateThreshold()
	if err != nil {
		return err
	}

	rec := metrics.New(metrics.WithGoCollectors())
	encoder := a.encoder()
	matcher := gallery.NewMatcher(a.gallery, encoder, a.cfg.Attendance.MatchTolerance)
	ledger := attendance.NewLedger(a.ledger, threshold, a.loc)

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(web.Deps{
		Marker:         attendance.NewService(matcher, ledger, rec),
		Reporter:       a.reporter(),
		Enroller:       gallery.NewEnroller(a.gallery, encoder, encoder.Model()),
		Gallery:        a.gallery,
		Metrics:        rec,
		AllowedOrigins: os.Getenv("WEB_ALLOWED_ORIGINS"),
	}, port, host)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
