package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/findash/internal/api"
	"github.com/wonny/findash/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `Starts the dashboard REST API, the alert stream and the cache jobs.

This command:
- serves dashboard snapshots over HTTP
- streams alert changes over websocket
- keeps the series cache warm on a schedule

Endpoints:
  GET  /health                  - Health check
  GET  /metrics                 - Prometheus metrics
  GET  /ws/alerts               - Alert stream (websocket)
  GET  /api/dashboard           - Full snapshot
  GET  /api/alerts              - Alert list
  GET  /api/kpis                - Key figures
  GET  /api/correlation         - Correlation matrix and pairs
  GET  /api/prices/tail         - Latest closes
  GET  /api/config              - Dashboard definition
  GET  /api/report.md           - Markdown report
  GET  /api/export.xlsx         - Workbook export
  GET  /api/cache               - Cache statistics
  POST /api/cache/refresh       - Drop the cache and fetch again
  GET  /api/jobs                - Scheduled jobs
  POST /api/jobs/{name}/run     - Trigger a job

Example:
  go run ./cmd/findash api
  go run ./cmd/findash api --port 8080 --dashboard dashboard.yaml`,
	RunE: runAPIServer,
}

var (
	apiPort string
	apiWarm bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default is $PORT)")
	apiCmd.Flags().BoolVar(&apiWarm, "warm", true, "fetch once at startup")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== findash API Server ===")

	// 1-7. Wire the pipeline
	a, err := newApp(appOptions{logOut: os.Stdout, metrics: true, hub: true})
	if err != nil {
		return err
	}
	defer a.close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	log := a.log

	log.WithFields(map[string]interface{}{
		"port": a.cfg.Port,
		"env":  a.cfg.Env,
	}).Info("Initializing API server")

	// 8. Create scheduler
	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	// 9. Create handlers
	routes := api.Routes{
		Dashboard: handlers.NewDashboardHandler(a.service, log),
		Jobs:      handlers.NewJobsHandler(sched, log),
		Alerts:    a.hub,
		Metrics:   a.metrics,
	}

	// 10. Create router and server
	server := api.New(a.cfg, log, api.NewRouter(routes, log))

	// 11. Start scheduler and server
	sched.Start()
	if apiWarm {
		if err := sched.RunJob("cache_warm"); err != nil {
			log.WithError(err).Warn("Initial cache warm not started")
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/dashboard?category=fx&start=2024-01-01")
	fmt.Println("  GET  /api/report.md")
	fmt.Println("  GET  /api/export.xlsx")
	fmt.Println("  GET  /ws/alerts")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal or a failed listener
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		sched.Stop()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sched.Stop()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
