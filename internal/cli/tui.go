package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/existflow/keepsession/internal/logger"
	"github.com/existflow/keepsession/internal/metrics"
	"github.com/existflow/keepsession/internal/tui"
	"github.com/spf13/cobra"
)

var metricsAddr string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive TUI",
	Long: `Launch the interactive TUI. With --metrics-addr, Prometheus metrics
for requests, refreshes, retries and session transitions are served at
/metrics while it runs.`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

func runTUI(cmd *cobra.Command, args []string) error {
	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if metricsAddr != "" {
		stop := serveMetrics(app)
		defer stop()
	}

	if err := tui.Run(app.Session, app.Health); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// serveMetrics exposes the app's registry until the returned func is called
func serveMetrics(app *App) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(app.Registry))
	srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics", logger.F("addr", metricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", logger.F("error", err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
