// yieldctl renders and exports an analysis chart without running the
// console server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/yieldview/internal/config"
)

var (
	cfg      *config.ConsoleConfig
	logLevel string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "yieldctl",
	Short: "Render and export yield curve analysis charts",
	Long: `yieldctl loads an analysis from the backend the same way the console
does and writes the resulting chart as a PNG, a Chart.js config or an
Excel workbook.

Backend settings come from the environment (BACKEND_URL, ANALYSIS_ID,
YIELDVIEW_CHART_STYLE) or an optional .env file; flags override them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(logLevel)})))

		loaded, err := config.LoadConsole()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("backend") {
			loaded.BackendURL = strings.TrimRight(backendFlag, "/")
		}
		if cmd.Flags().Changed("analysis") {
			loaded.AnalysisID = analysisFlag
		}
		if cmd.Flags().Changed("style") {
			loaded.ChartStylePath = styleFlag
		}
		if cmd.Flags().Changed("timeout") {
			loaded.RequestTimeoutMS = int(timeoutFlag.Milliseconds())
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "backend base URL (default $BACKEND_URL)")
	rootCmd.PersistentFlags().IntVarP(&analysisFlag, "analysis", "a", 0, "analysis id (default $ANALYSIS_ID)")
	rootCmd.PersistentFlags().StringVar(&styleFlag, "style", "", "chart style YAML (default $YIELDVIEW_CHART_STYLE)")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 0, "per-request timeout (default $YIELDVIEW_REQUEST_TIMEOUT_MS)")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(dateRangeCmd)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
