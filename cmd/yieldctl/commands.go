package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/yieldview/internal/apiclient"
	"github.com/dgnsrekt/yieldview/internal/chartsync"
	"github.com/dgnsrekt/yieldview/internal/config"
	"github.com/dgnsrekt/yieldview/internal/export"
	"github.com/dgnsrekt/yieldview/internal/modal"
	"github.com/dgnsrekt/yieldview/internal/page"
	"github.com/dgnsrekt/yieldview/internal/relay"
	"github.com/dgnsrekt/yieldview/internal/render"
	"github.com/dgnsrekt/yieldview/internal/scatter"
	"github.com/dgnsrekt/yieldview/internal/ui"
)

var (
	backendFlag  string
	analysisFlag int
	styleFlag    string
	timeoutFlag  time.Duration

	renderOut      string
	exportOut      string
	formatFlag     string
	allVisibleFlag bool
	zeroCurveFlag  []string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the analysis chart",
	Long: `Render the analysis chart as a PNG image or as the Chart.js
configuration the web page would receive.

Examples:
  yieldctl render -a 12 -o curve.png
  yieldctl render -a 12 --zero-curve all -o curve.png
  yieldctl render -a 12 --format chartjs -o -`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state, style, err := loadChart(cmd.Context())
		if err != nil {
			return err
		}
		var data []byte
		switch formatFlag {
		case "png":
			data, err = render.NewPNGRenderer(style).Render(state)
		case "chartjs":
			data, err = json.MarshalIndent(render.ChartJSConfig(state, style), "", "  ")
		default:
			return fmt.Errorf("unknown format %q (want png or chartjs)", formatFlag)
		}
		if err != nil {
			return err
		}
		return writeOutput(renderOut, cmd.OutOrStdout(), data)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the visible chart series as an Excel workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state, _, err := loadChart(cmd.Context())
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, state); err != nil {
			return err
		}
		return writeOutput(exportOut, cmd.OutOrStdout(), buf.Bytes())
	},
}

var dateRangeCmd = &cobra.Command{
	Use:   "date-range",
	Short: "Print the span of dates with bond data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		dr, err := client.BondDateRange(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(dr)
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "chart.png", "output file, - for stdout")
	renderCmd.Flags().StringVarP(&formatFlag, "format", "f", "png", "output format (png, chartjs)")
	addChartFlags(renderCmd)

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "chart.xlsx", "output file, - for stdout")
	addChartFlags(exportCmd)
}

func addChartFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&allVisibleFlag, "all-visible", false, "show every scatter, including hidden ones")
	cmd.Flags().StringSliceVar(&zeroCurveFlag, "zero-curve", nil, "scatter ids whose zero curve is drawn, or all")
}

func newClient() (*apiclient.Client, error) {
	return apiclient.New(cfg.BackendURL, &http.Client{Timeout: cfg.RequestTimeout()})
}

// loadChart runs the detail page lifecycle once and returns the synchronized
// chart state.
func loadChart(ctx context.Context) (chartsync.ChartState, render.Style, error) {
	if cfg.AnalysisID <= 0 {
		return chartsync.ChartState{}, render.Style{}, errors.New("an analysis id is required (--analysis or ANALYSIS_ID)")
	}
	style, err := config.LoadChartStyle(cfg.ChartStylePath)
	if err != nil {
		return chartsync.ChartState{}, render.Style{}, err
	}
	palette, err := style.ChartPalette()
	if err != nil {
		return chartsync.ChartState{}, render.Style{}, err
	}
	client, err := newClient()
	if err != nil {
		return chartsync.ChartState{}, render.Style{}, err
	}

	analysis := client.Analysis(cfg.AnalysisID)
	registry := chartsync.NewRegistry(analysis, palette)
	alerts := ui.LogAlerter{}
	scatters := scatter.NewController(registry, analysis, alerts, nil)
	detail := page.NewDetailPage(cfg.AnalysisID, analysis, registry, scatters, alerts, modal.FeedFactory(relay.NewBroker()))
	if err := detail.Init(ctx); err != nil {
		return chartsync.ChartState{}, render.Style{}, err
	}

	if allVisibleFlag {
		for _, ds := range registry.Datasets() {
			registry.SetVisible(ds.ID, true)
		}
	}
	if err := enableZeroCurves(ctx, registry, zeroCurveIDs(zeroCurveFlag, registry.Datasets())); err != nil {
		return chartsync.ChartState{}, render.Style{}, err
	}
	return registry.Resynchronize(), style, nil
}

// enableZeroCurves fetches the zero curve of every id. An id the page did not
// load is an error.
func enableZeroCurves(ctx context.Context, registry *chartsync.Registry, ids []string) error {
	for _, id := range ids {
		if _, ok := registry.Dataset(id); !ok {
			return fmt.Errorf("scatter %s not found", id)
		}
	}
	for _, id := range ids {
		if _, err := registry.FetchOverlay(ctx, id); err != nil {
			return fmt.Errorf("zero curve %s: %w", id, err)
		}
	}
	return nil
}

// zeroCurveIDs expands the --zero-curve values. "all" selects every visible
// dataset; other ids pass through unchecked.
func zeroCurveIDs(values []string, datasets []chartsync.Dataset) []string {
	var ids []string
	seen := map[string]bool{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.EqualFold(v, "all") {
			for _, ds := range datasets {
				if ds.Visible && !seen[ds.ID] {
					seen[ds.ID] = true
					ids = append(ids, ds.ID)
				}
			}
			continue
		}
		if !seen[v] {
			seen[v] = true
			ids = append(ids, v)
		}
	}
	return ids
}

func writeOutput(path string, stdout io.Writer, data []byte) error {
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", path, len(data))
	return nil
}
