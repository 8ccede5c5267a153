package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dgnsrekt/yieldview/internal/apperr"
	"github.com/dgnsrekt/yieldview/internal/chartsync"
	"github.com/dgnsrekt/yieldview/internal/modal"
	"github.com/dgnsrekt/yieldview/internal/page"
	"github.com/dgnsrekt/yieldview/internal/relay"
	"github.com/dgnsrekt/yieldview/internal/render"
	"github.com/dgnsrekt/yieldview/internal/scatter"
	"github.com/dgnsrekt/yieldview/internal/snapshot"
	"github.com/dgnsrekt/yieldview/internal/ui"
)

type Service interface {
	ChartState(ctx context.Context) chartsync.ChartState
	ChartConfig(ctx context.Context) render.ChartConfig
	ChartPNG(ctx context.Context) ([]byte, error)
	ChartXLSX(ctx context.Context) ([]byte, error)
	ListChips(ctx context.Context) ([]scatter.Chip, error)
	GetChip(ctx context.Context, id string) (scatter.Chip, error)
	ToggleVisibility(ctx context.Context, id string) (scatter.Chip, error)
	ToggleZeroCurve(ctx context.Context, id string) (scatter.Chip, error)
	RefreshZeroCurve(ctx context.Context, id string) (scatter.Chip, error)
	DeleteScatter(ctx context.Context, id string) error
	AddScatter(ctx context.Context, country, date string) (page.DetailView, error)
	DetailView(ctx context.Context) (page.DetailView, error)
	ReloadPage(ctx context.Context) (page.DetailView, error)
	ListView(ctx context.Context) page.ListView
	SetModal(ctx context.Context, name string, open bool) (modal.State, error)
	CreateAnalysis(ctx context.Context, name string) (string, error)
	RecentAlerts(ctx context.Context) []ui.Alert
	TakeSnapshot(ctx context.Context, source, notes string) (snapshot.Meta, error)
	ListSnapshots(ctx context.Context, analysisID string) ([]snapshot.Meta, error)
	GetSnapshot(ctx context.Context, id string) (snapshot.Meta, error)
	ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// Options configures the HTTP surface around a Service.
type Options struct {
	// Broker feeds /api/v1/events and /api/v1/ws. Nil disables both.
	Broker *relay.Broker
	// CORSOrigins lists the web app origins allowed to call the API.
	CORSOrigins []string
}

func NewServer(svc Service, opts Options) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRFToken", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	cfg := huma.DefaultConfig("yieldview Console API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", htmlHandler(docsHTML))
	router.Get("/docs/events", htmlHandler(eventsDocsHTML))
	if opts.Broker != nil {
		router.Get("/api/v1/events", relay.SSEHandler(opts.Broker))
		router.Get("/api/v1/ws", relay.WSHandler(opts.Broker))
	}

	registerChartHandlers(api, svc)
	registerScatterHandlers(api, svc)
	registerPageHandlers(api, svc)
	registerSnapshotHandlers(api, svc)

	return router
}

func htmlHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(body)); err != nil {
			slog.Debug("docs response write failed", "path", r.URL.Path, "error", err)
		}
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *apperr.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case apperr.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case apperr.CodeNotFound:
			return huma.Error404NotFound(coded.Message)
		case apperr.CodeStale:
			return huma.Error409Conflict(coded.Message)
		case apperr.CodeNetwork, apperr.CodeBackend, apperr.CodeCDPUnavailable:
			return huma.Error502BadGateway(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func newStatus(status string) *statusOutput {
	out := &statusOutput{}
	out.Body.Status = status
	return out
}
