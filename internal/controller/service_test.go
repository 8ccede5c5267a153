package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/yieldview/internal/api"
	"github.com/dgnsrekt/yieldview/internal/apiclient"
	"github.com/dgnsrekt/yieldview/internal/apperr"
	"github.com/dgnsrekt/yieldview/internal/chartsync"
	"github.com/dgnsrekt/yieldview/internal/journal"
	"github.com/dgnsrekt/yieldview/internal/relay"
	"github.com/dgnsrekt/yieldview/internal/render"
	"github.com/dgnsrekt/yieldview/internal/scatter"
	"github.com/dgnsrekt/yieldview/internal/snapshot"
)

const detailHTML = `<html><body>
<input type="hidden" name="csrfmiddlewaretoken" value="tok-1">
<div id="scatter-list" data-has-scatters="true">
  <div class="scatter-chip" data-scatter-id="12" data-visible="true" data-zero-curve="false">
    <span class="scatter-name">US 2024-01-05</span>
  </div>
</div>
<select id="scatter-country"><option value="US">US</option></select>
</body></html>`

const listHTML = `<html><body><input name="csrfmiddlewaretoken" value="tok-list">
<button id="add-analysis-btn" data-create-url="/yield-curves/analysis/create/">New</button></body></html>`

type fakeBackend struct {
	deletes    atomic.Int32
	zeroCurves atomic.Int32
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /yield-curves/analysis/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listHTML))
	})
	mux.HandleFunc("GET /yield-curves/analysis/5/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(detailHTML))
	})
	mux.HandleFunc("GET /yield-curves/api/bond-date-range/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"min_date":"2023-01-02","max_date":"2024-03-01","default_date":"2024-03-01"}`))
	})
	mux.HandleFunc("POST /yield-curves/analysis/5/scatter/data/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"scatter":{"id":12,"display_name":"US 2024-01-05"},"data":[
			{"ttm_years":1.5,"yield":4.2,"isin":"US1","coupon":3,"maturity_date":"2025-07-01","description":"note"},
			{"ttm_years":9.8,"yield":4.0,"isin":"US2","coupon":4,"maturity_date":"2033-11-01","description":"bond"}]}]`))
	})
	mux.HandleFunc("GET /yield-curves/analysis/5/scatter/12/zero-curve/", func(w http.ResponseWriter, r *http.Request) {
		f.zeroCurves.Add(1)
		_, _ = w.Write([]byte(`{"success":true,"scatter":{"display_name":"US 2024-01-05"},"data":[{"ttm_years":1,"zero_rate":4.1},{"ttm_years":10,"zero_rate":3.9}]}`))
	})
	mux.HandleFunc("DELETE /yield-curves/analysis/5/scatter/12/delete/", func(w http.ResponseWriter, r *http.Request) {
		f.deletes.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /", func(w http.ResponseWriter, r *http.Request) {
		f.deletes.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newTestService(t *testing.T, analysisID int) (*Service, *fakeBackend, *relay.Broker) {
	t.Helper()
	fb := &fakeBackend{}
	srv := httptest.NewServer(fb.handler())
	t.Cleanup(srv.Close)

	client, err := apiclient.New(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("apiclient.New() error = %v", err)
	}
	snaps, err := snapshot.NewStore(filepath.Join(t.TempDir(), "snaps"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	broker := relay.NewBroker()
	svc, err := NewService(Options{Client: client, AnalysisID: analysisID, Broker: broker, Snapshots: snaps, Style: render.DefaultStyle()})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc, fb, broker
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(Options{}); err == nil {
		t.Fatal("NewService() = nil error; want missing dependency error")
	}
}

func TestServiceLifecycle(t *testing.T) {
	svc, fb, broker := newTestService(t, 5)
	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	state := svc.ChartState(ctx)
	if len(state.Datasets) != 1 || state.Datasets[0].Label != "US 2024-01-05" || len(state.Datasets[0].Points) != 2 {
		t.Fatalf("ChartState() = %+v", state)
	}
	if got := svc.ListView(ctx).CreateURL; got != "/yield-curves/analysis/create/" {
		t.Fatalf("ListView().CreateURL = %q", got)
	}

	evt, ok := broker.Last(relay.FeedChips)
	if !ok {
		t.Fatal("no chips event published")
	}
	var chips []scatter.Chip
	if err := json.Unmarshal([]byte(evt.Payload), &chips); err != nil {
		t.Fatalf("Unmarshal(chips) error = %v", err)
	}
	if len(chips) != 1 || chips[0].ID != "12" || !chips[0].Visible {
		t.Fatalf("chips = %+v", chips)
	}
	if _, ok := broker.Last(relay.FeedPage); !ok {
		t.Fatal("no page event published")
	}

	chip, err := svc.ToggleZeroCurve(ctx, "12")
	if err != nil {
		t.Fatalf("ToggleZeroCurve() error = %v", err)
	}
	if chip.ZeroCurve != chartsync.OverlayEnabled {
		t.Fatalf("ZeroCurve = %q; want enabled", chip.ZeroCurve)
	}
	if got := len(svc.ChartState(ctx).Datasets); got != 2 {
		t.Fatalf("datasets after overlay = %d; want 2", got)
	}

	meta, err := svc.TakeSnapshot(ctx, "", "first")
	if err != nil {
		t.Fatalf("TakeSnapshot() error = %v", err)
	}
	if meta.AnalysisID != "5" || len(meta.Labels) != 2 || meta.Source != snapshot.SourcePNG {
		t.Fatalf("snapshot meta = %+v", meta)
	}
	if _, err := svc.TakeSnapshot(ctx, "browser", ""); !apperr.Is(err, apperr.CodeCDPUnavailable) {
		t.Fatalf("TakeSnapshot(browser) error = %v; want CDP_UNAVAILABLE", err)
	}

	xlsx, err := svc.ChartXLSX(ctx)
	if err != nil || len(xlsx) == 0 {
		t.Fatalf("ChartXLSX() = %d bytes, %v", len(xlsx), err)
	}

	if _, err := svc.ToggleVisibility(ctx, "99"); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("ToggleVisibility(unknown) error = %v; want NOT_FOUND", err)
	}
	if _, err := svc.ToggleZeroCurve(ctx, "99"); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("ToggleZeroCurve(unknown) error = %v; want NOT_FOUND", err)
	}
	if got := fb.zeroCurves.Load(); got != 1 {
		t.Fatalf("zero curve fetches after unknown toggle = %d; want 1", got)
	}
	if err := svc.DeleteScatter(ctx, "999"); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("DeleteScatter(unknown) error = %v; want NOT_FOUND", err)
	}
	if got := fb.deletes.Load(); got != 0 {
		t.Fatalf("backend deletes after unknown id = %d; want 0", got)
	}
	if err := svc.DeleteScatter(ctx, "12"); err != nil {
		t.Fatalf("DeleteScatter() error = %v", err)
	}
	if fb.deletes.Load() != 1 || !svc.ChartState(ctx).Empty() {
		t.Fatalf("after delete: deletes=%d state=%+v", fb.deletes.Load(), svc.ChartState(ctx))
	}
	if fb.zeroCurves.Load() != 1 {
		t.Fatalf("zero curve fetches = %d; want 1", fb.zeroCurves.Load())
	}
}

func TestServiceModals(t *testing.T) {
	svc, _, _ := newTestService(t, 5)
	ctx := context.Background()

	st, err := svc.SetModal(ctx, "addScatterModal", true)
	if err != nil || !st.Open {
		t.Fatalf("SetModal(open) = %+v, %v", st, err)
	}
	st, err = svc.SetModal(ctx, "addScatterModal", false)
	if err != nil || st.Open {
		t.Fatalf("SetModal(close) = %+v, %v", st, err)
	}
	if _, err := svc.SetModal(ctx, "nope", true); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("SetModal(unknown) error = %v; want NOT_FOUND", err)
	}
}

func TestServiceWithoutAnalysis(t *testing.T) {
	svc, _, _ := newTestService(t, 0)
	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := svc.ListChips(ctx); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("ListChips() error = %v; want NOT_FOUND", err)
	}
	if _, err := svc.SetModal(ctx, "addAnalysisModal", true); err != nil {
		t.Fatalf("SetModal(addAnalysisModal) error = %v", err)
	}
	if !svc.ChartState(ctx).Empty() {
		t.Fatal("chart not empty without analysis")
	}
	if _, err := svc.GetSnapshot(ctx, " "); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("GetSnapshot(blank) error = %v; want VALIDATION", err)
	}
}

func TestServiceJournal(t *testing.T) {
	fb := &fakeBackend{}
	srv := httptest.NewServer(fb.handler())
	t.Cleanup(srv.Close)

	client, err := apiclient.New(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("apiclient.New() error = %v", err)
	}
	snaps, err := snapshot.NewStore(filepath.Join(t.TempDir(), "snaps"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	dir := t.TempDir()
	jw := journal.New(dir, 5, 64, 1)
	svc, err := NewService(Options{Client: client, AnalysisID: 5, Broker: relay.NewBroker(), Snapshots: snaps, Journal: jw})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := jw.Close(); err != nil {
		t.Fatalf("journal Close() error = %v", err)
	}

	raw, err := os.ReadFile(journal.Path(dir, time.Now()))
	if err != nil {
		t.Fatalf("ReadFile(journal) error = %v", err)
	}
	if !strings.Contains(string(raw), `"kind":"chart"`) || !strings.Contains(string(raw), `"series":["US 2024-01-05"]`) {
		t.Fatalf("journal = %s; want chart records with the loaded series", raw)
	}
}

func TestDeleteRouteNeverForwardsUnknownIDs(t *testing.T) {
	svc, fb, _ := newTestService(t, 5)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	srv := httptest.NewServer(api.NewServer(svc, api.Options{}))
	t.Cleanup(srv.Close)

	for _, path := range []string{
		"/api/v1/scatters/999",
		"/api/v1/scatters/..%2F..%2F9%2Fscatter%2F4",
		"/api/v1/scatters/4%3Fx=1",
	} {
		req, err := http.NewRequest(http.MethodDelete, srv.URL+path, nil)
		if err != nil {
			t.Fatalf("NewRequest(%s) error = %v", path, err)
		}
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("DELETE %s error = %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("DELETE %s status = %d; want 404", path, resp.StatusCode)
		}
	}
	if got := fb.deletes.Load(); got != 0 {
		t.Fatalf("backend deletes = %d; want 0", got)
	}
	if len(svc.ChartState(context.Background()).Datasets) != 1 {
		t.Fatal("dataset removed by an unknown-id delete")
	}
}
