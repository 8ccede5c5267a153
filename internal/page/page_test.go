package page

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/yieldview/internal/apiclient"
	"github.com/dgnsrekt/yieldview/internal/apperr"
	"github.com/dgnsrekt/yieldview/internal/chartsync"
	"github.com/dgnsrekt/yieldview/internal/modal"
	"github.com/dgnsrekt/yieldview/internal/relay"
	"github.com/dgnsrekt/yieldview/internal/scatter"
)

const detailHTML = `<html><body>
<input type="hidden" name="csrfmiddlewaretoken" value="tok-detail">
<div data-has-scatters="true">
  <div class="scatter-chip" data-scatter-id="5" data-visible="false"><span class="scatter-name">DE 2024-01-05</span></div>
  <div class="scatter-chip" data-scatter-id="3" data-visible="true" data-zero-curve="true"><span class="scatter-name">US 2024-01-05</span></div>
</div>
<select id="scatter-country"><option value="US">US</option></select>
</body></html>`

type alertRecord struct{ level, message string }

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []alertRecord
}

func (a *recordingAlerter) Alert(_ context.Context, level, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alertRecord{level, message})
}

func (a *recordingAlerter) all() []alertRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]alertRecord(nil), a.alerts...)
}

type fakeBackend struct {
	html     string
	pageErr  error
	rangeErr error
	dataErr  error
	addResp  apiclient.MutationResponse

	mu         sync.Mutex
	token      string
	requested  []string
	pageLoads  int
	zeroCurves int
}

func (b *fakeBackend) Page(context.Context) ([]byte, error) {
	b.mu.Lock()
	b.pageLoads++
	b.mu.Unlock()
	return []byte(b.html), b.pageErr
}

func (b *fakeBackend) SetToken(token string) {
	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
}

func (b *fakeBackend) ScatterData(_ context.Context, ids []string) ([]apiclient.ScatterData, error) {
	b.mu.Lock()
	b.requested = append([]string(nil), ids...)
	b.mu.Unlock()
	if b.dataErr != nil {
		return nil, b.dataErr
	}
	return []apiclient.ScatterData{
		{Scatter: apiclient.ScatterInfo{ID: "3", DisplayName: "US 2024-01-05"}, Data: []apiclient.BondRow{{TTMYears: 1, Yield: 4.1}, {TTMYears: 10, Yield: 4.3}}},
		{Scatter: apiclient.ScatterInfo{ID: "5", DisplayName: "DE 2024-01-05"}, Data: []apiclient.BondRow{{TTMYears: 2, Yield: 2.4}}},
	}, nil
}

func (b *fakeBackend) BondDateRange(context.Context) (apiclient.DateRange, error) {
	if b.rangeErr != nil {
		return apiclient.DateRange{}, b.rangeErr
	}
	return apiclient.DateRange{MinDate: "2020-01-01", MaxDate: "2024-01-05", DefaultDate: "2024-01-05"}, nil
}

func (b *fakeBackend) FetchOverlay(_ context.Context, id string) (chartsync.Overlay, error) {
	b.mu.Lock()
	b.zeroCurves++
	b.mu.Unlock()
	return chartsync.Overlay{Points: []chartsync.CurvePoint{{X: 1, Y: 4}, {X: 10, Y: 4.4}}}, nil
}

func (b *fakeBackend) DeleteScatter(context.Context, string) error { return nil }

func (b *fakeBackend) AddScatter(context.Context, string, string) (apiclient.MutationResponse, error) {
	return b.addResp, nil
}

func newDetail(t *testing.T, backend *fakeBackend) (*DetailPage, *chartsync.Registry, *recordingAlerter) {
	t.Helper()
	reg := chartsync.NewRegistry(backend, nil)
	alerts := &recordingAlerter{}
	ctrl := scatter.NewController(reg, backend, alerts, nil)
	p := NewDetailPage(9, backend, reg, ctrl, alerts, modal.FeedFactory(relay.NewBroker()))
	p.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return p, reg, alerts
}

func TestDetailInitLoadsAllChipsInPageOrder(t *testing.T) {
	backend := &fakeBackend{html: detailHTML}
	p, reg, alerts := newDetail(t, backend)

	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if backend.token != "tok-detail" {
		t.Fatalf("token = %q", backend.token)
	}
	if got := strings.Join(backend.requested, ","); got != "5,3" {
		t.Fatalf("requested ids = %q; want 5,3", got)
	}
	ds := reg.Datasets()
	if len(ds) != 2 || ds[0].ID != "5" || ds[0].Visible || ds[1].ID != "3" || !ds[1].Visible {
		t.Fatalf("datasets = %+v", ds)
	}
	if got := reg.OverlayStatus("3"); got != chartsync.OverlayEnabled {
		t.Fatalf("zero curve of chip 3 = %s; want enabled", got)
	}
	state := reg.Resynchronize()
	if len(state.Datasets) != 2 || state.Datasets[0].DatasetID != "3" || state.Datasets[1].Kind != chartsync.KindLine {
		t.Fatalf("chart state = %+v", state.Datasets)
	}

	view := p.View()
	if view.DateInput.Value != "2024-01-05" || view.DateInput.Min != "2020-01-01" {
		t.Fatalf("date input = %+v", view.DateInput)
	}
	if !view.HasScatters || len(view.Chips) != 2 || len(view.Countries) != 1 {
		t.Fatalf("view = %+v", view)
	}
	if len(alerts.all()) != 0 {
		t.Fatalf("alerts = %v", alerts.all())
	}
}

func TestDetailInitDateRangeFallback(t *testing.T) {
	backend := &fakeBackend{html: detailHTML, rangeErr: apperr.HTTPStatus(500)}
	p, _, alerts := newDetail(t, backend)
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if got := p.View().DateInput; got.Value != "2024-03-01" || got.Min != "" {
		t.Fatalf("date input = %+v; want today fallback", got)
	}
	got := alerts.all()
	if len(got) != 1 || got[0].level != "warning" || got[0].message != MsgDateRangeWarning {
		t.Fatalf("alerts = %+v", got)
	}
}

func TestDetailInitDataFailureLeavesEmptyChart(t *testing.T) {
	backend := &fakeBackend{html: detailHTML, dataErr: errors.New("backend down")}
	p, reg, _ := newDetail(t, backend)
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !reg.Resynchronize().Empty() {
		t.Fatal("chart not empty after data failure")
	}
}

func TestDetailInitPageFailure(t *testing.T) {
	backend := &fakeBackend{pageErr: apperr.HTTPStatus(404)}
	p, _, _ := newDetail(t, backend)
	if err := p.Init(context.Background()); !apperr.Is(err, apperr.CodeNetwork) {
		t.Fatalf("Init() error = %v; want NETWORK", err)
	}
}

func TestHandleAddScatter(t *testing.T) {
	backend := &fakeBackend{html: detailHTML, addResp: apiclient.MutationResponse{Success: true}}
	p, _, alerts := newDetail(t, backend)
	ctx := context.Background()

	if err := p.HandleAddScatter(ctx, "US", " "); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("HandleAddScatter(blank date) error = %v; want VALIDATION", err)
	}
	if got := alerts.all(); len(got) != 1 || got[0].message != MsgSelectCountryAndDate {
		t.Fatalf("alerts = %+v", got)
	}

	p.OpenAddScatter()
	if !p.View().AddScatterOpen {
		t.Fatal("dialog not open after OpenAddScatter")
	}
	if err := p.HandleAddScatter(ctx, "US", "2024-01-05"); err != nil {
		t.Fatalf("HandleAddScatter() error = %v", err)
	}
	view := p.View()
	if view.AddScatterOpen {
		t.Fatal("dialog still open after successful add")
	}
	if view.SaveButton.Loading || view.SaveButton.Text != "Add Scatter" {
		t.Fatalf("save button = %+v", view.SaveButton)
	}
	if backend.pageLoads != 1 {
		t.Fatalf("page loads = %d; want 1 reload", backend.pageLoads)
	}
}

type fakeListBackend struct {
	html    string
	resp    apiclient.MutationResponse
	err     error
	token   string
	created []string
}

func (b *fakeListBackend) ListPage(context.Context) ([]byte, error) { return []byte(b.html), nil }
func (b *fakeListBackend) SetToken(token string)                     { b.token = token }
func (b *fakeListBackend) CreateAnalysis(_ context.Context, createURL, name string) (apiclient.MutationResponse, error) {
	b.created = append(b.created, createURL+"|"+name)
	return b.resp, b.err
}

func TestHandleAddAnalysis(t *testing.T) {
	backend := &fakeListBackend{
		html: `<html><body><input name="csrfmiddlewaretoken" value="tok-list"><button data-create-url="/yield-curves/analysis/create/"></button></body></html>`,
		resp: apiclient.MutationResponse{Success: true, RedirectURL: "/yield-curves/analysis/10/"},
	}
	alerts := &recordingAlerter{}
	p := NewListPage(backend, alerts, modal.FeedFactory(relay.NewBroker()))
	ctx := context.Background()
	if err := p.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if backend.token != "tok-list" {
		t.Fatalf("token = %q", backend.token)
	}

	if _, err := p.HandleAddAnalysis(ctx, "   "); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("blank name error = %v", err)
	}

	p.OpenAddAnalysis()
	url, err := p.HandleAddAnalysis(ctx, "  Q1 curves ")
	if err != nil {
		t.Fatalf("HandleAddAnalysis() error = %v", err)
	}
	if url != "/yield-curves/analysis/10/" {
		t.Fatalf("redirect = %q", url)
	}
	if backend.created[0] != "/yield-curves/analysis/create/|Q1 curves" {
		t.Fatalf("created = %v", backend.created)
	}
	if p.View().AddAnalysisOpen {
		t.Fatal("dialog still open after create")
	}

	backend.resp = apiclient.MutationResponse{Success: false, Error: "Name taken"}
	if _, err := p.HandleAddAnalysis(ctx, "Q1 curves"); !apperr.Is(err, apperr.CodeBackend) {
		t.Fatalf("duplicate error = %v", err)
	}

	backend.err = apperr.HTTPStatus(500)
	if _, err := p.HandleAddAnalysis(ctx, "Q2"); err == nil {
		t.Fatal("transport failure error = nil")
	}

	p.setCreateURL("")
	if _, err := p.HandleAddAnalysis(ctx, "Q3"); err == nil {
		t.Fatal("missing create url error = nil")
	}

	got := alerts.all()
	want := []string{
		MsgEnterAnalysisName,
		"Error: Name taken",
		"Error creating analysis: HTTP error! status: 500",
		"Error creating analysis: Create URL not found",
	}
	if len(got) != len(want) {
		t.Fatalf("alerts = %+v", got)
	}
	for i := range want {
		if got[i].message != want[i] {
			t.Fatalf("alert[%d] = %q; want %q", i, got[i].message, want[i])
		}
	}
	if p.View().SaveButton.Loading {
		t.Fatal("save button still loading")
	}
}
