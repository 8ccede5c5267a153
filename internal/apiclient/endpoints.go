package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dgnsrekt/yieldview/internal/apperr"
	"github.com/dgnsrekt/yieldview/internal/chartsync"
)

// Number decodes a JSON number, a numeric string or null (zero).
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("apiclient: number %q: %w", s, err)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// ScatterInfo identifies one scatter on the backend.
type ScatterInfo struct {
	ID          ID     `json:"id"`
	DisplayName string `json:"display_name"`
}

// BondRow is one bond of a scatter data response.
type BondRow struct {
	TTMYears     Number `json:"ttm_years"`
	Yield        Number `json:"yield"`
	ISIN         string `json:"isin"`
	Coupon       Number `json:"coupon"`
	MaturityDate string `json:"maturity_date"`
	Description  string `json:"description"`
}

// ScatterData is one element of the scatter data response.
type ScatterData struct {
	Scatter ScatterInfo `json:"scatter"`
	Data    []BondRow   `json:"data"`
}

// Dataset converts the response into a registry dataset.
func (s ScatterData) Dataset(visible bool) chartsync.Dataset {
	points := make([]chartsync.BondPoint, 0, len(s.Data))
	for _, row := range s.Data {
		points = append(points, chartsync.BondPoint{
			X:            float64(row.TTMYears),
			Y:            float64(row.Yield),
			ISIN:         row.ISIN,
			Coupon:       float64(row.Coupon),
			MaturityDate: row.MaturityDate,
			Description:  row.Description,
		})
	}
	return chartsync.Dataset{
		ID:          string(s.Scatter.ID),
		DisplayName: s.Scatter.DisplayName,
		Points:      points,
		Visible:     visible,
	}
}

// ZeroCurveRow is one point of a zero-curve response.
type ZeroCurveRow struct {
	TTMYears Number `json:"ttm_years"`
	ZeroRate Number `json:"zero_rate"`
}

// ZeroCurveResponse is the body of the zero-curve endpoint.
type ZeroCurveResponse struct {
	Success bool           `json:"success"`
	Scatter ScatterInfo    `json:"scatter"`
	Data    []ZeroCurveRow `json:"data"`
	Error   string         `json:"error,omitempty"`
}

// MutationResponse is the body returned by create endpoints.
type MutationResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Error       string `json:"error,omitempty"`
}

// DateRange is the span of dates with bond data.
type DateRange struct {
	MinDate     string `json:"min_date"`
	MaxDate     string `json:"max_date"`
	DefaultDate string `json:"default_date"`
}

// BondDateRange fetches the available bond data dates.
func (c *Client) BondDateRange(ctx context.Context) (DateRange, error) {
	var out DateRange
	if err := c.Get(ctx, "/yield-curves/api/bond-date-range/", &out); err != nil {
		return DateRange{}, err
	}
	return out, nil
}

// CreateAnalysis posts a new analysis name to createURL.
func (c *Client) CreateAnalysis(ctx context.Context, createURL, name string) (MutationResponse, error) {
	var out MutationResponse
	if err := c.Post(ctx, createURL, map[string]string{"name": name}, &out); err != nil {
		return MutationResponse{}, err
	}
	return out, nil
}

// Analysis scopes endpoints to one analysis.
type Analysis struct {
	client *Client
	id     int
}

// Analysis returns the endpoints of analysis id.
func (c *Client) Analysis(id int) *Analysis {
	return &Analysis{client: c, id: id}
}

func (a *Analysis) path(suffix string) string {
	return fmt.Sprintf("/yield-curves/analysis/%d/%s", a.id, suffix)
}

// scatterPath builds a per-scatter path with the id as one escaped segment.
func (a *Analysis) scatterPath(scatterID, suffix string) (string, error) {
	scatterID = strings.TrimSpace(scatterID)
	if scatterID == "" || scatterID == "." || scatterID == ".." {
		return "", apperr.Validation("invalid scatter id " + strconv.Quote(scatterID))
	}
	return a.path("scatter/" + url.PathEscape(scatterID) + "/" + suffix), nil
}

// PagePath returns the path of the analysis detail page.
func (a *Analysis) PagePath() string { return a.path("") }

// ScatterData fetches bond data for the given scatter ids.
func (a *Analysis) ScatterData(ctx context.Context, ids []string) ([]ScatterData, error) {
	if ids == nil {
		ids = []string{}
	}
	var out []ScatterData
	if err := a.client.Post(ctx, a.path("scatter/data/"), map[string][]string{"scatter_ids": ids}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ZeroCurve fetches the zero curve of one scatter. A success:false body is a
// BACKEND error carrying the backend message.
func (a *Analysis) ZeroCurve(ctx context.Context, scatterID string) (ZeroCurveResponse, error) {
	path, err := a.scatterPath(scatterID, "zero-curve/")
	if err != nil {
		return ZeroCurveResponse{}, err
	}
	var out ZeroCurveResponse
	if err := a.client.Get(ctx, path, &out); err != nil {
		return ZeroCurveResponse{}, err
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "zero curve unavailable"
		}
		return out, apperr.New(apperr.CodeBackend, msg, nil)
	}
	return out, nil
}

// FetchOverlay adapts ZeroCurve to the registry's overlay fetcher.
func (a *Analysis) FetchOverlay(ctx context.Context, datasetID string) (chartsync.Overlay, error) {
	resp, err := a.ZeroCurve(ctx, datasetID)
	if err != nil {
		return chartsync.Overlay{}, err
	}
	points := make([]chartsync.CurvePoint, 0, len(resp.Data))
	for _, row := range resp.Data {
		points = append(points, chartsync.CurvePoint{X: float64(row.TTMYears), Y: float64(row.ZeroRate)})
	}
	return chartsync.Overlay{DatasetID: datasetID, DisplayName: resp.Scatter.DisplayName, Points: points}, nil
}

// AddScatter asks the backend to build a scatter for country and date.
func (a *Analysis) AddScatter(ctx context.Context, country, date string) (MutationResponse, error) {
	var out MutationResponse
	if err := a.client.Post(ctx, a.path("scatter/add"), map[string]string{"country": country, "date": date}, &out); err != nil {
		return MutationResponse{}, err
	}
	return out, nil
}

// DeleteScatter removes one scatter.
func (a *Analysis) DeleteScatter(ctx context.Context, scatterID string) error {
	path, err := a.scatterPath(scatterID, "delete/")
	if err != nil {
		return err
	}
	return a.client.Delete(ctx, path, nil)
}

// Page fetches the analysis detail page HTML.
func (a *Analysis) Page(ctx context.Context) ([]byte, error) {
	return a.client.GetHTML(ctx, a.PagePath())
}

// AnalysisListPath is the page listing every analysis.
const AnalysisListPath = "/yield-curves/analysis/"

// ListPage fetches the analysis list page HTML.
func (c *Client) ListPage(ctx context.Context) ([]byte, error) {
	return c.GetHTML(ctx, AnalysisListPath)
}

// SetToken replaces the CSRF token of the underlying client.
func (a *Analysis) SetToken(token string) { a.client.SetToken(token) }

// BondDateRange fetches the available bond data dates.
func (a *Analysis) BondDateRange(ctx context.Context) (DateRange, error) {
	return a.client.BondDateRange(ctx)
}
