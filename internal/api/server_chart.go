package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/yieldview/internal/chartsync"
	"github.com/dgnsrekt/yieldview/internal/render"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func registerChartHandlers(api huma.API, svc Service) {
	type chartStateOutput struct {
		Body chartsync.ChartState
	}
	huma.Register(api, huma.Operation{OperationID: "get-chart-state", Method: http.MethodGet, Path: "/api/v1/chart", Summary: "Get the current chart state", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct{}) (*chartStateOutput, error) {
			out := &chartStateOutput{}
			out.Body = svc.ChartState(ctx)
			if out.Body.Datasets == nil {
				out.Body.Datasets = []chartsync.Descriptor{}
			}
			return out, nil
		})

	type chartConfigOutput struct {
		Body render.ChartConfig
	}
	huma.Register(api, huma.Operation{OperationID: "get-chart-config", Method: http.MethodGet, Path: "/api/v1/chart/config", Summary: "Get the Chart.js configuration of the current chart", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct{}) (*chartConfigOutput, error) {
			out := &chartConfigOutput{}
			out.Body = svc.ChartConfig(ctx)
			return out, nil
		})

	type binaryOutput struct {
		ContentType        string `header:"Content-Type"`
		ContentDisposition string `header:"Content-Disposition"`
		Body               []byte
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-chart-png",
		Method:      http.MethodGet,
		Path:        "/api/v1/chart.png",
		Summary:     "Render the current chart as PNG",
		Tags:        []string{"Chart"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Chart image",
				Content: map[string]*huma.MediaType{
					"image/png": {Schema: &huma.Schema{Type: "string", Format: "binary"}},
				},
			},
		},
	}, func(ctx context.Context, input *struct{}) (*binaryOutput, error) {
		img, err := svc.ChartPNG(ctx)
		if err != nil {
			return nil, mapErr(err)
		}
		return &binaryOutput{ContentType: "image/png", Body: img}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-chart-xlsx",
		Method:      http.MethodGet,
		Path:        "/api/v1/chart.xlsx",
		Summary:     "Export the visible chart series as a workbook",
		Tags:        []string{"Chart"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Workbook with one sheet per series",
				Content: map[string]*huma.MediaType{
					xlsxContentType: {Schema: &huma.Schema{Type: "string", Format: "binary"}},
				},
			},
		},
	}, func(ctx context.Context, input *struct{}) (*binaryOutput, error) {
		data, err := svc.ChartXLSX(ctx)
		if err != nil {
			return nil, mapErr(err)
		}
		return &binaryOutput{ContentType: xlsxContentType, ContentDisposition: `attachment; filename="chart.xlsx"`, Body: data}, nil
	})
}
