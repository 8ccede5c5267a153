package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/yieldview/internal/page"
	"github.com/dgnsrekt/yieldview/internal/scatter"
)

func registerScatterHandlers(api huma.API, svc Service) {
	type scatterIDInput struct {
		ScatterID string `path:"scatter_id" doc:"Backend scatter id"`
	}
	type chipOutput struct {
		Body scatter.Chip
	}
	type listChipsOutput struct {
		Body struct {
			Chips []scatter.Chip `json:"chips"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "list-scatters", Method: http.MethodGet, Path: "/api/v1/scatters", Summary: "List scatter chips", Tags: []string{"Scatters"}},
		func(ctx context.Context, input *struct{}) (*listChipsOutput, error) {
			chips, err := svc.ListChips(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listChipsOutput{}
			out.Body.Chips = chips
			if out.Body.Chips == nil {
				out.Body.Chips = []scatter.Chip{}
			}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-scatter", Method: http.MethodGet, Path: "/api/v1/scatters/{scatter_id}", Summary: "Get one scatter chip", Tags: []string{"Scatters"}},
		func(ctx context.Context, input *scatterIDInput) (*chipOutput, error) {
			chip, err := svc.GetChip(ctx, input.ScatterID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &chipOutput{Body: chip}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "toggle-scatter-visibility", Method: http.MethodPost, Path: "/api/v1/scatters/{scatter_id}/toggle", Summary: "Show or hide a scatter", Tags: []string{"Scatters"}},
		func(ctx context.Context, input *scatterIDInput) (*chipOutput, error) {
			chip, err := svc.ToggleVisibility(ctx, input.ScatterID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &chipOutput{Body: chip}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "toggle-zero-curve", Method: http.MethodPost, Path: "/api/v1/scatters/{scatter_id}/zero-curve/toggle", Summary: "Show or hide the zero curve of a scatter", Description: "Fetches the curve on first use; later toggles reuse the cached curve.", Tags: []string{"Scatters"}},
		func(ctx context.Context, input *scatterIDInput) (*chipOutput, error) {
			chip, err := svc.ToggleZeroCurve(ctx, input.ScatterID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &chipOutput{Body: chip}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "refresh-zero-curve", Method: http.MethodPost, Path: "/api/v1/scatters/{scatter_id}/zero-curve/refresh", Summary: "Refetch the zero curve of a scatter", Tags: []string{"Scatters"}},
		func(ctx context.Context, input *scatterIDInput) (*chipOutput, error) {
			chip, err := svc.RefreshZeroCurve(ctx, input.ScatterID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &chipOutput{Body: chip}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-scatter", Method: http.MethodDelete, Path: "/api/v1/scatters/{scatter_id}", Summary: "Delete a scatter", Tags: []string{"Scatters"}},
		func(ctx context.Context, input *scatterIDInput) (*statusOutput, error) {
			if err := svc.DeleteScatter(ctx, input.ScatterID); err != nil {
				return nil, mapErr(err)
			}
			return newStatus("deleted"), nil
		})

	type detailViewOutput struct {
		Body page.DetailView
	}
	huma.Register(api, huma.Operation{OperationID: "add-scatter", Method: http.MethodPost, Path: "/api/v1/scatters", Summary: "Add a scatter for a country and date", Description: "On success the analysis page is reloaded.", Tags: []string{"Scatters"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Country string `json:"country" required:"false" doc:"Country code" example:"US"`
				Date    string `json:"date" required:"false" doc:"Bond data date (YYYY-MM-DD)" example:"2024-03-01"`
			}
		}) (*detailViewOutput, error) {
			view, err := svc.AddScatter(ctx, input.Body.Country, input.Body.Date)
			if err != nil {
				return nil, mapErr(err)
			}
			return &detailViewOutput{Body: view}, nil
		})
}
