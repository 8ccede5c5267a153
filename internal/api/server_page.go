package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/yieldview/internal/modal"
	"github.com/dgnsrekt/yieldview/internal/page"
	"github.com/dgnsrekt/yieldview/internal/ui"
)

func registerPageHandlers(api huma.API, svc Service) {
	type detailViewOutput struct {
		Body page.DetailView
	}
	huma.Register(api, huma.Operation{OperationID: "get-page", Method: http.MethodGet, Path: "/api/v1/page", Summary: "Get the analysis page view", Tags: []string{"Page"}},
		func(ctx context.Context, input *struct{}) (*detailViewOutput, error) {
			view, err := svc.DetailView(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &detailViewOutput{Body: view}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "reload-page", Method: http.MethodPost, Path: "/api/v1/page/reload", Summary: "Reload the analysis page", Description: "Drops every dataset and zero curve, then loads the page again.", Tags: []string{"Page"}},
		func(ctx context.Context, input *struct{}) (*detailViewOutput, error) {
			view, err := svc.ReloadPage(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &detailViewOutput{Body: view}, nil
		})

	type listViewOutput struct {
		Body page.ListView
	}
	huma.Register(api, huma.Operation{OperationID: "get-analyses-page", Method: http.MethodGet, Path: "/api/v1/analyses", Summary: "Get the analysis list view", Tags: []string{"Page"}},
		func(ctx context.Context, input *struct{}) (*listViewOutput, error) {
			return &listViewOutput{Body: svc.ListView(ctx)}, nil
		})

	type createAnalysisOutput struct {
		Body struct {
			RedirectURL string `json:"redirect_url"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "create-analysis", Method: http.MethodPost, Path: "/api/v1/analyses", Summary: "Create an analysis", Tags: []string{"Page"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Name string `json:"name" required:"false" doc:"Analysis name" example:"Euro sovereigns"`
			}
		}) (*createAnalysisOutput, error) {
			redirect, err := svc.CreateAnalysis(ctx, input.Body.Name)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &createAnalysisOutput{}
			out.Body.RedirectURL = redirect
			return out, nil
		})

	type modalInput struct {
		Modal string `path:"modal" enum:"addScatterModal,addAnalysisModal"`
	}
	type modalOutput struct {
		Body modal.State
	}
	huma.Register(api, huma.Operation{OperationID: "show-modal", Method: http.MethodPost, Path: "/api/v1/modals/{modal}/show", Summary: "Open a dialog", Tags: []string{"Page"}},
		func(ctx context.Context, input *modalInput) (*modalOutput, error) {
			st, err := svc.SetModal(ctx, input.Modal, true)
			if err != nil {
				return nil, mapErr(err)
			}
			return &modalOutput{Body: st}, nil
		})
	huma.Register(api, huma.Operation{OperationID: "hide-modal", Method: http.MethodPost, Path: "/api/v1/modals/{modal}/hide", Summary: "Close a dialog", Tags: []string{"Page"}},
		func(ctx context.Context, input *modalInput) (*modalOutput, error) {
			st, err := svc.SetModal(ctx, input.Modal, false)
			if err != nil {
				return nil, mapErr(err)
			}
			return &modalOutput{Body: st}, nil
		})

	type alertsOutput struct {
		Body struct {
			Alerts []ui.Alert `json:"alerts"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-alerts", Method: http.MethodGet, Path: "/api/v1/alerts", Summary: "List recent alerts", Tags: []string{"Page"}},
		func(ctx context.Context, input *struct{}) (*alertsOutput, error) {
			out := &alertsOutput{}
			out.Body.Alerts = svc.RecentAlerts(ctx)
			if out.Body.Alerts == nil {
				out.Body.Alerts = []ui.Alert{}
			}
			return out, nil
		})
}
