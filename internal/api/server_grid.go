package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tabdeck/internal/cardgrid"
	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

func registerGridHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "show-grid", Method: http.MethodPost, Path: "/api/v1/grid/show", Summary: "Zoom out to the card grid", Tags: []string{"Grid"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.ShowGridView(ctx); err != nil {
				return nil, mapErr(err)
			}
			return okStatus("grid"), nil
		})

	huma.Register(api, huma.Operation{OperationID: "hide-grid", Method: http.MethodPost, Path: "/api/v1/grid/hide", Summary: "Zoom in on the selected tab", Tags: []string{"Grid"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.HideGridView(ctx); err != nil {
				return nil, mapErr(err)
			}
			return okStatus("content"), nil
		})

	huma.Register(api, huma.Operation{OperationID: "select-card", Method: http.MethodPost, Path: "/api/v1/grid/cards/{tab_id}/select", Summary: "Open a card full-screen", Tags: []string{"Grid"}},
		func(ctx context.Context, input *tabIDInput) (*statusOutput, error) {
			if err := svc.SelectCard(ctx, tabs.TabID(input.TabID)); err != nil {
				return nil, mapErr(err)
			}
			return okStatus("selected"), nil
		})

	type moveCardInput struct {
		TabID string `path:"tab_id"`
		Body  struct {
			Direction string `json:"direction" enum:"up,down,left,right" doc:"Grid direction to move the card"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "move-card", Method: http.MethodPost, Path: "/api/v1/grid/cards/{tab_id}/move", Summary: "Move a card one grid step", Tags: []string{"Grid"}},
		func(ctx context.Context, input *moveCardInput) (*statusOutput, error) {
			if err := svc.MoveCard(ctx, tabs.TabID(input.TabID), cardgrid.Direction(input.Body.Direction)); err != nil {
				return nil, mapErr(err)
			}
			return okStatus("moved"), nil
		})

	type incognitoOutput struct {
		Body struct {
			Incognito bool `json:"incognito"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "toggle-incognito", Method: http.MethodPost, Path: "/api/v1/incognito/toggle", Summary: "Swap between the default and incognito sections", Tags: []string{"Grid"}},
		func(ctx context.Context, input *struct{}) (*incognitoOutput, error) {
			on, err := svc.ToggleIncognito(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &incognitoOutput{}
			out.Body.Incognito = on
			return out, nil
		})
}
