package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tabdeck/internal/shell"
	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

type tabIDInput struct {
	TabID string `path:"tab_id"`
}

type tabOutput struct {
	Body tabs.TabRecord
}

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func okStatus(s string) *statusOutput {
	out := &statusOutput{}
	out.Body.Status = s
	return out
}

func registerTabHandlers(api huma.API, svc Service) {
	type stateOutput struct {
		Body shell.State
	}
	huma.Register(api, huma.Operation{OperationID: "get-state", Method: http.MethodGet, Path: "/api/v1/state", Summary: "Shell state", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*stateOutput, error) {
			st, err := svc.State(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &stateOutput{}
			out.Body = st
			return out, nil
		})

	type openTabInput struct {
		Body struct {
			Input  string `json:"input" doc:"URL or search terms"`
			Opener string `json:"opener,omitempty" doc:"Opener tab id; the new tab is inserted right after it"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "open-tab", Method: http.MethodPost, Path: "/api/v1/tabs", Summary: "Open a new tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *openTabInput) (*tabOutput, error) {
			var rec tabs.TabRecord
			var err error
			if input.Body.Opener != "" {
				rec, err = svc.OpenChildTab(ctx, input.Body.Input, tabs.TabID(input.Body.Opener))
			} else {
				rec, err = svc.OpenTab(ctx, input.Body.Input)
			}
			if err != nil {
				return nil, mapErr(err)
			}
			out := &tabOutput{}
			out.Body = rec
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "close-tab", Method: http.MethodDelete, Path: "/api/v1/tabs/{tab_id}", Summary: "Close a tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*statusOutput, error) {
			if err := svc.CloseTab(ctx, tabs.TabID(input.TabID)); err != nil {
				return nil, mapErr(err)
			}
			return okStatus("closed"), nil
		})

	huma.Register(api, huma.Operation{OperationID: "close-all-tabs", Method: http.MethodDelete, Path: "/api/v1/tabs", Summary: "Close every tab in the active section", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.CloseAllTabs(ctx); err != nil {
				return nil, mapErr(err)
			}
			return okStatus("closed"), nil
		})

	huma.Register(api, huma.Operation{OperationID: "switch-tab", Method: http.MethodPost, Path: "/api/v1/tabs/{tab_id}/switch", Summary: "Foreground a tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*statusOutput, error) {
			if err := svc.SwitchTab(ctx, tabs.TabID(input.TabID)); err != nil {
				return nil, mapErr(err)
			}
			return okStatus("switched"), nil
		})

	type openerOutput struct {
		Body struct {
			Opener string `json:"opener,omitempty" doc:"Opener tab id, empty when the link was broken"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "back-to-opener", Method: http.MethodPost, Path: "/api/v1/tabs/{tab_id}/opener", Summary: "Return to the tab's opener", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*openerOutput, error) {
			opener, err := svc.BackToOpener(ctx, tabs.TabID(input.TabID))
			if err != nil {
				return nil, mapErr(err)
			}
			out := &openerOutput{}
			out.Body.Opener = string(opener)
			return out, nil
		})

	type navigateInput struct {
		TabID string `path:"tab_id"`
		Body  struct {
			Input string `json:"input" doc:"URL or search terms"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "navigate-tab", Method: http.MethodPost, Path: "/api/v1/tabs/{tab_id}/navigate", Summary: "Load new address input in a tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *navigateInput) (*statusOutput, error) {
			if err := svc.Navigate(ctx, tabs.TabID(input.TabID), input.Body.Input); err != nil {
				return nil, mapErr(err)
			}
			return okStatus("navigating"), nil
		})

	huma.Register(api, huma.Operation{OperationID: "history-back", Method: http.MethodPost, Path: "/api/v1/tabs/{tab_id}/back", Summary: "History back", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*statusOutput, error) {
			if err := svc.HistoryBack(ctx, tabs.TabID(input.TabID)); err != nil {
				return nil, mapErr(err)
			}
			return okStatus("back"), nil
		})

	huma.Register(api, huma.Operation{OperationID: "history-forward", Method: http.MethodPost, Path: "/api/v1/tabs/{tab_id}/forward", Summary: "History forward", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*statusOutput, error) {
			if err := svc.HistoryForward(ctx, tabs.TabID(input.TabID)); err != nil {
				return nil, mapErr(err)
			}
			return okStatus("forward"), nil
		})

	huma.Register(api, huma.Operation{OperationID: "reload-tab", Method: http.MethodPost, Path: "/api/v1/tabs/{tab_id}/reload", Summary: "Reload a tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*statusOutput, error) {
			if err := svc.Reload(ctx, tabs.TabID(input.TabID)); err != nil {
				return nil, mapErr(err)
			}
			return okStatus("reloading"), nil
		})
}
