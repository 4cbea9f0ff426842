package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func registerMiscHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	type deepHealthOutput struct {
		Body struct {
			Status      string `json:"status"`
			Tabs        int    `json:"tabs"`
			LiveEngines int    `json:"live_engines"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "deep-health", Method: http.MethodGet, Path: "/api/v1/health/deep", Summary: "Health check including shell state", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*deepHealthOutput, error) {
			st, err := svc.State(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &deepHealthOutput{}
			out.Body.Status = "ok"
			out.Body.Tabs = len(st.Tabs)
			out.Body.LiveEngines = len(st.LiveEngines)
			return out, nil
		})
}
