package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/tabdeck/internal/cardgrid"
	"github.com/dgnsrekt/tabdeck/internal/shell"
	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

// stubService returns canned answers so handler wiring and error mapping can
// be tested without a browser.
type stubService struct {
	err error
}

func (s *stubService) State(context.Context) (shell.State, error) {
	if s.err != nil {
		return shell.State{}, s.err
	}
	return shell.State{ShowGrid: true, Tabs: []tabs.TabRecord{{ID: "t1", URL: "https://a.example/"}}}, nil
}

func (s *stubService) OpenTab(_ context.Context, input string) (tabs.TabRecord, error) {
	if s.err != nil {
		return tabs.TabRecord{}, s.err
	}
	return tabs.TabRecord{ID: "t-new", URL: input}, nil
}

func (s *stubService) OpenChildTab(_ context.Context, input string, opener tabs.TabID) (tabs.TabRecord, error) {
	if s.err != nil {
		return tabs.TabRecord{}, s.err
	}
	return tabs.TabRecord{ID: "t-child", URL: input, OpenerID: opener}, nil
}

func (s *stubService) CloseTab(context.Context, tabs.TabID) error         { return s.err }
func (s *stubService) CloseAllTabs(context.Context) error                 { return s.err }
func (s *stubService) SwitchTab(context.Context, tabs.TabID) error        { return s.err }
func (s *stubService) SelectCard(context.Context, tabs.TabID) error       { return s.err }
func (s *stubService) Navigate(context.Context, tabs.TabID, string) error { return s.err }
func (s *stubService) HistoryBack(context.Context, tabs.TabID) error      { return s.err }
func (s *stubService) HistoryForward(context.Context, tabs.TabID) error   { return s.err }
func (s *stubService) Reload(context.Context, tabs.TabID) error           { return s.err }
func (s *stubService) ShowGridView(context.Context) error                 { return s.err }
func (s *stubService) HideGridView(context.Context) error                 { return s.err }
func (s *stubService) MoveCard(context.Context, tabs.TabID, cardgrid.Direction) error {
	return s.err
}

func (s *stubService) BackToOpener(context.Context, tabs.TabID) (tabs.TabID, error) {
	return "t-opener", s.err
}

func (s *stubService) ToggleIncognito(context.Context) (bool, error) { return true, s.err }

func TestHealthEndpoint(t *testing.T) {
	h := NewServer(&stubService{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health = %d; want %d", rec.Code, http.StatusOK)
	}
}

func TestStateEndpoint(t *testing.T) {
	h := NewServer(&stubService{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/state = %d; want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		ShowGrid bool `json:"show_grid"`
		Tabs     []struct {
			ID string `json:"id"`
		} `json:"tabs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if !body.ShowGrid || len(body.Tabs) != 1 || body.Tabs[0].ID != "t1" {
		t.Fatalf("state body = %s", rec.Body.String())
	}
}

func TestOpenTabEndpoint(t *testing.T) {
	h := NewServer(&stubService{}, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tabs", strings.NewReader(`{"input":"https://a.example/"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/v1/tabs = %d; body %s", rec.Code, rec.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{shell.CodeTabNotFound, http.StatusNotFound},
		{shell.CodeDuplicateTab, http.StatusConflict},
		{shell.CodeSuppressed, http.StatusConflict},
		{shell.CodeEngineUnavailable, http.StatusBadGateway},
		{shell.CodeClosed, http.StatusServiceUnavailable},
		{shell.CodePersistenceFailure, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			svc := &stubService{err: &shell.CodedError{Code: tc.code, Message: "boom"}}
			h := NewServer(svc, nil, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/tabs/t1/switch", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d; want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestFeedRoutesAbsentWithoutBroker(t *testing.T) {
	h := NewServer(&stubService{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET /api/v1/events without broker = %d; want 404", rec.Code)
	}
}
