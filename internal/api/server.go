// Package api exposes the tabdeck shell over HTTP: tab and grid operations
// via a huma-described REST surface, plus the live event feed and blob
// endpoints mounted directly on the router.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/tabdeck/internal/cardgrid"
	"github.com/dgnsrekt/tabdeck/internal/persist"
	"github.com/dgnsrekt/tabdeck/internal/relay"
	"github.com/dgnsrekt/tabdeck/internal/shell"
	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

// Service is the shell surface the API depends on.
type Service interface {
	State(ctx context.Context) (shell.State, error)
	OpenTab(ctx context.Context, input string) (tabs.TabRecord, error)
	OpenChildTab(ctx context.Context, input string, opener tabs.TabID) (tabs.TabRecord, error)
	CloseTab(ctx context.Context, id tabs.TabID) error
	CloseAllTabs(ctx context.Context) error
	SwitchTab(ctx context.Context, id tabs.TabID) error
	SelectCard(ctx context.Context, id tabs.TabID) error
	BackToOpener(ctx context.Context, id tabs.TabID) (tabs.TabID, error)
	Navigate(ctx context.Context, id tabs.TabID, input string) error
	HistoryBack(ctx context.Context, id tabs.TabID) error
	HistoryForward(ctx context.Context, id tabs.TabID) error
	Reload(ctx context.Context, id tabs.TabID) error
	ShowGridView(ctx context.Context) error
	HideGridView(ctx context.Context) error
	MoveCard(ctx context.Context, id tabs.TabID, dir cardgrid.Direction) error
	ToggleIncognito(ctx context.Context) (bool, error)
}

// NewServer builds the HTTP handler. blobs and broker may be nil; the
// corresponding routes are then omitted.
func NewServer(svc Service, blobs *persist.BlobStore, broker *relay.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Tabdeck API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	registerTabHandlers(api, svc)
	registerGridHandlers(api, svc)
	registerMiscHandlers(api, svc)

	if broker != nil {
		router.Get("/api/v1/events", relay.SSEHandler(broker))
		router.Get("/api/v1/events/ws", relay.WSHandler(broker))
	}
	if blobs != nil {
		router.Get("/api/v1/blobs/{key}", blobHandler(blobs))
	}

	return router
}

func blobHandler(blobs *persist.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		data, err := blobs.Read(key)
		if err != nil {
			http.Error(w, "blob not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", http.DetectContentType(data))
		w.Header().Set("Cache-Control", "max-age=60")
		if _, err := w.Write(data); err != nil {
			slog.Debug("blob response write failed", "key", key, "error", err)
		}
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *shell.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case shell.CodeTabNotFound:
			return huma.Error404NotFound(coded.Message)
		case shell.CodeDuplicateTab, shell.CodeSuppressed:
			return huma.Error409Conflict(coded.Message)
		case shell.CodeEngineUnavailable:
			return huma.Error502BadGateway(coded.Message)
		case shell.CodeClosed:
			return huma.Error503ServiceUnavailable(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
