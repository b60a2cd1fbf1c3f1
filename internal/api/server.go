package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/tabgrouper/internal/browser"
	"github.com/dgnsrekt/tabgrouper/internal/events"
	"github.com/dgnsrekt/tabgrouper/internal/grouping"
	"github.com/dgnsrekt/tabgrouper/internal/inventory"
	"github.com/dgnsrekt/tabgrouper/internal/settings"
	"github.com/dgnsrekt/tabgrouper/internal/tabs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Service is everything the HTTP surface needs from the process.
type Service interface {
	GroupTabs(ctx context.Context) (grouping.Report, error)
	Snapshot(ctx context.Context) (inventory.Snapshot, error)
	ExistingGroups(ctx context.Context) ([]tabs.TabGroup, error)
	LoadSettings(ctx context.Context) (settings.Credentials, error)
	UpdateSettings(ctx context.Context, u settings.Update) (settings.Credentials, error)
	ProviderNames() []string
}

type server struct {
	svc Service
	// inflight counts grouping runs in progress. Overlapping runs are
	// allowed and only logged.
	inflight atomic.Int32
}

// NewServer builds the router. broker may be nil, in which case the events
// stream is not mounted.
func NewServer(svc Service, broker *events.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Tab Grouper API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	if broker != nil {
		router.Get("/api/v1/events", events.SSEHandler(broker))
	}

	s := &server{svc: svc}
	registerTriggerHandlers(api, s)
	registerTabHandlers(api, s)
	registerSettingsHandlers(api, s)
	registerHealthHandlers(api, broker)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *browser.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case browser.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case browser.CodeTabNotFound, browser.CodeGroupNotFound:
			return huma.Error404NotFound(coded.Message)
		case browser.CodeEvalTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case browser.CodeExtensionNotFound, browser.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
