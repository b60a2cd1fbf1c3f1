package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/tabgrouper/internal/events"
	"github.com/dgnsrekt/tabgrouper/internal/inventory"
	"github.com/dgnsrekt/tabgrouper/internal/tabs"
)

func registerTabHandlers(api huma.API, s *server) {
	type tabsOutput struct {
		Body struct {
			Tabs      []tabs.Tab      `json:"tabs"`
			Ungrouped int             `json:"ungrouped"`
			Excluded  int             `json:"excluded" doc:"Tabs in popup, app, panel or devtools windows"`
			Groups    []tabs.TabGroup `json:"groups"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/tabs", Summary: "List assignable tabs and existing groups", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*tabsOutput, error) {
			snap, err := s.svc.Snapshot(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			groups, err := s.svc.ExistingGroups(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &tabsOutput{}
			out.Body.Tabs = snap.Tabs
			out.Body.Ungrouped = len(inventory.ListUngrouped(snap.Tabs))
			out.Body.Excluded = snap.Excluded
			out.Body.Groups = groups
			return out, nil
		})
}

func registerHealthHandlers(api huma.API, broker *events.Broker) {
	type healthOutput struct {
		Body struct {
			Status           string `json:"status"`
			EventSubscribers int    `json:"event_subscribers" doc:"Connected /api/v1/events clients"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			if broker != nil {
				out.Body.EventSubscribers = broker.ClientCount()
			}
			return out, nil
		})
}
