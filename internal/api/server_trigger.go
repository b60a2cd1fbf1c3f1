package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/tabgrouper/internal/grouping"
)

const actionGroupTabs = "groupTabs"

// Context menu entries that start a grouping run: the page context menu and
// the toolbar action menu.
var groupMenuItems = map[string]bool{
	"ai-group-tabs":        true,
	"ai-group-tabs-action": true,
}

type triggerOutput struct {
	Body struct {
		Success bool             `json:"success"`
		Error   string           `json:"error,omitempty"`
		Ignored bool             `json:"ignored,omitempty" doc:"True when the menu item does not start a grouping run"`
		Report  *grouping.Report `json:"report,omitempty"`
	}
}

// run executes one grouping pass and folds any error into the
// acknowledgement. The pass outlives the request: a caller that goes away
// (popup closed) must not leave the browser half grouped.
func (s *server) run(ctx context.Context, source string) *triggerOutput {
	if n := s.inflight.Add(1); n > 1 {
		slog.Warn("grouping run started while another is in flight", "source", source, "inflight", n)
	}
	defer s.inflight.Add(-1)

	out := &triggerOutput{}
	report, err := s.svc.GroupTabs(context.WithoutCancel(ctx))
	if err != nil {
		slog.Error("grouping trigger failed", "source", source, "run_id", report.RunID, "error", err)
		out.Body.Error = err.Error()
		return out
	}
	if errs := report.Errors(); len(errs) > 0 {
		slog.Warn("grouping run finished with failed groups", "source", source, "run_id", report.RunID, "failed", len(errs), "error", errors.Join(errs...))
	}
	out.Body.Success = true
	out.Body.Report = &report
	return out
}

func registerTriggerHandlers(api huma.API, s *server) {
	huma.Register(api, huma.Operation{OperationID: "send-message", Method: http.MethodPost, Path: "/api/v1/message", Summary: "Handle a runtime message from the popup", Tags: []string{"Trigger"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Action string `json:"action" required:"true" doc:"Message action; only groupTabs is supported"`
			}
		}) (*triggerOutput, error) {
			if input.Body.Action != actionGroupTabs {
				return nil, huma.Error400BadRequest("unknown action: " + input.Body.Action)
			}
			return s.run(ctx, "message"), nil
		})

	huma.Register(api, huma.Operation{OperationID: "click-context-menu", Method: http.MethodPost, Path: "/api/v1/context-menu/{menu_item_id}", Summary: "Handle a context menu click", Tags: []string{"Trigger"}},
		func(ctx context.Context, input *struct {
			MenuItemID string `path:"menu_item_id" doc:"Clicked menu item id (ai-group-tabs or ai-group-tabs-action)"`
		}) (*triggerOutput, error) {
			if !groupMenuItems[input.MenuItemID] {
				out := &triggerOutput{}
				out.Body.Success = true
				out.Body.Ignored = true
				return out, nil
			}
			return s.run(ctx, "context-menu:"+input.MenuItemID), nil
		})
}
