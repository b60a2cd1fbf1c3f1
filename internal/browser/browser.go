// Package browser exposes the window, tab and tab group operations the
// grouping pipeline needs. CDPBrowser drives a real browser through the
// companion extension's service worker; Memory is an in-process stand-in.
package browser

import (
	"context"
	"fmt"

	"github.com/dgnsrekt/tabgrouper/internal/tabs"
)

// Browser is the host capability surface.
type Browser interface {
	// Windows lists all windows with their type.
	Windows(ctx context.Context) ([]tabs.Window, error)
	// Tabs lists every tab in every window.
	Tabs(ctx context.Context) ([]tabs.Tab, error)
	// TabGroups lists every tab group in every window. Member fields are not
	// populated.
	TabGroups(ctx context.Context) ([]tabs.TabGroup, error)
	// TabsInGroup lists the member tabs of one group.
	TabsInGroup(ctx context.Context, groupID int) ([]tabs.Tab, error)
	// GroupTabs groups tabIDs and returns the group id. When the first listed
	// tab already belongs to a group, every listed tab is merged into that
	// group; otherwise a new group is created.
	GroupTabs(ctx context.Context, tabIDs []int) (int, error)
	// UpdateGroup sets a group's title and colour.
	UpdateGroup(ctx context.Context, groupID int, title string, color tabs.Color) error
}

const (
	CodeValidation        = "VALIDATION"
	CodeExtensionNotFound = "EXTENSION_NOT_FOUND"
	CodeTabNotFound       = "TAB_NOT_FOUND"
	CodeGroupNotFound     = "GROUP_NOT_FOUND"
	CodeEvalFailure       = "EVAL_FAILURE"
	CodeEvalTimeout       = "EVAL_TIMEOUT"
	CodeCDPUnavailable    = "CDP_UNAVAILABLE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}
