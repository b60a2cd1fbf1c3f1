// Package grouping runs the tab grouping pipeline: inventory, one
// classification call, then merge and create mutations.
package grouping

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgnsrekt/tabgrouper/internal/browser"
	"github.com/dgnsrekt/tabgrouper/internal/classify"
	"github.com/dgnsrekt/tabgrouper/internal/events"
	"github.com/dgnsrekt/tabgrouper/internal/inventory"
	"github.com/dgnsrekt/tabgrouper/internal/tabs"
	"github.com/google/uuid"
)

// Classifier turns ungrouped tab titles into a grouping decision.
// *classify.Client implements it.
type Classifier interface {
	Classify(ctx context.Context, tabTitles []string, existing []classify.ExistingGroup) (*classify.Result, error)
}

// Service is the grouping entry point shared by every trigger.
type Service struct {
	inventory  *inventory.Inventory
	classifier Classifier
	mutator    *Mutator
	events     events.Publisher
	logger     *slog.Logger
	newRunID   func() string
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPublisher sends run and group events to p.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithColorPicker replaces the random palette pick.
func WithColorPicker(pick func() tabs.Color) Option {
	return func(s *Service) {
		if pick != nil {
			s.mutator.pickColor = pick
		}
	}
}

// NewService wires the pipeline over b.
func NewService(b browser.Browser, classifier Classifier, opts ...Option) *Service {
	s := &Service{
		classifier: classifier,
		events:     events.Discard,
		logger:     slog.Default(),
		newRunID:   uuid.NewString,
	}
	s.mutator = NewMutator(b, nil, nil)
	for _, opt := range opts {
		opt(s)
	}
	s.inventory = inventory.New(b, s.logger)
	s.mutator.inventory = s.inventory
	s.mutator.logger = s.logger
	s.mutator.events = s.events
	return s
}

// Inventory exposes the service's inventory for diagnostics.
func (s *Service) Inventory() *inventory.Inventory { return s.inventory }

// GroupTabs runs one grouping pass. With no ungrouped tabs it returns a
// skipped report without calling the classifier. Inventory and
// classification errors abort before any mutation; per-group mutation
// failures are only recorded in the report.
func (s *Service) GroupTabs(ctx context.Context) (Report, error) {
	runID := s.newRunID()
	start := time.Now()
	log := s.logger.With("run_id", runID)
	report := Report{RunID: runID}

	assignable, err := s.inventory.ListAssignableTabs(ctx)
	if err != nil {
		return report, s.fail(runID, fmt.Errorf("inventory tabs: %w", err))
	}
	ungrouped := inventory.ListUngrouped(assignable)
	report.Ungrouped = len(ungrouped)
	if len(ungrouped) == 0 {
		report.Skipped = true
		log.Info("grouping skipped, no ungrouped tabs", "tabs", len(assignable))
		s.events.Publish(events.Event{Type: events.RunSkipped, RunID: runID})
		return report, nil
	}
	s.events.Publish(events.Event{Type: events.RunStarted, RunID: runID, Data: map[string]any{"ungrouped": len(ungrouped)}})

	existing, err := s.inventory.ListExistingGroups(ctx)
	if err != nil {
		return report, s.fail(runID, fmt.Errorf("inventory groups: %w", err))
	}
	log.Info("grouping start", "ungrouped", len(ungrouped), "existing_groups", len(existing))

	prompted := make([]classify.ExistingGroup, 0, len(existing))
	for _, g := range existing {
		prompted = append(prompted, classify.ExistingGroup{Title: g.Title, MemberTitles: g.TabTitles})
	}
	result, err := s.classifier.Classify(ctx, tabs.Titles(ungrouped), prompted)
	if err != nil {
		return report, s.fail(runID, fmt.Errorf("classify: %w", err))
	}
	s.events.Publish(events.Event{Type: events.RunClassified, RunID: runID, Data: map[string]any{
		"new_groups":      len(result.NewGroups),
		"existing_groups": len(result.ExistingGroups),
	}})

	report = s.mutator.Apply(ctx, runID, ungrouped, existing, result)
	log.Info("grouping done",
		"merged", len(report.Merged),
		"created", len(report.Created),
		"skipped", len(report.SkippedGroups),
		"failed", len(report.Failed),
		"duration_ms", time.Since(start).Milliseconds())
	s.events.Publish(events.Event{Type: events.RunCompleted, RunID: runID, Data: map[string]any{
		"merged":  len(report.Merged),
		"created": len(report.Created),
		"skipped": len(report.SkippedGroups),
		"failed":  len(report.Failed),
	}})
	return report, nil
}

func (s *Service) fail(runID string, err error) error {
	s.logger.Error("grouping failed", "run_id", runID, "error", err)
	s.events.Publish(events.Event{Type: events.RunFailed, RunID: runID, Data: map[string]any{"error": err.Error()}})
	return err
}
