// Package controller composes the browser, the credential store and the
// grouping pipeline into the operations the HTTP API and tabctl expose.
package controller

import (
	"context"
	"log/slog"

	"github.com/dgnsrekt/tabgrouper/internal/browser"
	"github.com/dgnsrekt/tabgrouper/internal/classify"
	"github.com/dgnsrekt/tabgrouper/internal/events"
	"github.com/dgnsrekt/tabgrouper/internal/grouping"
	"github.com/dgnsrekt/tabgrouper/internal/inventory"
	"github.com/dgnsrekt/tabgrouper/internal/settings"
	"github.com/dgnsrekt/tabgrouper/internal/tabs"
)

// Options are optional collaborators for NewService.
type Options struct {
	Logger    *slog.Logger
	Publisher events.Publisher
	// Classifier replaces the provider client built from the store.
	Classifier grouping.Classifier
}

// Service wires one browser to one credential store.
type Service struct {
	grouper   *grouping.Service
	store     *settings.Store
	providers classify.ProviderTable
}

func NewService(b browser.Browser, store *settings.Store, providers classify.ProviderTable, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = classify.NewClient(store, classify.WithProviders(providers), classify.WithLogger(logger))
	}
	return &Service{
		grouper:   grouping.NewService(b, classifier, grouping.WithLogger(logger), grouping.WithPublisher(opts.Publisher)),
		store:     store,
		providers: providers,
	}
}

// LoadProviders returns the built-in providers, with overrides from path
// when it is set.
func LoadProviders(path string) (classify.ProviderTable, error) {
	if path == "" {
		return classify.DefaultProviders(), nil
	}
	return classify.LoadProviderTable(path)
}

func (s *Service) GroupTabs(ctx context.Context) (grouping.Report, error) {
	return s.grouper.GroupTabs(ctx)
}

func (s *Service) Snapshot(ctx context.Context) (inventory.Snapshot, error) {
	return s.grouper.Inventory().Snapshot(ctx)
}

func (s *Service) ExistingGroups(ctx context.Context) ([]tabs.TabGroup, error) {
	return s.grouper.Inventory().ListExistingGroups(ctx)
}

func (s *Service) LoadSettings(ctx context.Context) (settings.Credentials, error) {
	return s.store.Load(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, u settings.Update) (settings.Credentials, error) {
	return s.store.Apply(ctx, u)
}

func (s *Service) ProviderNames() []string {
	return s.providers.Names()
}
