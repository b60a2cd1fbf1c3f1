package api

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/tabgrouper/internal/settings"
)

type settingsOutput struct {
	Body struct {
		AIProvider       string   `json:"aiProvider"`
		DeepSeekAPIKey   string   `json:"deepseekApiKey" doc:"Masked"`
		OpenRouterAPIKey string   `json:"openrouterApiKey" doc:"Masked"`
		OpenRouterModel  string   `json:"openrouterModel"`
		Providers        []string `json:"providers" doc:"Provider names accepted for aiProvider"`
	}
}

func (s *server) settingsOutput(c settings.Credentials) *settingsOutput {
	out := &settingsOutput{}
	c = c.Masked()
	out.Body.AIProvider = c.AIProvider
	out.Body.DeepSeekAPIKey = c.DeepSeekAPIKey
	out.Body.OpenRouterAPIKey = c.OpenRouterAPIKey
	out.Body.OpenRouterModel = c.OpenRouterModel
	out.Body.Providers = s.svc.ProviderNames()
	return out
}

func registerSettingsHandlers(api huma.API, s *server) {
	huma.Register(api, huma.Operation{OperationID: "get-settings", Method: http.MethodGet, Path: "/api/v1/settings", Summary: "Get provider settings with API keys masked", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct{}) (*settingsOutput, error) {
			c, err := s.svc.LoadSettings(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return s.settingsOutput(c), nil
		})

	huma.Register(api, huma.Operation{OperationID: "update-settings", Method: http.MethodPut, Path: "/api/v1/settings", Summary: "Update provider settings", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct {
			Body settings.Update
		}) (*settingsOutput, error) {
			if p := input.Body.Provider; p != nil {
				name := strings.TrimSpace(*p)
				if name != "" && !slices.Contains(s.svc.ProviderNames(), name) {
					return nil, huma.Error400BadRequest("unknown provider: " + name)
				}
			}
			c, err := s.svc.UpdateSettings(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			return s.settingsOutput(c), nil
		})
}
