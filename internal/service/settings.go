package service

import (
	"context"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/repository"
)

// SettingsService reads and writes the settings singleton.
type SettingsService struct {
	adapter *repository.Adapter
}

// NewSettingsService creates a SettingsService.
func NewSettingsService(adapter *repository.Adapter) *SettingsService {
	return &SettingsService{adapter: adapter}
}

// Get returns the team settings, or the defaults when none were saved yet.
func (s *SettingsService) Get(ctx context.Context, teamID string) (domain.AppSettings, error) {
	settings, err := repository.Get[domain.AppSettings](ctx, s.adapter, teamID, domain.CollectionSettings, domain.AppSettingsDocID)
	if domain.IsCode(err, "NOT_FOUND") {
		return domain.DefaultAppSettings(), nil
	}
	return settings, err
}

// Save replaces the team settings.
func (s *SettingsService) Save(ctx context.Context, teamID string, settings domain.AppSettings) error {
	return s.adapter.SaveDocument(ctx, teamID, domain.CollectionSettings, settings)
}
