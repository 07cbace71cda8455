package service

import (
	"context"
	"fmt"

	"tokolite/backend/internal/domain"
	"tokolite/backend/internal/store"
)

func (s *Service) Settings(ctx context.Context) (domain.StoreSettings, error) {
	return s.repo.GetSettings(ctx)
}

// UpdateSettings overwrites the singleton record wholesale. There is no
// patch form: clients send the full settings document.
func (s *Service) UpdateSettings(ctx context.Context, settings domain.StoreSettings) error {
	_, ok, err := requireIdentity(ctx)
	if err != nil || !ok {
		return err
	}

	if settings.StoreName == "" {
		return fmt.Errorf("%w: store name is required", store.ErrValidation)
	}
	if settings.TaxRate < 0 || settings.TaxRate > 100 {
		return fmt.Errorf("%w: tax rate must be between 0 and 100", store.ErrValidation)
	}

	if err := s.repo.PutSettings(ctx, settings); err != nil {
		return err
	}

	s.bus.Publish("Settings saved", "Store settings have been updated.", domain.SeveritySuccess)
	return nil
}

// ResetSettings restores the hardcoded defaults.
func (s *Service) ResetSettings(ctx context.Context) error {
	_, ok, err := s.guardOwner(ctx, "Resetting settings")
	if err != nil || !ok {
		return err
	}
	return s.repo.PutSettings(ctx, domain.DefaultSettings())
}
