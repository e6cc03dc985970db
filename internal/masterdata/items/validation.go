package items

import (
	"fmt"
	"strings"

	"github.com/aurum-erp/aurum/internal/shared"
)

func (s *Service) validate(it Item) error {
	if strings.TrimSpace(it.SKU) == "" {
		return fmt.Errorf("%w: item sku is required", shared.ErrValidation)
	}
	if strings.TrimSpace(it.Name) == "" {
		return fmt.Errorf("%w: item name is required", shared.ErrValidation)
	}
	if !it.TrackBy.Valid() {
		return fmt.Errorf("%w: track_by must be quantity, weight or both", shared.ErrValidation)
	}
	return nil
}
