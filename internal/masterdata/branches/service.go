package branches

import (
	"context"
	"fmt"
	"strings"

	"github.com/aurum-erp/aurum/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Branch, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Branch, error) {
	if id <= 0 {
		return Branch{}, fmt.Errorf("%w: invalid branch id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, branch Branch) (Branch, error) {
	if strings.TrimSpace(branch.Code) == "" || strings.TrimSpace(branch.Name) == "" {
		return Branch{}, fmt.Errorf("%w: branch code and name are required", shared.ErrValidation)
	}
	return s.repo.Create(ctx, branch)
}

func (s *Service) Update(ctx context.Context, id int64, branch Branch) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid branch id", shared.ErrValidation)
	}
	if strings.TrimSpace(branch.Code) == "" || strings.TrimSpace(branch.Name) == "" {
		return fmt.Errorf("%w: branch code and name are required", shared.ErrValidation)
	}
	return s.repo.Update(ctx, id, branch)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid branch id", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
