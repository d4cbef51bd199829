package usecase

import (
	"context"

	"github.com/venadolabs/chanbind/domains/binding"
	pkgError "github.com/venadolabs/chanbind/pkg/error"
)

// TargetService serves the agent/team option catalog the draft orchestrator
// binds against. Options are kept in local storage and refreshed by the
// server through upserts.
type TargetService struct {
	repo binding.ITargetRepository
}

func NewTargetService(repo binding.ITargetRepository) *TargetService {
	return &TargetService{repo: repo}
}

func (s *TargetService) LoadTargetOptions(ctx context.Context) ([]binding.TargetOption, error) {
	return s.repo.List(ctx)
}

func (s *TargetService) UpsertTargetOption(ctx context.Context, opt binding.TargetOption) error {
	if opt.TargetID == "" {
		return pkgError.ValidationError("target id is required")
	}
	if opt.TargetType != binding.TargetAgent && opt.TargetType != binding.TargetTeam {
		return pkgError.ValidationError("target type must be AGENT or TEAM")
	}
	return s.repo.Upsert(ctx, opt)
}
