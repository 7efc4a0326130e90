package service

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/subberhq/subber/internal/billing"
	"github.com/subberhq/subber/internal/domain"
	"github.com/subberhq/subber/internal/repository"
	"github.com/subberhq/subber/internal/telemetry"
)

// PlanResolver ensures a box has a remote recurring-billing plan,
// provisioning one lazily on first use.
type PlanResolver struct {
	repo    repository.Querier
	gateway billing.Gateway
	logger  *slog.Logger
}

// NewPlanResolver creates a plan resolver.
func NewPlanResolver(repo repository.Querier, gateway billing.Gateway, logger *slog.Logger) *PlanResolver {
	return &PlanResolver{
		repo:    repo,
		gateway: gateway,
		logger:  logger,
	}
}

// ResolvePlan returns the box's remote plan id, creating and persisting
// one if the box is unprovisioned. The box is updated in place on
// success.
//
// The local write is conditional on the plan still being unset, so two
// concurrent resolutions cannot both land: the loser re-reads the box
// and adopts the winner's plan id. The loser's remote plan is left
// unreferenced at the gateway and logged for cleanup.
func (r *PlanResolver) ResolvePlan(ctx context.Context, box *domain.Box) (string, error) {
	if box.PlanProvisioned() {
		return box.PlanID.String, nil
	}

	plan, err := r.gateway.CreatePlan(ctx, billing.CreatePlanParams{
		AmountCents: box.PriceCents,
		Currency:    "usd",
		Name:        box.Name,
		Interval:    billing.IntervalMonth,
	})
	if err != nil {
		return "", domain.WrapError(err, domain.EINTERNAL, "plan.resolve", "billing gateway rejected plan creation")
	}

	updated, err := r.repo.SetBoxPlanIDIfUnset(ctx, repository.SetBoxPlanIDParams{
		BoxID:  box.ID,
		PlanID: plan.ID,
	})
	if err != nil {
		// The remote plan exists but is untracked locally. Log the id
		// so operators can reconcile by hand; no compensating delete.
		r.logger.Error("failed to persist plan id",
			slog.String("box_id", box.ID.String()),
			slog.String("plan_id", plan.ID),
			slog.String("error", err.Error()),
		)
		return "", domain.WrapError(err, domain.EINTERNAL, "plan.resolve", "failed to persist plan id on box")
	}

	if !updated {
		// Lost a concurrent resolution. Adopt the winner's plan.
		fresh, err := r.repo.GetBox(ctx, box.ID)
		if err != nil {
			return "", domain.WrapError(err, domain.EINTERNAL, "plan.resolve", "failed to reload box after losing plan race")
		}
		if !fresh.PlanProvisioned() {
			return "", domain.ErrPlanMissing
		}
		r.logger.Warn("duplicate remote plan created by concurrent resolution",
			slog.String("box_id", box.ID.String()),
			slog.String("orphaned_plan_id", plan.ID),
			slog.String("winning_plan_id", fresh.PlanID.String),
		)
		box.PlanID = fresh.PlanID
		return fresh.PlanID.String, nil
	}

	if telemetry.Business != nil {
		telemetry.Business.PlansCreated.Inc()
	}
	r.logger.Info("provisioned billing plan for box",
		slog.String("box_id", box.ID.String()),
		slog.String("plan_id", plan.ID),
	)

	box.PlanID = pgtype.Text{String: plan.ID, Valid: true}
	return plan.ID, nil
}
