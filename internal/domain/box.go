package domain

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Box is a product offering a vendor sells on a recurring schedule.
//
// PlanID holds the billing gateway's recurring plan id once the box has
// been provisioned. A box starts unprovisioned (PlanID.Valid == false);
// the plan resolver provisions it lazily on first subscription. Call
// sites must check PlanProvisioned before creating a remote subscription.
type Box struct {
	ID         uuid.UUID   `json:"id"`
	VendorID   uuid.UUID   `json:"vendor_id"`
	Name       string      `json:"name"`
	Brief      string      `json:"brief"`
	Freq       string      `json:"freq"`
	PriceCents int32       `json:"price_cents"`
	PlanID     pgtype.Text `json:"plan_id"`
}

// PlanProvisioned reports whether the box has a remote billing plan.
func (b *Box) PlanProvisioned() bool {
	return b.PlanID.Valid && b.PlanID.String != ""
}

// Box-related domain errors.
var (
	ErrBoxNotFound = &Error{Code: EINVALID, Message: "Invalid box id on subscription"}
	ErrPlanMissing = &Error{Code: EINTERNAL, Message: "Box did not have plan id after creating one"}
)
