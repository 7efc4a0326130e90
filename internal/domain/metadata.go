package domain

import (
	"github.com/google/uuid"
)

// Metadata keys the gateway carries on invoice line items. The set is
// closed: every key is written at subscription-creation time and every
// key is required back by the reconciler.
const (
	MetaSubscription = "subscriptions"
	MetaVendor       = "vendors"
	MetaCustomer     = "customers"
	MetaShipping     = "shippings"
	MetaBox          = "boxes"
)

// EntityRefs is the typed form of the entity-reference metadata embedded
// in gateway invoices. It round-trips through the gateway: attached as a
// string map when the subscription is created, read back by the invoice
// reconciler.
type EntityRefs struct {
	SubscriptionID uuid.UUID
	VendorID       uuid.UUID
	CustomerID     uuid.UUID
	ShippingID     uuid.UUID
	BoxID          uuid.UUID
}

// Metadata renders the refs as the string map the gateway stores.
func (r EntityRefs) Metadata() map[string]string {
	return map[string]string{
		MetaSubscription: r.SubscriptionID.String(),
		MetaVendor:       r.VendorID.String(),
		MetaCustomer:     r.CustomerID.String(),
		MetaShipping:     r.ShippingID.String(),
		MetaBox:          r.BoxID.String(),
	}
}

// EntityRefsFromMetadata extracts and validates every entity reference
// from an invoice line-item metadata map. The check is exhaustive: a
// missing or unparsable key fails the whole extraction. A well-formed
// envelope with absent references is the reconciler's problem, not a
// malformed payload, so the error code is EINTERNAL.
func EntityRefsFromMetadata(md map[string]string) (EntityRefs, error) {
	var refs EntityRefs

	for _, field := range []struct {
		key  string
		dest *uuid.UUID
	}{
		{MetaSubscription, &refs.SubscriptionID},
		{MetaVendor, &refs.VendorID},
		{MetaCustomer, &refs.CustomerID},
		{MetaShipping, &refs.ShippingID},
		{MetaBox, &refs.BoxID},
	} {
		raw, ok := md[field.key]
		if !ok {
			return EntityRefs{}, Errorf(EINTERNAL, "metadata.extract", "wrong or missing metadata: no %q key", field.key)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return EntityRefs{}, WrapError(err, EINTERNAL, "metadata.extract", "wrong or missing metadata: bad "+field.key+" id")
		}
		*field.dest = id
	}

	return refs, nil
}
