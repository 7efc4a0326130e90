package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityRefs_MetadataRoundTrip(t *testing.T) {
	refs := EntityRefs{
		SubscriptionID: uuid.New(),
		VendorID:       uuid.New(),
		CustomerID:     uuid.New(),
		ShippingID:     uuid.New(),
		BoxID:          uuid.New(),
	}

	md := refs.Metadata()
	require.Len(t, md, 5)
	assert.Equal(t, refs.SubscriptionID.String(), md[MetaSubscription])
	assert.Equal(t, refs.VendorID.String(), md[MetaVendor])

	decoded, err := EntityRefsFromMetadata(md)
	require.NoError(t, err)
	assert.Equal(t, refs, decoded)
}

func TestEntityRefsFromMetadata_MissingKey(t *testing.T) {
	refs := EntityRefs{
		SubscriptionID: uuid.New(),
		VendorID:       uuid.New(),
		CustomerID:     uuid.New(),
		ShippingID:     uuid.New(),
		BoxID:          uuid.New(),
	}

	for _, key := range []string{MetaSubscription, MetaVendor, MetaCustomer, MetaShipping, MetaBox} {
		t.Run(key, func(t *testing.T) {
			md := refs.Metadata()
			delete(md, key)

			_, err := EntityRefsFromMetadata(md)
			require.Error(t, err)
			assert.Equal(t, EINTERNAL, ErrorCode(err), "absent reference is a reconciliation failure")
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestEntityRefsFromMetadata_UnparsableID(t *testing.T) {
	refs := EntityRefs{
		SubscriptionID: uuid.New(),
		VendorID:       uuid.New(),
		CustomerID:     uuid.New(),
		ShippingID:     uuid.New(),
		BoxID:          uuid.New(),
	}

	md := refs.Metadata()
	md[MetaBox] = "not-a-uuid"

	_, err := EntityRefsFromMetadata(md)
	require.Error(t, err)
	assert.Equal(t, EINTERNAL, ErrorCode(err))
}

func TestEntityRefsFromMetadata_Empty(t *testing.T) {
	_, err := EntityRefsFromMetadata(nil)
	require.Error(t, err)

	_, err = EntityRefsFromMetadata(map[string]string{})
	require.Error(t, err)
}
