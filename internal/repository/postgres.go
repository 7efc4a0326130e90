package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/subberhq/subber/internal/domain"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// Postgres implements Querier against a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// Compile-time check that Postgres implements Querier.
var _ Querier = (*Postgres)(nil)

// New creates a Postgres-backed repository.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func fromPG(u pgtype.UUID) uuid.UUID {
	return uuid.UUID(u.Bytes)
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// GetBox loads a box by id.
func (p *Postgres) GetBox(ctx context.Context, id uuid.UUID) (domain.Box, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, vendor_id, name, brief, freq, price_cents, plan_id
		 FROM boxes WHERE id = $1`, pgUUID(id))

	var (
		boxID, vendorID pgtype.UUID
		box             domain.Box
	)
	if err := row.Scan(&boxID, &vendorID, &box.Name, &box.Brief, &box.Freq, &box.PriceCents, &box.PlanID); err != nil {
		return domain.Box{}, mapNotFound(err)
	}
	box.ID = fromPG(boxID)
	box.VendorID = fromPG(vendorID)
	return box, nil
}

// SetBoxPlanIDIfUnset records the plan id with a conditional write so
// two concurrent resolutions cannot both win.
func (p *Postgres) SetBoxPlanIDIfUnset(ctx context.Context, arg SetBoxPlanIDParams) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE boxes SET plan_id = $2 WHERE id = $1 AND plan_id IS NULL`,
		pgUUID(arg.BoxID), arg.PlanID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetVendor loads a vendor by id.
func (p *Postgres) GetVendor(ctx context.Context, id uuid.UUID) (domain.Vendor, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, name, email FROM vendors WHERE id = $1`, pgUUID(id))

	var (
		vendorID pgtype.UUID
		vendor   domain.Vendor
	)
	if err := row.Scan(&vendorID, &vendor.Name, &vendor.Email); err != nil {
		return domain.Vendor{}, mapNotFound(err)
	}
	vendor.ID = fromPG(vendorID)
	return vendor, nil
}

// GetVendorByAPIToken loads the vendor owning an API token.
func (p *Postgres) GetVendorByAPIToken(ctx context.Context, token string) (domain.Vendor, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, name, email FROM vendors WHERE api_token = $1`, token)

	var (
		vendorID pgtype.UUID
		vendor   domain.Vendor
	)
	if err := row.Scan(&vendorID, &vendor.Name, &vendor.Email); err != nil {
		return domain.Vendor{}, mapNotFound(err)
	}
	vendor.ID = fromPG(vendorID)
	return vendor, nil
}

// GetCustomer loads a customer by id.
func (p *Postgres) GetCustomer(ctx context.Context, id uuid.UUID) (domain.Customer, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, email, stripe_id FROM customers WHERE id = $1`, pgUUID(id))
	return scanCustomer(row)
}

// GetCustomerByAPIToken loads the customer owning an API token.
func (p *Postgres) GetCustomerByAPIToken(ctx context.Context, token string) (domain.Customer, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, email, stripe_id FROM customers WHERE api_token = $1`, token)
	return scanCustomer(row)
}

func scanCustomer(row pgx.Row) (domain.Customer, error) {
	var (
		customerID pgtype.UUID
		customer   domain.Customer
	)
	if err := row.Scan(&customerID, &customer.Email, &customer.StripeID); err != nil {
		return domain.Customer{}, mapNotFound(err)
	}
	customer.ID = fromPG(customerID)
	return customer, nil
}

// SetCustomerStripeID records the remote billing-customer id.
func (p *Postgres) SetCustomerStripeID(ctx context.Context, arg SetCustomerStripeIDParams) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE customers SET stripe_id = $2 WHERE id = $1`,
		pgUUID(arg.CustomerID), arg.StripeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetShippingAddress loads a shipping address by id.
func (p *Postgres) GetShippingAddress(ctx context.Context, id uuid.UUID) (domain.ShippingAddress, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, customer_id, address, city, country FROM shipping_addresses WHERE id = $1`,
		pgUUID(id))

	var (
		addrID, customerID pgtype.UUID
		addr               domain.ShippingAddress
	)
	if err := row.Scan(&addrID, &customerID, &addr.Address, &addr.City, &addr.Country); err != nil {
		return domain.ShippingAddress{}, mapNotFound(err)
	}
	addr.ID = fromPG(addrID)
	addr.CustomerID = fromPG(customerID)
	return addr, nil
}

// CreateSubscription inserts a complete subscription row.
func (p *Postgres) CreateSubscription(ctx context.Context, arg CreateSubscriptionParams) (domain.Subscription, error) {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO subscriptions (id, box_id, shipping_id, customer_id, sub_id, date, active, frequency)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		pgUUID(arg.ID), pgUUID(arg.BoxID), pgUUID(arg.ShippingID), pgUUID(arg.CustomerID),
		arg.SubID, arg.Date.Time, arg.Active, string(arg.Frequency))
	if err != nil {
		return domain.Subscription{}, err
	}

	return domain.Subscription{
		ID:         arg.ID,
		BoxID:      arg.BoxID,
		ShippingID: arg.ShippingID,
		CustomerID: arg.CustomerID,
		SubID:      pgtype.Text{String: arg.SubID, Valid: true},
		Date:       arg.Date,
		Active:     arg.Active,
		Frequency:  arg.Frequency,
	}, nil
}

// GetSubscription loads a subscription by id.
func (p *Postgres) GetSubscription(ctx context.Context, id uuid.UUID) (domain.Subscription, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, box_id, shipping_id, customer_id, sub_id, date, active, frequency
		 FROM subscriptions WHERE id = $1`, pgUUID(id))
	return scanSubscription(row)
}

// ListSubscriptionsForCustomer returns the customer's subscriptions,
// newest first.
func (p *Postgres) ListSubscriptionsForCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Subscription, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, box_id, shipping_id, customer_id, sub_id, date, active, frequency
		 FROM subscriptions WHERE customer_id = $1 ORDER BY date DESC`, pgUUID(customerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// ListSubscriptionsForVendor returns subscriptions against any of the
// vendor's boxes, newest first.
func (p *Postgres) ListSubscriptionsForVendor(ctx context.Context, vendorID uuid.UUID) ([]domain.Subscription, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT s.id, s.box_id, s.shipping_id, s.customer_id, s.sub_id, s.date, s.active, s.frequency
		 FROM subscriptions s JOIN boxes b ON b.id = s.box_id
		 WHERE b.vendor_id = $1 ORDER BY s.date DESC`, pgUUID(vendorID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func scanSubscription(row pgx.Row) (domain.Subscription, error) {
	var (
		subID, boxID, shippingID, customerID pgtype.UUID
		date                                 time.Time
		frequency                            string
		sub                                  domain.Subscription
	)
	if err := row.Scan(&subID, &boxID, &shippingID, &customerID, &sub.SubID, &date, &sub.Active, &frequency); err != nil {
		return domain.Subscription{}, mapNotFound(err)
	}
	sub.ID = fromPG(subID)
	sub.BoxID = fromPG(boxID)
	sub.ShippingID = fromPG(shippingID)
	sub.CustomerID = fromPG(customerID)
	sub.Date = domain.NewTimestamp(date)
	sub.Frequency = domain.Frequency(frequency)
	return sub, nil
}

func collectSubscriptions(rows pgx.Rows) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// CreateOrder inserts an order row. A unique violation on
// stripe_invoice_id maps to ErrDuplicateOrder so concurrent deliveries
// of the same invoice resolve to one order.
func (p *Postgres) CreateOrder(ctx context.Context, arg CreateOrderParams) (domain.Order, error) {
	id := uuid.New()
	row := p.pool.QueryRow(ctx,
		`INSERT INTO orders (id, subscription_id, vendor_id, box_id, shipping_id, customer_id, stripe_invoice_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		pgUUID(id), pgUUID(arg.SubscriptionID), pgUUID(arg.VendorID), pgUUID(arg.BoxID),
		pgUUID(arg.ShippingID), pgUUID(arg.CustomerID), arg.StripeInvoiceID)

	var createdAt time.Time
	if err := row.Scan(&createdAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Order{}, ErrDuplicateOrder
		}
		return domain.Order{}, err
	}

	return domain.Order{
		ID:              id,
		SubscriptionID:  arg.SubscriptionID,
		VendorID:        arg.VendorID,
		BoxID:           arg.BoxID,
		ShippingID:      arg.ShippingID,
		CustomerID:      arg.CustomerID,
		StripeInvoiceID: arg.StripeInvoiceID,
		CreatedAt:       createdAt,
	}, nil
}

// GetOrderByStripeInvoiceID loads the order reconciled from an invoice.
func (p *Postgres) GetOrderByStripeInvoiceID(ctx context.Context, invoiceID string) (domain.Order, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, subscription_id, vendor_id, box_id, shipping_id, customer_id, stripe_invoice_id, created_at
		 FROM orders WHERE stripe_invoice_id = $1`, invoiceID)

	var (
		orderID, subscriptionID, vendorID, boxID, shippingID, customerID pgtype.UUID
		order                                                           domain.Order
	)
	if err := row.Scan(&orderID, &subscriptionID, &vendorID, &boxID, &shippingID, &customerID,
		&order.StripeInvoiceID, &order.CreatedAt); err != nil {
		return domain.Order{}, mapNotFound(err)
	}
	order.ID = fromPG(orderID)
	order.SubscriptionID = fromPG(subscriptionID)
	order.VendorID = fromPG(vendorID)
	order.BoxID = fromPG(boxID)
	order.ShippingID = fromPG(shippingID)
	order.CustomerID = fromPG(customerID)
	return order, nil
}
