package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Frequency is how often a subscription ships and bills.
type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency validates a frequency string from a request payload.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FrequencyOnce:
		return FrequencyOnce, nil
	case FrequencyMonthly:
		return FrequencyMonthly, nil
	default:
		return "", Errorf(EINVALID, "subscription.parse", "invalid value for frequency: %q (must be once or monthly)", s)
	}
}

// OneTime reports whether the frequency bills a single period only.
func (f Frequency) OneTime() bool {
	return f == FrequencyOnce
}

// Timestamp is a time.Time that serializes as RFC 3339 at second
// resolution, the format the wire protocol and the database share.
type Timestamp struct {
	time.Time
}

// Now returns the current time truncated to second resolution.
func Now() Timestamp {
	return Timestamp{time.Now().UTC().Truncate(time.Second)}
}

// NewTimestamp truncates t to second resolution.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Second)}
}

// ParseTimestamp parses an RFC 3339 string from a request payload.
func ParseTimestamp(s string) (Timestamp, error) {
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Timestamp{}, WrapError(err, EINVALID, "timestamp.parse", "invalid timestamp")
	}
	return NewTimestamp(parsed), nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", t.UTC().Truncate(time.Second).Format(time.RFC3339))), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return Errorf(EINVALID, "timestamp.parse", "invalid timestamp: %s", string(data))
	}
	parsed, err := time.Parse(time.RFC3339, string(data[1:len(data)-1]))
	if err != nil {
		return WrapError(err, EINVALID, "timestamp.parse", "invalid timestamp")
	}
	t.Time = parsed.UTC().Truncate(time.Second)
	return nil
}

// Equal compares two timestamps at second resolution.
func (t Timestamp) Equal(other Timestamp) bool {
	return t.UTC().Truncate(time.Second).Equal(other.UTC().Truncate(time.Second))
}

// Subscription links a customer, a box, and a shipping address to a
// recurring billing subscription at the gateway.
//
// SubID is the gateway's subscription id (sub_...). It is attached after
// the remote create succeeds; a subscription row is never written without
// it, and it is never cleared afterwards.
type Subscription struct {
	ID         uuid.UUID   `json:"id"`
	BoxID      uuid.UUID   `json:"box_id"`
	ShippingID uuid.UUID   `json:"shipping_id"`
	CustomerID uuid.UUID   `json:"customer_id"`
	SubID      pgtype.Text `json:"sub_id"`
	Date       Timestamp   `json:"date"`
	Active     bool        `json:"active"`
	Frequency  Frequency   `json:"frequency"`
}
