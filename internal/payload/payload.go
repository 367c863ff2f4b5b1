// Package payload turns orders into the webhook bodies understood by the
// server-side tagging container.
package payload

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
)

// Payload is a tagged union over the supported body shapes. Exactly one of
// Generic or Meta is set, matching Format.
type Payload struct {
	Format  enums.PayloadFormat
	Generic *GenericEvent
	Meta    *MetaEvent
}

// EventID returns the deduplication id carried by the body.
func (p Payload) EventID() string {
	switch {
	case p.Generic != nil:
		return p.Generic.EventID
	case p.Meta != nil:
		return p.Meta.EventID
	default:
		return ""
	}
}

// MarshalJSON encodes the active variant only.
func (p Payload) MarshalJSON() ([]byte, error) {
	switch p.Format {
	case enums.PayloadFormatGeneric:
		if p.Generic == nil {
			return nil, fmt.Errorf("generic payload missing body")
		}
		return json.Marshal(p.Generic)
	case enums.PayloadFormatMeta:
		if p.Meta == nil {
			return nil, fmt.Errorf("meta payload missing body")
		}
		return json.Marshal(p.Meta)
	default:
		return nil, fmt.Errorf("unknown payload format %q", p.Format)
	}
}

// Money is a decimal amount encoded as a bare JSON number with two places.
type Money decimal.Decimal

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).StringFixed(2)), nil
}

// Decimal exposes the underlying value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.Decimal(m)
}

// BuildError reports an order that cannot be turned into a payload.
type BuildError struct {
	OrderID int64
	Reason  string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build payload for order %d: %s", e.OrderID, e.Reason)
}
