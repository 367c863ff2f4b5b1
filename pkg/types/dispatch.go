package types

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
)

// DispatchError is the last failure recorded against an order's dispatch record.
type DispatchError struct {
	Kind      enums.DispatchErrorKind `json:"kind"`
	Message   string                  `json:"message"`
	Code      int                     `json:"code,omitempty"`
	Body      string                  `json:"body,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// Value serializes the error to JSON.
func (e *DispatchError) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes JSON into the error struct.
func (e *DispatchError) Scan(value interface{}) error {
	if value == nil {
		*e = DispatchError{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, e)
}

// DispatchResponse is the last successful HTTP response for an order.
type DispatchResponse struct {
	Code      int       `json:"code"`
	Body      string    `json:"body,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Value serializes the response to JSON.
func (r *DispatchResponse) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes JSON into the response struct.
func (r *DispatchResponse) Scan(value interface{}) error {
	if value == nil {
		*r = DispatchResponse{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, r)
}
