package types

import (
	"database/sql/driver"
	"encoding/json"
)

// Attribution carries browser and ad-click identifiers captured at checkout.
type Attribution struct {
	ClientIP    string `json:"client_ip,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	FBP         string `json:"fbp,omitempty"`
	FBC         string `json:"fbc,omitempty"`
	FBCLID      string `json:"fbclid,omitempty"`
	GCLID       string `json:"gclid,omitempty"`
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMTerm     string `json:"utm_term,omitempty"`
	UTMContent  string `json:"utm_content,omitempty"`
	// CapturedAt is when the click identifiers were observed, in unix milliseconds.
	CapturedAt int64 `json:"captured_at,omitempty"`
}

// Value serializes the attribution to JSON.
func (a *Attribution) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes JSON into the attribution struct.
func (a *Attribution) Scan(value interface{}) error {
	if value == nil {
		*a = Attribution{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, a)
}
