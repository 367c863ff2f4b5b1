package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList stores an ordered list of strings inside a JSON column.
type StringList []string

// Value serializes the list to JSON.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes a JSON array into the list.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded []string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*l = decoded
	return nil
}

// StringMap stores a flat string map (product attributes) inside a JSON column.
type StringMap map[string]string

// Value serializes the map to JSON.
func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes a JSON object into the map.
func (m *StringMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded map[string]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*m = decoded
	return nil
}

// Taxonomies maps a taxonomy name to the ordered term names assigned to a product.
type Taxonomies map[string][]string

// Value serializes the taxonomies to JSON.
func (t Taxonomies) Value() (driver.Value, error) {
	if t == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string][]string(t))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes a JSON object into the taxonomies.
func (t *Taxonomies) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded map[string][]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*t = decoded
	return nil
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
