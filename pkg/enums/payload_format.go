package enums

import "fmt"

// PayloadFormat selects the shape of the outbound webhook body.
type PayloadFormat string

const (
	// PayloadFormatGeneric is the SGTM Data Client shape (hash + plaintext side by side).
	PayloadFormatGeneric PayloadFormat = "generic"
	// PayloadFormatMeta is the Conversions-API-style shape (normalized plaintext only).
	PayloadFormatMeta PayloadFormat = "meta"
)

var validPayloadFormats = []PayloadFormat{
	PayloadFormatGeneric,
	PayloadFormatMeta,
}

// String implements fmt.Stringer.
func (f PayloadFormat) String() string {
	return string(f)
}

// IsValid reports whether the format is supported.
func (f PayloadFormat) IsValid() bool {
	for _, candidate := range validPayloadFormats {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParsePayloadFormat converts raw input into a PayloadFormat.
func ParsePayloadFormat(value string) (PayloadFormat, error) {
	for _, candidate := range validPayloadFormats {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payload format %q", value)
}
