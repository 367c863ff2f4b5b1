// Package pii normalizes and hashes customer identity fields before they
// leave the service.
package pii

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind names an identity field.
type Kind string

const (
	KindEmail      Kind = "email"
	KindPhone      Kind = "phone"
	KindFirstName  Kind = "first_name"
	KindLastName   Kind = "last_name"
	KindCity       Kind = "city"
	KindState      Kind = "state"
	KindZip        Kind = "zip"
	KindCountry    Kind = "country"
	KindExternalID Kind = "external_id"
)

const (
	minPhoneDigits   = 10
	genericZipDigits = 8
	metaZipDigits    = 5
	defaultDialCode  = "55"
)

// Value is a normalized plaintext together with its SHA-256 hash.
type Value struct {
	Plain string
	Hash  string
}

// Normalize lower-cases and trims raw. Phone numbers and postal codes are
// reduced to digits. The boolean is false when nothing is left.
func Normalize(kind Kind, raw string) (string, bool) {
	var out string
	switch kind {
	case KindPhone, KindZip:
		out = Digits(raw)
	default:
		out = strings.ToLower(strings.TrimSpace(raw))
	}
	return out, out != ""
}

// Hash returns the hex SHA-256 of an already normalized value.
func Hash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Field normalizes raw and pairs it with its hash under the generic format
// rules: phones need at least 10 digits and postal codes exactly 8. A false
// return means the field must be omitted.
func Field(kind Kind, raw string) (Value, bool) {
	normalized, ok := Normalize(kind, raw)
	if !ok {
		return Value{}, false
	}
	switch kind {
	case KindPhone:
		if len(normalized) < minPhoneDigits {
			return Value{}, false
		}
	case KindZip:
		if len(normalized) != genericZipDigits {
			return Value{}, false
		}
	}
	return Value{Plain: normalized, Hash: Hash(normalized)}, true
}

// Digits strips everything except ASCII digits.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MetaPhone returns the digits of raw with the 55 dial code prefixed when the
// number looks national (10 or 11 digits) or otherwise lacks it.
func MetaPhone(raw string) (string, bool) {
	digits := Digits(raw)
	if digits == "" {
		return "", false
	}
	if len(digits) < minPhoneDigits {
		return digits, true
	}
	if strings.HasPrefix(digits, defaultDialCode) && len(digits) > 11 {
		return digits, true
	}
	return defaultDialCode + digits, true
}

// MetaZip returns the first five digits of the postal code.
func MetaZip(raw string) (string, bool) {
	digits := Digits(raw)
	if digits == "" {
		return "", false
	}
	if len(digits) > metaZipDigits {
		digits = digits[:metaZipDigits]
	}
	return digits, true
}

// MetaCity strips diacritics and whitespace and lower-cases the city name,
// so "São Paulo" becomes "saopaulo".
func MetaCity(raw string) (string, bool) {
	folded := foldDiacritics(raw)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	out := b.String()
	return out, out != ""
}

// MetaText lower-cases and trims free text fields (names, state, country).
func MetaText(raw string) (string, bool) {
	out := strings.ToLower(strings.TrimSpace(raw))
	return out, out != ""
}

func foldDiacritics(raw string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return out
}
