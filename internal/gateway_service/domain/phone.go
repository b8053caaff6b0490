package domain

import (
	"fmt"
	"strings"
)

// WireDomain is the address suffix the messaging network expects for
// individual recipients.
const WireDomain = "s.whatsapp.net"

const countryCode = "55"

// NormalizePhone converts a raw, human-entered Brazilian phone number into its
// canonical digits-only form: 55 + two-digit area code + nine-digit mobile
// subscriber. It accepts local numbers with or without the 55 country code and
// with 10 or 11 local digits; a 10-digit number is missing the mobile ninth
// digit, which is inserted after the area code. Normalization is idempotent:
// feeding the canonical form back in returns it unchanged.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	// A local number has at most 11 digits, so anything longer that starts
	// with 55 is carrying the country code.
	if len(digits) > 11 && strings.HasPrefix(digits, countryCode) {
		digits = digits[len(countryCode):]
	}

	if len(digits) < 10 || len(digits) > 11 {
		return "", fmt.Errorf("%w: %q has %d local digits, want 10 or 11", ErrInvalidRecipient, raw, len(digits))
	}

	ddd := digits[:2]
	if ddd[0] == '0' || ddd[1] == '0' {
		return "", fmt.Errorf("%w: %q has invalid area code %s", ErrInvalidRecipient, raw, ddd)
	}

	subscriber := digits[2:]
	if len(subscriber) == 8 {
		// Pre-ninth-digit number; every mobile carries the leading 9 now.
		subscriber = "9" + subscriber
	}

	return countryCode + ddd + subscriber, nil
}

// WireAddress turns a canonical phone number into the messaging network
// address, e.g. "5511991234567@s.whatsapp.net".
func WireAddress(canonical string) string {
	return canonical + "@" + WireDomain
}
