package channel

import "strings"

// AddressSuffix is appended to the bare digits of a phone number.
const AddressSuffix = "@s.whatsapp.net"

// NormalizeNumber strips every non-digit and appends the provider suffix:
// "+57 300-123-4567" -> "573001234567@s.whatsapp.net".
func NormalizeNumber(number string) string {
	var b strings.Builder
	b.Grow(len(number) + len(AddressSuffix))
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	b.WriteString(AddressSuffix)
	return b.String()
}
