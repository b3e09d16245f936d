package ldap

import (
	"strings"
)

// EscapeDNValue escapes an attribute value for use inside a DN string (RFC 4514).
//
//   - , + " \ < > ; = are always escaped
//   - a leading # or space and a trailing space are escaped
//   - NUL is written as \00
//
// Examples:
//   - "Doe, John" → "Doe\, John"
//   - " John " → "\ John\ "
//   - "#123" → "\#123"
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var b strings.Builder
	b.Grow(len(value) + 8)

	last := len(value) - 1
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c == 0:
			b.WriteString(`\00`)
			continue
		case strings.IndexByte(`,+"\<>;=`, c) >= 0:
			b.WriteByte('\\')
		case c == '#' && i == 0:
			b.WriteByte('\\')
		case c == ' ' && (i == 0 || i == last):
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

// BuildRDN composes attribute=value with the value escaped.
func BuildRDN(attribute, value string) string {
	return attribute + "=" + EscapeDNValue(value)
}
