package ldap

import (
	"fmt"
	"strings"
)

// EscapeDNValue escapes special characters in a DN attribute value according to RFC 4514.
//
// Examples:
//   - "alice" → "alice" (no change)
//   - "Doe, John" → "Doe\, John" (comma escaped)
//   - " John " → "\ John\ " (leading/trailing spaces escaped)
//   - "#123" → "\#123" (leading # escaped)
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var result strings.Builder
	result.Grow(len(value) + 10)

	last := len(value) - 1
	for i, r := range value {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';', '=':
			result.WriteRune('\\')
			result.WriteRune(r)
		case '#':
			if i == 0 {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case ' ':
			if i == 0 || i == last {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case 0:
			result.WriteString("\\00")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

// BuildDN forms "<attr>=<escaped value>,<parent>". An empty parent yields a
// single-RDN name.
func BuildDN(attr, value, parent string) (string, error) {
	if attr == "" {
		return "", fmt.Errorf("RDN attribute cannot be empty")
	}

	if value == "" {
		return "", fmt.Errorf("RDN value for %s cannot be empty", attr)
	}

	rdn := attr + "=" + EscapeDNValue(value)
	if parent == "" {
		return rdn, nil
	}

	return rdn + "," + parent, nil
}
