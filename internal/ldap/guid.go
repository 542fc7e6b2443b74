package ldap

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GUIDBytesLength is the size of a binary objectGUID value.
const GUIDBytesLength = 16

// GUIDHandler converts objectGUID values between the directory's mixed-endian
// byte layout and the canonical hyphenated string form.
//
// Layout: Data1 (4 bytes), Data2 and Data3 (2 bytes each) are little-endian;
// Data4 (8 bytes) is kept in network order.
type GUIDHandler struct{}

// NewGUIDHandler creates a new GUID handler instance.
func NewGUIDHandler() *GUIDHandler {
	return &GUIDHandler{}
}

// Decode converts raw objectGUID bytes to a lowercase hyphenated string.
func (g *GUIDHandler) Decode(raw []byte) (string, error) {
	if len(raw) != GUIDBytesLength {
		return "", fmt.Errorf("invalid GUID byte length: expected %d, got %d", GUIDBytesLength, len(raw))
	}

	var id uuid.UUID
	copy(id[:], swapGUIDEndianness(raw))

	return id.String(), nil
}

// Encode converts a GUID string, hyphenated or compact, to its wire bytes.
func (g *GUIDHandler) Encode(guid string) ([]byte, error) {
	id, err := uuid.Parse(strings.TrimSpace(guid))
	if err != nil {
		return nil, fmt.Errorf("invalid GUID format %q: %w", guid, err)
	}

	return swapGUIDEndianness(id[:]), nil
}

// FilterValue renders a GUID as an escaped byte sequence suitable for an
// equality assertion, e.g. "\4e\e4\...".
func (g *GUIDHandler) FilterValue(guid string) (string, error) {
	raw, err := g.Encode(guid)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(raw) * 3)
	for _, c := range raw {
		fmt.Fprintf(&b, "\\%02x", c)
	}

	return b.String(), nil
}

// IsValidGUID reports whether s parses as a GUID.
func (g *GUIDHandler) IsValidGUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// swapGUIDEndianness is its own inverse.
func swapGUIDEndianness(in []byte) []byte {
	out := make([]byte, GUIDBytesLength)

	out[0], out[1], out[2], out[3] = in[3], in[2], in[1], in[0]
	out[4], out[5] = in[5], in[4]
	out[6], out[7] = in[7], in[6]
	copy(out[8:], in[8:])

	return out
}
