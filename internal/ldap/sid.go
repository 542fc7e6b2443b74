package ldap

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/go-objectsid"
)

// minSIDLength is revision, sub-authority count and the 6-byte identifier authority.
const minSIDLength = 8

// SIDHandler converts binary objectSid values to their S-1-... string form.
type SIDHandler struct{}

// NewSIDHandler creates a new SID handler instance.
func NewSIDHandler() *SIDHandler {
	return &SIDHandler{}
}

// Decode converts a binary SID to its string representation. Values that
// already look like a SID string are returned unchanged.
func (s *SIDHandler) Decode(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("binary SID cannot be empty")
	}

	if strings.HasPrefix(string(raw), "S-") {
		return string(raw), nil
	}

	if len(raw) < minSIDLength {
		return "", fmt.Errorf("binary SID too short: %d bytes", len(raw))
	}

	if want := minSIDLength + 4*int(raw[1]); len(raw) < want {
		return "", fmt.Errorf("binary SID truncated: expected %d bytes, got %d", want, len(raw))
	}

	sid := objectsid.Decode(raw)
	return sid.String(), nil
}
