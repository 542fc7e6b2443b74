package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testGUID      = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"
	testGUIDBytes = []byte{
		0xe0, 0x04, 0x25, 0x3f,
		0x89, 0x4f,
		0xd3, 0x11,
		0x9a, 0x0c, 0x03, 0x05, 0xe8, 0x2c, 0x33, 0x01,
	}
)

func TestGUIDHandler_IsValidGUID(t *testing.T) {
	handler := NewGUIDHandler()

	tests := []struct {
		name     string
		guid     string
		expected bool
	}{
		{"valid hyphenated GUID", "12345678-1234-1234-1234-123456789012", true},
		{"valid hyphenated GUID uppercase", "ABCDEF12-1234-1234-1234-123456789012", true},
		{"valid compact GUID", "12345678123412341234123456789012", true},
		{"empty string", "", false},
		{"too short", "12345678-1234-1234-1234-12345678901", false},
		{"non-hex characters", "12345678-1234-1234-1234-12345678901g", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, handler.IsValidGUID(tt.guid))
		})
	}
}

func TestGUIDHandler_Decode(t *testing.T) {
	handler := NewGUIDHandler()

	got, err := handler.Decode(testGUIDBytes)
	require.NoError(t, err)
	assert.Equal(t, testGUID, got)

	_, err = handler.Decode([]byte{0x01, 0x02})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid GUID byte length")
}

func TestGUIDHandler_Encode(t *testing.T) {
	handler := NewGUIDHandler()

	got, err := handler.Encode(testGUID)
	require.NoError(t, err)
	assert.Equal(t, testGUIDBytes, got)

	upper, err := handler.Encode("3F2504E0-4F89-11D3-9A0C-0305E82C3301")
	require.NoError(t, err)
	assert.Equal(t, testGUIDBytes, upper)

	_, err = handler.Encode("not-a-guid")
	assert.Error(t, err)
}

func TestGUIDHandler_RoundTrip(t *testing.T) {
	handler := NewGUIDHandler()

	raw, err := handler.Encode(testGUID)
	require.NoError(t, err)

	back, err := handler.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, testGUID, back)
}

func TestGUIDHandler_FilterValue(t *testing.T) {
	handler := NewGUIDHandler()

	got, err := handler.FilterValue(testGUID)
	require.NoError(t, err)
	assert.Equal(t, `\e0\04\25\3f\89\4f\d3\11\9a\0c\03\05\e8\2c\33\01`, got)

	_, err = handler.FilterValue("")
	assert.Error(t, err)
}
