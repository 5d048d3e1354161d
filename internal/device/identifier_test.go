package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUUID(t *testing.T) {
	got, err := ValidateUUID("0x180F", "00002A19-0000-1000-8000-00805F9B34FB", "6E400001-B5A3-F393-E0A9-E50E24DCCA9E", "0000feaa")
	require.NoError(t, err)
	assert.Equal(t, []string{"180f", "2a19", "6e400001b5a3f393e0a9e50e24dcca9e", "0000feaa"}, got)

	tests := []struct {
		name   string
		input  []string
		errMsg string
	}{
		{"none", nil, "at least one UUID is required"},
		{"empty", []string{"180f", ""}, "index 1 cannot be empty"},
		{"only separators", []string{"--"}, "index 0 cannot be empty"},
		{"not hex", []string{"battery"}, "invalid UUID format at index 0"},
		{"odd length", []string{"180"}, "invalid UUID length at index 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateUUID(tt.input...)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateAddress(t *testing.T) {
	valid := map[string]string{
		"AA:BB:CC:DD:EE:FF":                    "aabbccddeeff",
		"aa-bb-cc-dd-ee-ff":                    "aabbccddeeff",
		"AABBCCDDEEFF":                         "aabbccddeeff",
		"5B0F8E0C-1D3A-4C7E-9B21-0A6F3D2E4C11": "5b0f8e0c1d3a4c7e9b210a6f3d2e4c11",
	}
	for input, want := range valid {
		got, err := ValidateAddress(input)
		require.NoError(t, err, "%q MUST be accepted", input)
		assert.Equal(t, want, got)
	}

	for _, input := range []string{"", "AA:BB:CC", "AA:BB:CC:DD:EE:GG", "AA:BB:CC:DD:EE:FF:00", "not-an-address"} {
		_, err := ValidateAddress(input)
		assert.Error(t, err, "%q MUST be rejected", input)
	}
}

func TestNormalizeDelegatesToBledb(t *testing.T) {
	assert.Equal(t, "180f", NormalizeUUID("0000180F-0000-1000-8000-00805F9B34FB"))
	assert.Equal(t, "aabbccddeeff", NormalizeAddress("AA-BB-CC-DD-EE-FF"))
}
