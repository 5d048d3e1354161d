package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDecode(t *testing.T) {
	tests := []struct {
		format Format
		data   []byte
		want   any
	}{
		{FormatUint8, []byte{0x64}, 100},
		{FormatUint16LE, []byte{0x34, 0x12}, 0x1234},
		{FormatSint16LECenti, []byte{0x0a, 0x09}, 23.14},
		{FormatSint16LECenti, []byte{0x0c, 0xfe}, -5.0},
		{FormatUint16LECenti, []byte{0x88, 0x13}, 50.0},
		{FormatHeartRate, []byte{0x00, 72}, 72},
		{FormatHeartRate, []byte{0x01, 0x2c, 0x01}, 300},
		{FormatUTF8, []byte("hello\x00"), "hello"},
		{FormatBytes, []byte{0xde, 0xad}, []byte{0xde, 0xad}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got, err := tt.format.Decode(tt.data)
			require.NoError(t, err)
			if f, ok := tt.want.(float64); ok {
				assert.InDelta(t, f, got, 0.001)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatDecodeShortInput(t *testing.T) {
	for _, f := range []Format{FormatUint8, FormatUint16LE, FormatSint16LECenti, FormatUint16LECenti, FormatHeartRate} {
		_, err := f.Decode(nil)
		assert.Error(t, err, "%s MUST reject empty input", f)
	}
	_, err := FormatHeartRate.Decode([]byte{0x01, 0x2c})
	assert.Error(t, err, "16-bit heart rate MUST need three bytes")

	_, err = Format("nope").Decode([]byte{1})
	assert.ErrorContains(t, err, "unknown value format")
}

func TestFormatEncode(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		value  any
		want   []byte
	}{
		{"uint8 int", FormatUint8, 2, []byte{0x02}},
		{"uint8 string", FormatUint8, "1", []byte{0x01}},
		{"uint8 bool", FormatUint8, true, []byte{0x01}},
		{"uint16le", FormatUint16LE, uint16(0x1234), []byte{0x34, 0x12}},
		{"sint16 centi", FormatSint16LECenti, -5.0, []byte{0x0c, 0xfe}},
		{"uint16 centi", FormatUint16LECenti, "50", []byte{0x88, 0x13}},
		{"utf8", FormatUTF8, "hi", []byte("hi")},
		{"utf8 number", FormatUTF8, 42, []byte("42")},
		{"bytes hex", FormatBytes, "0xDEAD", []byte{0xde, 0xad}},
		{"bytes raw", FormatBytes, []byte{1, 2}, []byte{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.format.Encode(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatEncodeErrors(t *testing.T) {
	_, err := FormatUint8.Encode(256)
	assert.ErrorContains(t, err, "out of range")

	_, err = FormatUint8.Encode("abc")
	assert.ErrorContains(t, err, "invalid numeric value")

	_, err = FormatSint16LECenti.Encode(400.0)
	assert.ErrorContains(t, err, "out of range")

	_, err = FormatBytes.Encode("zz")
	assert.ErrorContains(t, err, "must be hex")

	_, err = FormatHeartRate.Encode(60)
	assert.ErrorContains(t, err, "read-only")
}

func TestFormatRoundTripDecodesWhatEncodeWrites(t *testing.T) {
	data, err := FormatSint16LECenti.Encode(21.5)
	require.NoError(t, err)
	v, err := FormatSint16LECenti.Decode(data)
	require.NoError(t, err)
	assert.InDelta(t, 21.5, v, 0.001)
}
