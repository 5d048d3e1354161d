package registry

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Format describes how characteristic bytes map to host values.
type Format string

const (
	FormatUint8         Format = "uint8"
	FormatUint16LE      Format = "uint16le"
	FormatSint16LECenti Format = "sint16le_centi"
	FormatUint16LECenti Format = "uint16le_centi"
	FormatUTF8          Format = "utf8"
	FormatBytes         Format = "bytes"
	// FormatHeartRate is the Heart Rate Measurement layout: a flags byte followed
	// by a uint8 or uint16le beats-per-minute value depending on flag bit 0.
	FormatHeartRate Format = "heart_rate"
)

// Decode converts raw characteristic bytes into a host value.
// Numeric formats yield int or float64, utf8 yields string, bytes yields a copy.
func (f Format) Decode(data []byte) (any, error) {
	switch f {
	case FormatUint8:
		if len(data) < 1 {
			return nil, f.shortErr(1, data)
		}
		return int(data[0]), nil
	case FormatUint16LE:
		if len(data) < 2 {
			return nil, f.shortErr(2, data)
		}
		return int(binary.LittleEndian.Uint16(data)), nil
	case FormatSint16LECenti:
		if len(data) < 2 {
			return nil, f.shortErr(2, data)
		}
		return float64(int16(binary.LittleEndian.Uint16(data))) / 100, nil
	case FormatUint16LECenti:
		if len(data) < 2 {
			return nil, f.shortErr(2, data)
		}
		return float64(binary.LittleEndian.Uint16(data)) / 100, nil
	case FormatHeartRate:
		if len(data) < 2 {
			return nil, f.shortErr(2, data)
		}
		if data[0]&0x01 == 0 {
			return int(data[1]), nil
		}
		if len(data) < 3 {
			return nil, f.shortErr(3, data)
		}
		return int(binary.LittleEndian.Uint16(data[1:])), nil
	case FormatUTF8:
		return strings.TrimRight(string(data), "\x00"), nil
	case FormatBytes, "":
		return append([]byte(nil), data...), nil
	default:
		return nil, fmt.Errorf("unknown value format %q", f)
	}
}

// Encode converts a host value into characteristic bytes. Numeric formats accept
// Go numbers and numeric strings so values arriving as text can be written.
func (f Format) Encode(v any) ([]byte, error) {
	switch f {
	case FormatUint8:
		n, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if n < 0 || n > math.MaxUint8 {
			return nil, fmt.Errorf("value %v out of range for %s", v, f)
		}
		return []byte{uint8(n)}, nil
	case FormatUint16LE, FormatUint16LECenti:
		n, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if f == FormatUint16LECenti {
			n = math.Round(n * 100)
		}
		if n < 0 || n > math.MaxUint16 {
			return nil, fmt.Errorf("value %v out of range for %s", v, f)
		}
		return binary.LittleEndian.AppendUint16(nil, uint16(n)), nil
	case FormatSint16LECenti:
		n, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		n = math.Round(n * 100)
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, fmt.Errorf("value %v out of range for %s", v, f)
		}
		return binary.LittleEndian.AppendUint16(nil, uint16(int16(n))), nil
	case FormatUTF8:
		switch s := v.(type) {
		case string:
			return []byte(s), nil
		case []byte:
			return append([]byte(nil), s...), nil
		default:
			return []byte(fmt.Sprint(v)), nil
		}
	case FormatBytes, "":
		switch b := v.(type) {
		case []byte:
			return append([]byte(nil), b...), nil
		case string:
			decoded, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(b), "0x"))
			if err != nil {
				return nil, fmt.Errorf("bytes value must be hex: %w", err)
			}
			return decoded, nil
		default:
			return nil, fmt.Errorf("unsupported value type %T for %s", v, f)
		}
	case FormatHeartRate:
		return nil, fmt.Errorf("format %s is read-only", f)
	default:
		return nil, fmt.Errorf("unknown value format %q", f)
	}
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	switch f {
	case FormatUint8, FormatUint16LE, FormatSint16LECenti, FormatUint16LECenti, FormatUTF8, FormatBytes, FormatHeartRate:
		return true
	}
	return false
}

func (f Format) shortErr(want int, data []byte) error {
	return fmt.Errorf("%s needs %d bytes, got %d", f, want, len(data))
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid numeric value %q: %w", n, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}
