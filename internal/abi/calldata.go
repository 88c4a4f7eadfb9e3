package abi

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/roach88/diamond/internal/ir"
)

// ErrShortCallData is returned when call data is non-empty but shorter than
// a selector.
var ErrShortCallData = errors.New("call data shorter than a selector")

// emptyArray is the CBOR encoding of [].
var emptyArray = []byte{0x80}

// EncodeCall builds call data: selector followed by the CBOR array of args.
func EncodeCall(sel ir.Selector, args ...any) ([]byte, error) {
	payload, err := EncodeValues(args...)
	if err != nil {
		return nil, fmt.Errorf("encode call %s: %w", sel, err)
	}
	out := make([]byte, 0, ir.SelectorLength+len(payload))
	out = append(out, sel[:]...)
	return append(out, payload...), nil
}

// MustEncodeCall is like EncodeCall but panics on error.
// Use only with argument types known to encode.
func MustEncodeCall(sel ir.Selector, args ...any) []byte {
	data, err := EncodeCall(sel, args...)
	if err != nil {
		panic(err)
	}
	return data
}

// EncodeSignatureCall parses signature and encodes a call to it.
func EncodeSignatureCall(signature string, args ...any) ([]byte, error) {
	sel, err := SelectorOf(signature)
	if err != nil {
		return nil, err
	}
	return EncodeCall(sel, args...)
}

// SplitCall separates call data into selector and argument payload.
// A bare 4-byte selector yields an empty payload.
func SplitCall(data []byte) (ir.Selector, []byte, error) {
	var sel ir.Selector
	if len(data) < ir.SelectorLength {
		copy(sel[:], data)
		return sel, nil, ErrShortCallData
	}
	copy(sel[:], data[:ir.SelectorLength])
	return sel, data[ir.SelectorLength:], nil
}

// EncodeValues encodes values as a CBOR array. Used for argument payloads
// and return data alike.
func EncodeValues(vals ...any) ([]byte, error) {
	if len(vals) == 0 {
		return append([]byte(nil), emptyArray...), nil
	}
	return Marshal(vals)
}

// MustEncodeValues is like EncodeValues but panics on error.
func MustEncodeValues(vals ...any) []byte {
	data, err := EncodeValues(vals...)
	if err != nil {
		panic(err)
	}
	return data
}

// DecodeValues decodes a CBOR array payload into out, one pointer per
// element. The element count must match exactly. An empty payload is
// treated as the empty array.
func DecodeValues(data []byte, out ...any) error {
	if len(data) == 0 {
		data = emptyArray
	}
	var raw []RawMessage
	if err := Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode values: %w", err)
	}
	if len(raw) != len(out) {
		return fmt.Errorf("decode values: want %d values, got %d", len(out), len(raw))
	}
	for i, r := range raw {
		if err := Unmarshal(r, out[i]); err != nil {
			return fmt.Errorf("decode value %d: %w", i, err)
		}
	}
	return nil
}

// DecodeGeneric decodes a CBOR array payload without type information.
func DecodeGeneric(data []byte) ([]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var vals []any
	if err := Unmarshal(data, &vals); err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	return vals, nil
}

// FormatValues renders a CBOR array payload as display strings: integers in
// decimal, byte strings as 0x hex, arrays as "[a,b]".
func FormatValues(data []byte) ([]string, error) {
	vals, err := DecodeGeneric(data)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = FormatValue(v)
	}
	return out, nil
}

// FormatValue renders one generically decoded value.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []byte:
		return ir.FormatBytes(val)
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case uint64:
		return strconv.FormatUint(val, 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case big.Int:
		return val.String()
	case *big.Int:
		return val.String()
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = FormatValue(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprint(val)
	}
}

// ToJSON converts a generically decoded value into a JSON friendly form
// (byte strings become 0x hex, big integers become decimal strings).
func ToJSON(v any) any {
	switch val := v.(type) {
	case []byte:
		return ir.FormatBytes(val)
	case big.Int:
		return val.String()
	case *big.Int:
		return val.String()
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = ToJSON(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = ToJSON(e)
		}
		return out
	default:
		return val
	}
}
