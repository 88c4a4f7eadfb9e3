package ir

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// Sizes of the fixed-width identity types.
const (
	AddressLength  = 20
	SelectorLength = 4
	HashLength     = 32
)

// Address identifies an account: a deployed module, a proxy, or an
// external caller. The zero value is the null sentinel ("no module").
type Address [AddressLength]byte

// ZeroAddress is the null address.
var ZeroAddress Address

// IsZero reports whether a is the null address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Hex returns the 0x-prefixed lowercase hex form.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}

// Compare orders addresses bytewise.
func (a Address) Compare(b Address) int {
	return bytes.Compare(a[:], b[:])
}

// MarshalText implements encoding.TextMarshaler (hex form in JSON and YAML).
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress parses a 40 hex digit address with optional 0x prefix.
// The literal "0x0" is accepted as the null address.
func ParseAddress(s string) (Address, error) {
	var a Address
	if s == "0x0" || s == "0" {
		return a, nil
	}
	if err := decodeFixedHex(s, a[:]); err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on error.
// Use only in tests or for compile-time constants.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// BytesToAddress returns the address held in the last 20 bytes of b.
// Shorter inputs are left-padded with zeros.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// Selector is the 4-byte function identifier used to route calls.
type Selector [SelectorLength]byte

// Hex returns the 0x-prefixed lowercase hex form.
func (s Selector) Hex() string {
	return "0x" + hex.EncodeToString(s[:])
}

func (s Selector) String() string {
	return s.Hex()
}

// Uint32 returns the selector as a big-endian integer.
func (s Selector) Uint32() uint32 {
	return uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3])
}

// Compare orders selectors bytewise.
func (s Selector) Compare(o Selector) int {
	return bytes.Compare(s[:], o[:])
}

// MarshalText implements encoding.TextMarshaler.
func (s Selector) MarshalText() ([]byte, error) {
	return []byte(s.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Selector) UnmarshalText(text []byte) error {
	parsed, err := ParseSelector(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SelectorFromUint32 builds a selector from its big-endian integer form.
func SelectorFromUint32(v uint32) Selector {
	return Selector{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// ParseSelector parses 8 hex digits with optional 0x prefix.
func ParseSelector(s string) (Selector, error) {
	var sel Selector
	if err := decodeFixedHex(s, sel[:]); err != nil {
		return Selector{}, fmt.Errorf("parse selector %q: %w", s, err)
	}
	return sel, nil
}

// MustParseSelector is like ParseSelector but panics on error.
func MustParseSelector(s string) Selector {
	sel, err := ParseSelector(s)
	if err != nil {
		panic(err)
	}
	return sel
}

// Hash is a 32-byte Keccak-256 or SHA-256 digest.
type Hash [HashLength]byte

// IsZero reports whether h is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Hex returns the 0x-prefixed lowercase hex form.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	if err := decodeFixedHex(string(text), h[:]); err != nil {
		return fmt.Errorf("parse hash %q: %w", text, err)
	}
	return nil
}

// FormatBytes renders arbitrary bytes as 0x-prefixed hex ("0x" when empty).
func FormatBytes(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// ParseBytes decodes 0x-prefixed (or bare) hex of any even length.
func ParseBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse bytes: %w", err)
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

// decodeFixedHex decodes s into dst, requiring exactly len(dst) bytes.
func decodeFixedHex(s string, dst []byte) error {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*len(dst) {
		return fmt.Errorf("want %d hex digits, got %d", 2*len(dst), len(s))
	}
	if _, err := hex.Decode(dst, []byte(s)); err != nil {
		return err
	}
	return nil
}
