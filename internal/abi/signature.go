package abi

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/roach88/diamond/internal/ir"
)

// Kind classifies an ABI type.
type Kind int

const (
	KindAddress Kind = iota + 1
	KindBool
	KindString
	KindBytes      // dynamic bytes
	KindFixedBytes // bytes1..bytes32
	KindUint
	KindInt
	KindArray // T[]
	KindTuple // (T1,T2,...)
)

// Type is a parsed ABI type.
type Type struct {
	Kind       Kind
	Size       int // bit size for ints, byte size for fixed bytes
	Elem       *Type
	Components []Type
}

// String renders the canonical type name used in signatures.
func (t Type) String() string {
	switch t.Kind {
	case KindAddress:
		return "address"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindFixedBytes:
		return "bytes" + strconv.Itoa(t.Size)
	case KindUint:
		return "uint" + strconv.Itoa(t.Size)
	case KindInt:
		return "int" + strconv.Itoa(t.Size)
	case KindArray:
		return t.Elem.String() + "[]"
	case KindTuple:
		parts := make([]string, len(t.Components))
		for i, c := range t.Components {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, ",") + ")"
	default:
		return "invalid"
	}
}

// Signature is a parsed function signature.
type Signature struct {
	Name   string
	Inputs []Type
}

// String returns the normalized form "name(type1,type2)".
func (s Signature) String() string {
	parts := make([]string, len(s.Inputs))
	for i, in := range s.Inputs {
		parts[i] = in.String()
	}
	return s.Name + "(" + strings.Join(parts, ",") + ")"
}

// Selector returns the routing identifier of the signature.
func (s Signature) Selector() ir.Selector {
	return ir.SelectorOf(s.String())
}

// ParseSignature parses a human-written signature. Parameter names,
// whitespace and the "uint"/"int" aliases are accepted and normalized away:
// "transfer(address to, uint amount)" parses to "transfer(address,uint256)".
func ParseSignature(s string) (Signature, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return Signature{}, fmt.Errorf("signature %q: want name(types)", s)
	}
	name := strings.TrimSpace(s[:open])
	if !isIdentifier(name) {
		return Signature{}, fmt.Errorf("signature %q: invalid function name %q", s, name)
	}

	inputs, err := parseTypeList(s[open+1 : len(s)-1])
	if err != nil {
		return Signature{}, fmt.Errorf("signature %q: %w", s, err)
	}
	return Signature{Name: name, Inputs: inputs}, nil
}

// MustParseSignature is like ParseSignature but panics on error.
// Use for signatures written as constants in module definitions.
func MustParseSignature(s string) Signature {
	sig, err := ParseSignature(s)
	if err != nil {
		panic(err)
	}
	return sig
}

// NormalizeSignature returns the canonical form of s.
func NormalizeSignature(s string) (string, error) {
	sig, err := ParseSignature(s)
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}

// SelectorOf parses and normalizes s, then derives its selector.
func SelectorOf(s string) (ir.Selector, error) {
	sig, err := ParseSignature(s)
	if err != nil {
		return ir.Selector{}, err
	}
	return sig.Selector(), nil
}

// MustSelector is like SelectorOf but panics on error.
func MustSelector(s string) ir.Selector {
	sel, err := SelectorOf(s)
	if err != nil {
		panic(err)
	}
	return sel
}

// ParseType parses a single type expression such as "bytes4[]" or
// "(address,uint8,bytes4[])[]".
func ParseType(s string) (Type, error) {
	s = stripParamName(strings.TrimSpace(s))
	if s == "" {
		return Type{}, fmt.Errorf("empty type")
	}

	if strings.HasSuffix(s, "[]") {
		elem, err := ParseType(s[:len(s)-2])
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindArray, Elem: &elem}, nil
	}

	if strings.HasPrefix(s, "(") {
		if !strings.HasSuffix(s, ")") {
			return Type{}, fmt.Errorf("unbalanced tuple %q", s)
		}
		comps, err := parseTypeList(s[1 : len(s)-1])
		if err != nil {
			return Type{}, err
		}
		if len(comps) == 0 {
			return Type{}, fmt.Errorf("empty tuple")
		}
		return Type{Kind: KindTuple, Components: comps}, nil
	}

	switch {
	case s == "address":
		return Type{Kind: KindAddress}, nil
	case s == "bool":
		return Type{Kind: KindBool}, nil
	case s == "string":
		return Type{Kind: KindString}, nil
	case s == "bytes":
		return Type{Kind: KindBytes}, nil
	case strings.HasPrefix(s, "bytes"):
		n, err := strconv.Atoi(s[len("bytes"):])
		if err != nil || n < 1 || n > 32 {
			return Type{}, fmt.Errorf("invalid fixed bytes type %q", s)
		}
		return Type{Kind: KindFixedBytes, Size: n}, nil
	case strings.HasPrefix(s, "uint"):
		n, err := intSize(s[len("uint"):])
		if err != nil {
			return Type{}, fmt.Errorf("invalid type %q: %w", s, err)
		}
		return Type{Kind: KindUint, Size: n}, nil
	case strings.HasPrefix(s, "int"):
		n, err := intSize(s[len("int"):])
		if err != nil {
			return Type{}, fmt.Errorf("invalid type %q: %w", s, err)
		}
		return Type{Kind: KindInt, Size: n}, nil
	default:
		return Type{}, fmt.Errorf("unknown type %q", s)
	}
}

// stripParamName drops a trailing parameter name: "address to" becomes
// "address", "(address,uint8)[] cuts" becomes "(address,uint8)[]".
func stripParamName(s string) string {
	depth := 0
	for i, r := range s {
		switch {
		case r == '(':
			depth++
		case r == ')':
			depth--
		case depth == 0 && unicode.IsSpace(r):
			return s[:i]
		}
	}
	return s
}

func intSize(s string) (int, error) {
	if s == "" {
		return 256, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 8 || n > 256 || n%8 != 0 {
		return 0, fmt.Errorf("bit size must be a multiple of 8 in [8,256]")
	}
	return n, nil
}

// parseTypeList parses a comma separated list of types, respecting nested
// parentheses.
func parseTypeList(s string) ([]Type, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts, err := splitTopLevel(s, '(', ')')
	if err != nil {
		return nil, err
	}
	types := make([]Type, len(parts))
	for i, p := range parts {
		t, err := ParseType(p)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		types[i] = t
	}
	return types, nil
}

// splitTopLevel splits s on commas that are not nested inside open/close.
func splitTopLevel(s string, open, close byte) ([]string, error) {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q in %q", close, s)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced %q in %q", open, s)
	}
	return append(parts, strings.TrimSpace(s[start:])), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '$' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
