package abi

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/roach88/diamond/internal/ir"
)

// ParseArgs converts textual arguments into values ready for EncodeCall,
// using the parameter types declared by signature.
//
// Formats: addresses and byte strings in 0x hex; bytes4 also accepts a
// function signature ("getX()") and is converted to its selector; integers
// in decimal or 0x hex; arrays as "[a,b]"; tuples as "(a,b)".
func ParseArgs(signature string, args []string) ([]any, error) {
	sig, err := ParseSignature(signature)
	if err != nil {
		return nil, err
	}
	if len(args) != len(sig.Inputs) {
		return nil, fmt.Errorf("%s: want %d arguments, got %d", sig, len(sig.Inputs), len(args))
	}
	out := make([]any, len(args))
	for i, a := range args {
		v, err := ParseValue(sig.Inputs[i], a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", sig, i, err)
		}
		out[i] = v
	}
	return out, nil
}

// EncodeTextCall builds call data from a signature and textual arguments,
// or from a raw 0x selector with no arguments.
func EncodeTextCall(function string, args []string) ([]byte, error) {
	if strings.HasPrefix(function, "0x") {
		if len(args) > 0 {
			return nil, fmt.Errorf("call %s: arguments need a signature", function)
		}
		sel, err := ir.ParseSelector(function)
		if err != nil {
			return nil, err
		}
		return EncodeCall(sel)
	}
	vals, err := ParseArgs(function, args)
	if err != nil {
		return nil, err
	}
	return EncodeSignatureCall(function, vals...)
}

// ParseValue converts one textual value of type t.
func ParseValue(t Type, s string) (any, error) {
	s = strings.TrimSpace(s)
	switch t.Kind {
	case KindAddress:
		return ir.ParseAddress(s)
	case KindBool:
		return strconv.ParseBool(s)
	case KindString:
		return s, nil
	case KindBytes:
		return ir.ParseBytes(s)
	case KindFixedBytes:
		return parseFixedBytes(t.Size, s)
	case KindUint:
		return parseUint(t.Size, s)
	case KindInt:
		return parseInt(t.Size, s)
	case KindArray:
		items, err := splitEnclosed(s, '[', ']')
		if err != nil {
			return nil, err
		}
		vals := make([]any, len(items))
		for i, item := range items {
			v, err := ParseValue(*t.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			vals[i] = v
		}
		return vals, nil
	case KindTuple:
		items, err := splitEnclosed(s, '(', ')')
		if err != nil {
			return nil, err
		}
		if len(items) != len(t.Components) {
			return nil, fmt.Errorf("tuple %s: want %d fields, got %d", t, len(t.Components), len(items))
		}
		vals := make([]any, len(items))
		for i, item := range items {
			v, err := ParseValue(t.Components[i], item)
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", i, err)
			}
			vals[i] = v
		}
		return vals, nil
	default:
		return nil, fmt.Errorf("unsupported type %s", t)
	}
}

func parseFixedBytes(size int, s string) (any, error) {
	if size == ir.SelectorLength && strings.Contains(s, "(") {
		return SelectorOf(s)
	}
	b, err := ir.ParseBytes(s)
	if err != nil {
		return nil, err
	}
	if len(b) != size {
		return nil, fmt.Errorf("bytes%d: got %d bytes", size, len(b))
	}
	switch size {
	case ir.SelectorLength:
		var sel ir.Selector
		copy(sel[:], b)
		return sel, nil
	case ir.HashLength:
		var h ir.Hash
		copy(h[:], b)
		return h, nil
	default:
		return b, nil
	}
}

func parseUint(bits int, s string) (any, error) {
	if bits <= 64 {
		v, err := strconv.ParseUint(s, 0, bits)
		if err != nil {
			return nil, fmt.Errorf("uint%d: %w", bits, err)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.Sign() < 0 || v.BitLen() > bits {
		return nil, fmt.Errorf("uint%d: invalid value %q", bits, s)
	}
	return v, nil
}

func parseInt(bits int, s string) (any, error) {
	if bits <= 64 {
		v, err := strconv.ParseInt(s, 0, bits)
		if err != nil {
			return nil, fmt.Errorf("int%d: %w", bits, err)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.BitLen() >= bits {
		return nil, fmt.Errorf("int%d: invalid value %q", bits, s)
	}
	return v, nil
}

// splitEnclosed strips the outer delimiters (optional for arrays) and
// splits the contents on top-level commas.
func splitEnclosed(s string, open, close byte) ([]string, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == open && s[len(s)-1] == close {
		s = s[1 : len(s)-1]
	} else if open == '(' {
		return nil, fmt.Errorf("tuple value %q must be parenthesized", s)
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced brackets in %q", s)
	}
	return append(parts, strings.TrimSpace(s[start:])), nil
}
