package abi

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diamond/internal/ir"
)

func TestNormalizeSignature(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"getX()", "getX()"},
		{"transfer(address to, uint amount)", "transfer(address,uint256)"},
		{" transfer ( address , uint256 ) ", "transfer(address,uint256)"},
		{"diamondCut((address,uint8,bytes4[])[] cuts, address init, bytes data)",
			"diamondCut((address,uint8,bytes4[])[],address,bytes)"},
		{"f(int)", "f(int256)"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeSignature(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSignatureErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"noparens",
		"(address)",
		"f(address",
		"f(uint7)",
		"f(bytes33)",
		"f(float)",
		"f((address,uint8)",
		"f(())",
		"1f()",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseSignature(in)
			assert.Error(t, err)
		})
	}
}

func TestSelectorOfNormalizes(t *testing.T) {
	sel, err := SelectorOf("transfer(address to, uint amount)")
	require.NoError(t, err)
	assert.Equal(t, "0xa9059cbb", sel.Hex())

	assert.Equal(t, "0x1f931c1c",
		MustSelector("diamondCut((address,uint8,bytes4[])[],address,bytes)").Hex())
}

func TestEncodeCallRoundTrip(t *testing.T) {
	owner := ir.MustParseAddress("0x00000000000000000000000000000000000000aa")
	sel := MustSelector("transferOwnership(address)")

	data, err := EncodeCall(sel, owner)
	require.NoError(t, err)

	gotSel, payload, err := SplitCall(data)
	require.NoError(t, err)
	assert.Equal(t, sel, gotSel)

	var decoded ir.Address
	require.NoError(t, DecodeValues(payload, &decoded))
	assert.Equal(t, owner, decoded)
}

func TestEncodeCallIsDeterministic(t *testing.T) {
	sel := MustSelector("f(uint256,string)")
	a := MustEncodeCall(sel, uint64(7), "x")
	b := MustEncodeCall(sel, uint64(7), "x")
	assert.Equal(t, a, b)
}

func TestEncodeCallNoArgs(t *testing.T) {
	data := MustEncodeCall(MustSelector("getX()"))
	assert.Equal(t, []byte{0x51, 0x97, 0xc7, 0xaa, 0x80}, data)

	_, payload, err := SplitCall(data)
	require.NoError(t, err)
	require.NoError(t, DecodeValues(payload))

	// A bare selector decodes as no arguments.
	require.NoError(t, DecodeValues(nil))
}

func TestSplitCallShortData(t *testing.T) {
	sel, _, err := SplitCall([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrShortCallData)
	assert.Equal(t, ir.Selector{0x01, 0x02, 0, 0}, sel)
}

func TestDecodeValuesCountMismatch(t *testing.T) {
	payload := MustEncodeValues(uint64(1), uint64(2))
	var a uint64
	err := DecodeValues(payload, &a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want 1 values, got 2")
}

func TestFacetCutEncodesAsTuple(t *testing.T) {
	facet := ir.MustParseAddress("0x00000000000000000000000000000000000000bb")
	cuts := []ir.FacetCut{{
		FacetAddress:      facet,
		Action:            ir.Replace,
		FunctionSelectors: []ir.Selector{MustSelector("getX()")},
	}}

	fromStruct := MustEncodeValues(cuts, ir.ZeroAddress, []byte{})

	// The same call built from text arguments must encode identically.
	args, err := ParseArgs("diamondCut((address,uint8,bytes4[])[],address,bytes)", []string{
		"[(0x00000000000000000000000000000000000000bb,1,[getX()])]",
		"0x0",
		"0x",
	})
	require.NoError(t, err)
	fromText := MustEncodeValues(args...)
	assert.Equal(t, fromStruct, fromText)

	var decoded []ir.FacetCut
	var init ir.Address
	var calldata []byte
	require.NoError(t, DecodeValues(fromText, &decoded, &init, &calldata))
	assert.Equal(t, cuts, decoded)
	assert.True(t, init.IsZero())
	assert.Empty(t, calldata)
}

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs("f(bool,string,bytes,bytes32,uint8,int16,uint256,address[])", []string{
		"true",
		"hello",
		"0xdead",
		"0x" + "00000000000000000000000000000000000000000000000000000000000000ff",
		"0x10",
		"-5",
		"340282366920938463463374607431768211456",
		"[0x00000000000000000000000000000000000000aa, 0x00000000000000000000000000000000000000bb]",
	})
	require.NoError(t, err)
	require.Len(t, args, 8)

	assert.Equal(t, true, args[0])
	assert.Equal(t, "hello", args[1])
	assert.Equal(t, []byte{0xde, 0xad}, args[2])
	assert.Equal(t, byte(0xff), args[3].(ir.Hash)[31])
	assert.Equal(t, uint64(16), args[4])
	assert.Equal(t, int64(-5), args[5])
	want, _ := new(big.Int).SetString("340282366920938463463374607431768211456", 10)
	assert.Equal(t, 0, want.Cmp(args[6].(*big.Int)))
	assert.Len(t, args[7], 2)
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		sig  string
		args []string
	}{
		{"f(uint8)", []string{"256"}},
		{"f(uint8)", []string{}},
		{"f(address)", []string{"0x12"}},
		{"f(bytes4)", []string{"0xdeadbeefaa"}},
		{"f(bool)", []string{"maybe"}},
		{"f((address,uint8))", []string{"0x0,1"}},
		{"f((address,uint8))", []string{"(0x0)"}},
		{"f(uint256[])", []string{"[1,(2]"}},
	}

	for _, tt := range tests {
		t.Run(tt.sig, func(t *testing.T) {
			_, err := ParseArgs(tt.sig, tt.args)
			assert.Error(t, err)
		})
	}
}

func TestEncodeTextCall(t *testing.T) {
	data, err := EncodeTextCall("getX()", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x51, 0x97, 0xc7, 0xaa, 0x80}, data)

	raw, err := EncodeTextCall("0x5197c7aa", nil)
	require.NoError(t, err)
	assert.Equal(t, data, raw)

	data, err = EncodeTextCall("set(uint64)", []string{"7"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x07}, data[4:])

	_, err = EncodeTextCall("0x5197c7aa", []string{"1"})
	assert.ErrorContains(t, err, "arguments need a signature")

	_, err = EncodeTextCall("set(uint64)", nil)
	assert.Error(t, err)
}

func TestFormatValues(t *testing.T) {
	data := MustEncodeValues(
		uint64(100),
		true,
		ir.MustParseSelector("0x5197c7aa"),
		[]ir.Selector{ir.MustParseSelector("0xd3f60097")},
		int64(-1),
	)

	got, err := FormatValues(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "true", "0x5197c7aa", "[0xd3f60097]", "-1"}, got)

	empty, err := FormatValues(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestToJSON(t *testing.T) {
	vals, err := DecodeGeneric(MustEncodeValues([]byte{0x01}, []any{[]byte{0x02}, uint64(3)}))
	require.NoError(t, err)

	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = ToJSON(v)
	}
	assert.Equal(t, []any{"0x01", []any{"0x02", uint64(3)}}, out)
}

func TestDiagnose(t *testing.T) {
	diag, err := Diagnose(MustEncodeValues(uint64(100)))
	require.NoError(t, err)
	assert.Equal(t, "[100]", diag)
}
