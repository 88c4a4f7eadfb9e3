package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("0x00000000000000000000000000000000000000Aa")
	require.NoError(t, err)
	assert.Equal(t, byte(0xaa), a[19])
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", a.Hex())

	bare, err := ParseAddress("00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, a, bare)

	zero, err := ParseAddress("0x0")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = ParseAddress("0x1234")
	assert.Error(t, err)
	_, err = ParseAddress("0xzz000000000000000000000000000000000000aa")
	assert.Error(t, err)
}

func TestBytesToAddress(t *testing.T) {
	assert.Equal(t, byte(1), BytesToAddress([]byte{1})[19])

	long := make([]byte, 32)
	long[31] = 7
	long[0] = 9
	a := BytesToAddress(long)
	assert.Equal(t, byte(7), a[19])
	assert.Equal(t, byte(0), a[0], "leading bytes beyond 20 are dropped")
}

func TestSelectorRoundTrip(t *testing.T) {
	sel := MustParseSelector("0xa9059cbb")
	assert.Equal(t, uint32(0xa9059cbb), sel.Uint32())
	assert.Equal(t, sel, SelectorFromUint32(0xa9059cbb))

	_, err := ParseSelector("0xa9059c")
	assert.Error(t, err)
}

func TestIdentityTypesJSON(t *testing.T) {
	in := Route{
		Selector: MustParseSelector("0x5197c7aa"),
		Facet:    MustParseAddress("0x00000000000000000000000000000000000000bb"),
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"selector":"0x5197c7aa","facet":"0x00000000000000000000000000000000000000bb"}`, string(data))

	var out Route
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestParseFacetCutAction(t *testing.T) {
	for s, want := range map[string]FacetCutAction{"add": Add, "Replace": Replace, "REMOVE": Remove} {
		got, err := ParseFacetCutAction(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFacetCutAction("upsert")
	assert.Error(t, err)
	assert.Equal(t, "FacetCutAction(7)", FacetCutAction(7).String())
}

func TestLogFilterMatches(t *testing.T) {
	a := MustParseAddress("0x00000000000000000000000000000000000000aa")
	l := Log{Seq: 5, Address: a, Event: "DiamondCut"}

	assert.True(t, LogFilter{}.Matches(l))
	assert.True(t, LogFilter{Address: a, Event: "DiamondCut", AfterSeq: 4}.Matches(l))
	assert.False(t, LogFilter{AfterSeq: 5}.Matches(l))
	assert.False(t, LogFilter{Event: "OwnershipTransferred"}.Matches(l))
	assert.False(t, LogFilter{Address: AccountAddress("x")}.Matches(l))
}
