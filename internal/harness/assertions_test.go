package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertions_AllHold(t *testing.T) {
	scenario := parse(t, `
name: holds
description: "Fresh diamond with the counter"
diamond:
  owner: owner
  facets: [counter]
assertions:
  - type: facets
    facets: [cut, loupe, ownership, counter]
  - type: selectors
    facet: cut
    functions: ["0x1f931c1c"]
  - type: selectors
    facet: counter
    functions: ["getX()", "changeX()"]
  - type: facet_address
    function: "0x8da5cb5b"
    facet: ownership
  - type: facet_address
    function: getY()
    facet: none
  - type: owner
    account: owner
  - type: supports_interface
    interface: "0x01ffc9a7"
    supported: true
  - type: registry_valid
`)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion string
		want      []string
	}{
		{
			name:      "facets",
			assertion: "{type: facets, facets: [cut, loupe]}",
			want:      []string{"Assertion failed: facets", "Expected: [cut loupe]", "Actual: [cut loupe ownership counter]"},
		},
		{
			name:      "selectors order",
			assertion: `{type: selectors, facet: counter, functions: ["changeX()", "getX()"]}`,
			want:      []string{"Assertion failed: selectors", "Expected: counter: [0xd3f60097 0x5197c7aa]"},
		},
		{
			name:      "facet_address",
			assertion: "{type: facet_address, function: getX(), facet: counter-v2}",
			want:      []string{"Assertion failed: facet_address", "Actual: getX() routed to counter"},
		},
		{
			name:      "unrouted function",
			assertion: "{type: facet_address, function: getY(), facet: counter-v2}",
			want:      []string{"Actual: getY() routed to none"},
		},
		{
			name:      "owner",
			assertion: "{type: owner, account: alice}",
			want:      []string{"Assertion failed: owner", "Expected: alice"},
		},
		{
			name:      "supports_interface",
			assertion: `{type: supports_interface, interface: "0xffffffff", supported: true}`,
			want:      []string{"Assertion failed: supports_interface", "supportsInterface(0xffffffff) = true", "Actual: false"},
		},
		{
			name:      "unknown facet name",
			assertion: "{type: selectors, facet: widget, functions: []}",
			want:      []string{`unknown module "widget"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := parse(t, `
name: fails
description: "One failing assertion"
accounts: [alice]
diamond:
  owner: owner
  facets: [counter]
assertions:
  - `+tt.assertion+`
`)
			result, err := Run(context.Background(), scenario)
			require.NoError(t, err)

			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], "assertions[0]: ")
			for _, w := range tt.want {
				assert.Contains(t, result.Errors[0], w)
			}
		})
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertOwner,
		Expected: "alice",
		Actual:   "owner",
		Trace: []TraceEvent{
			{Step: 0, Kind: "bootstrap", Function: "diamondCut", From: "owner"},
			{Step: 1, Kind: "call", Function: "0xdeadbeef", From: "alice", Error: "FunctionNotFound"},
		},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: owner\n")
	assert.Contains(t, msg, "  Expected: alice\n")
	assert.Contains(t, msg, "  Actual: owner\n")
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "  [0] bootstrap diamondCut from owner: ok\n")
	assert.Contains(t, msg, "  [1] call 0xdeadbeef from alice: FunctionNotFound\n")
}

func TestAssertionError_NoTrace(t *testing.T) {
	err := &AssertionError{Type: AssertFacets, Expected: "[]", Actual: "[cut]"}
	assert.NotContains(t, err.Error(), "Full trace")
}
