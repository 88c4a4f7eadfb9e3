package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "Bootstrap only"
diamond:
  owner: owner
assertions:
  - type: registry_valid
`

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	assert.Equal(t, "owner", scenario.Diamond.Owner)
	assert.Empty(t, scenario.Diamond.Facets)
	assert.Empty(t, scenario.Steps)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertRegistryValid, scenario.Assertions[0].Type)
}

func TestLoadScenario_CounterUpgrade(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/counter_upgrade.yaml")
	require.NoError(t, err)

	assert.Equal(t, "counter_upgrade", scenario.Name)
	assert.Equal(t, []string{"alice"}, scenario.Accounts)
	assert.Equal(t, []string{"counter"}, scenario.Diamond.Facets)
	require.Len(t, scenario.Steps, 13)

	first := scenario.Steps[0]
	require.NotNil(t, first.Cut)
	require.NotNil(t, first.Cut.Manifest.Init)
	assert.Equal(t, "counter-init", first.Cut.Manifest.Init.Module)
	assert.Equal(t, "init()", first.Cut.Manifest.Init.Call)

	assert.True(t, scenario.Steps[1].Call.Query)
	assert.Equal(t, []string{"100"}, scenario.Steps[1].Expect.Return)
	assert.Equal(t, "NotOwner", scenario.Steps[4].Expect.Error)
	assert.Equal(t, "alice", scenario.Steps[11].TransferOwnership.To)
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	content := minimalScenario + "flow_token: abc\n"
	_, err := ParseScenario([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "flow_token")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: d
diamond: {owner: owner}
assertions: [{type: registry_valid}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: n
diamond: {owner: owner}
assertions: [{type: registry_valid}]
`,
			wantErr: "description is required",
		},
		{
			name: "missing owner",
			content: `
name: n
description: d
assertions: [{type: registry_valid}]
`,
			wantErr: "diamond.owner is required",
		},
		{
			name: "no assertions",
			content: `
name: n
description: d
diamond: {owner: owner}
`,
			wantErr: "assertions list is required",
		},
		{
			name: "empty step",
			content: `
name: n
description: d
diamond: {owner: owner}
steps:
  - name: nothing
assertions: [{type: registry_valid}]
`,
			wantErr: "steps[0]: exactly one of cut, call, transfer_ownership is required",
		},
		{
			name: "two messages in one step",
			content: `
name: n
description: d
diamond: {owner: owner}
steps:
  - call: {from: owner, function: owner()}
    transfer_ownership: {from: owner, to: alice}
assertions: [{type: registry_valid}]
`,
			wantErr: "exactly one of",
		},
		{
			name: "call without function",
			content: `
name: n
description: d
diamond: {owner: owner}
steps:
  - call: {from: owner}
assertions: [{type: registry_valid}]
`,
			wantErr: "steps[0].call: from and function are required",
		},
		{
			name: "transfer without target",
			content: `
name: n
description: d
diamond: {owner: owner}
steps:
  - transfer_ownership: {from: owner}
assertions: [{type: registry_valid}]
`,
			wantErr: "steps[0].transfer_ownership: from and to are required",
		},
		{
			name: "cut with invalid manifest",
			content: `
name: n
description: d
diamond: {owner: owner}
steps:
  - cut:
      from: owner
      manifest:
        cuts: []
assertions: [{type: registry_valid}]
`,
			wantErr: "steps[0].cut.manifest",
		},
		{
			name: "expect error and return",
			content: `
name: n
description: d
diamond: {owner: owner}
steps:
  - call: {from: owner, function: owner()}
    expect: {error: NotOwner, return: ["x"]}
assertions: [{type: registry_valid}]
`,
			wantErr: "error and return are mutually exclusive",
		},
		{
			name: "unknown assertion type",
			content: `
name: n
description: d
diamond: {owner: owner}
assertions: [{type: trace_contains}]
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name: "facet_address without facet",
			content: `
name: n
description: d
diamond: {owner: owner}
assertions: [{type: facet_address, function: getX()}]
`,
			wantErr: "function and facet are required for facet_address",
		},
		{
			name: "supports_interface without answer",
			content: `
name: n
description: d
diamond: {owner: owner}
assertions: [{type: supports_interface, interface: "0x01ffc9a7"}]
`,
			wantErr: "interface and supported are required",
		},
		{
			name: "owner without account",
			content: `
name: n
description: d
diamond: {owner: owner}
assertions: [{type: owner}]
`,
			wantErr: "account is required for owner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
