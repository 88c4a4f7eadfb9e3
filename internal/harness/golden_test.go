package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGolden_CounterUpgrade(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/counter_upgrade.yaml")
	require.NoError(t, err)

	// Regenerate with:
	//   go test ./internal/harness -run TestGolden_CounterUpgrade -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
}

func TestMarshalTrace_OmitsGasAndEmptyFields(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{Step: 1, Kind: "call", From: "alice", Function: "changeX()", TxID: "tx-1", GasUsed: 4200})

	data, err := MarshalTrace("gas", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"gas","trace":[{"from":"alice","function":"changeX()","kind":"call","step":1,"tx_id":"tx-1"}]}`,
		string(data))
}

func TestMarshalTrace_SymbolicAddresses(t *testing.T) {
	scenario := parse(t, minimalScenario)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	data, err := MarshalTrace(scenario.Name, result)
	require.NoError(t, err)
	assert.NotRegexp(t, `0x[0-9a-f]{40}`, string(data))
	assert.Contains(t, string(data), `\"init\":\"init\"`)
}
