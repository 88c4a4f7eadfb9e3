package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/diamond/internal/manifest"
)

// Scenario defines a conformance test scenario: a diamond, a sequence of
// messages sent to it, and assertions over its final routing table.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Accounts are labels for externally owned accounts. Each label maps
	// to ir.AccountAddress(label) and is funded before the first step.
	Accounts []string `yaml:"accounts"`

	// Diamond describes the bootstrap.
	Diamond DiamondSpec `yaml:"diamond"`

	// Steps run in order against the diamond.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`

	// TxPrefix names transaction IDs ("tx" gives tx-1, tx-2, ...).
	TxPrefix string `yaml:"tx_prefix,omitempty"`
}

// DiamondSpec selects the modules the diamond is bootstrapped with.
type DiamondSpec struct {
	// Owner is the account that deploys and owns the diamond.
	Owner string `yaml:"owner"`

	// Facets are catalog names of business facets added at bootstrap.
	Facets []string `yaml:"facets,omitempty"`

	// Init is the catalog name of the bootstrap initializer. Defaults to
	// "init"; "none" skips initialization.
	Init string `yaml:"init,omitempty"`
}

// Step is one message. Exactly one of Cut, Call and TransferOwnership is
// set.
type Step struct {
	Name              string        `yaml:"name,omitempty"`
	Cut               *CutStep      `yaml:"cut,omitempty"`
	Call              *CallStep     `yaml:"call,omitempty"`
	TransferOwnership *TransferStep `yaml:"transfer_ownership,omitempty"`
	Expect            *ExpectClause `yaml:"expect,omitempty"`
}

// CutStep sends diamondCut built from an inline manifest.
type CutStep struct {
	From     string            `yaml:"from"`
	Manifest manifest.Manifest `yaml:"manifest"`
}

// CallStep sends a call to the diamond.
type CallStep struct {
	From     string   `yaml:"from"`
	Function string   `yaml:"function"`
	Args     []string `yaml:"args,omitempty"`
	Value    uint64   `yaml:"value,omitempty"`

	// Query runs the call read-only and discards its effects.
	Query bool `yaml:"query,omitempty"`
}

// TransferStep calls transferOwnership.
type TransferStep struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// ExpectClause specifies the expected outcome. Without one, a step must
// succeed.
type ExpectClause struct {
	// Error is the expected error code, e.g. NotOwner or OUT_OF_GAS.
	Error string `yaml:"error,omitempty"`

	// Return is the expected formatted return values.
	Return []string `yaml:"return,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Function is a signature or 0x selector (facet_address).
	Function string `yaml:"function,omitempty"`

	// Facet is a catalog name or 0x address; "none" means no facet
	// (facet_address, selectors).
	Facet string `yaml:"facet,omitempty"`

	// Functions are the expected selectors in loupe order (selectors).
	Functions []string `yaml:"functions,omitempty"`

	// Facets are the expected facets in loupe order (facets).
	Facets []string `yaml:"facets,omitempty"`

	// Account is the expected owner (owner).
	Account string `yaml:"account,omitempty"`

	// Interface is a 0x interface ID (supports_interface).
	Interface string `yaml:"interface,omitempty"`

	// Supported is the expected answer (supports_interface).
	Supported *bool `yaml:"supported,omitempty"`
}

// Assertion type constants.
const (
	AssertFacets            = "facets"
	AssertSelectors         = "selectors"
	AssertFacetAddress      = "facet_address"
	AssertOwner             = "owner"
	AssertSupportsInterface = "supports_interface"
	AssertRegistryValid     = "registry_valid"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario is LoadScenario for in-memory YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
// Names are resolved later, when the catalog and accounts are known.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Diamond.Owner == "" {
		return fmt.Errorf("diamond.owner is required")
	}

	for i, step := range s.Steps {
		n := 0
		if step.Cut != nil {
			n++
			if step.Cut.From == "" {
				return fmt.Errorf("steps[%d].cut: from is required", i)
			}
			if err := step.Cut.Manifest.Validate(); err != nil {
				return fmt.Errorf("steps[%d].cut.manifest: %w", i, err)
			}
		}
		if step.Call != nil {
			n++
			if step.Call.From == "" || step.Call.Function == "" {
				return fmt.Errorf("steps[%d].call: from and function are required", i)
			}
		}
		if step.TransferOwnership != nil {
			n++
			if step.TransferOwnership.From == "" || step.TransferOwnership.To == "" {
				return fmt.Errorf("steps[%d].transfer_ownership: from and to are required", i)
			}
		}
		if n != 1 {
			return fmt.Errorf("steps[%d]: exactly one of cut, call, transfer_ownership is required", i)
		}
		if step.Expect != nil && step.Expect.Error != "" && step.Expect.Return != nil {
			return fmt.Errorf("steps[%d].expect: error and return are mutually exclusive", i)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFacets:
		if a.Facets == nil {
			return fmt.Errorf("assertions[%d]: facets list is required for facets", index)
		}
	case AssertSelectors:
		if a.Facet == "" {
			return fmt.Errorf("assertions[%d]: facet is required for selectors", index)
		}
	case AssertFacetAddress:
		if a.Function == "" || a.Facet == "" {
			return fmt.Errorf("assertions[%d]: function and facet are required for facet_address", index)
		}
	case AssertOwner:
		if a.Account == "" {
			return fmt.Errorf("assertions[%d]: account is required for owner", index)
		}
	case AssertSupportsInterface:
		if a.Interface == "" || a.Supported == nil {
			return fmt.Errorf("assertions[%d]: interface and supported are required for supports_interface", index)
		}
	case AssertRegistryValid:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
