// Package manifest loads cut manifests: files describing one diamondCut
// batch and its optional initializer.
//
// Manifests are YAML or CUE. A YAML manifest:
//
//	name: upgrade-counter
//	cuts:
//	  - action: replace
//	    facet: counter-v2
//	    functions: ["getX()", "changeX()"]
//	  - action: add
//	    facet: counter-v2
//	    functions: ["getY()"]
//	init:
//	  module: counter-init-v2
//	  call: init2()
//
// Facets are catalog names or 0x addresses. Functions are signatures or
// 0x selectors. An add or replace item naming a catalog module with no
// functions takes every function the module defines.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/catalog"
	"github.com/roach88/diamond/internal/ir"
)

// Manifest is a parsed, unresolved cut manifest.
type Manifest struct {
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Cuts        []Item `yaml:"cuts" json:"cuts"`
	Init        *Init  `yaml:"init,omitempty" json:"init,omitempty"`
}

// Item is one cut item.
type Item struct {
	Action    string   `yaml:"action" json:"action"`
	Facet     string   `yaml:"facet,omitempty" json:"facet,omitempty"`
	Functions []string `yaml:"functions,omitempty" json:"functions,omitempty"`
}

// Init names the initializer module and the call made to it.
type Init struct {
	Module string   `yaml:"module" json:"module"`
	Call   string   `yaml:"call" json:"call"`
	Args   []string `yaml:"args,omitempty" json:"args,omitempty"`
}

// Resolved is a manifest ready to send as diamondCut arguments.
type Resolved struct {
	Cuts     []ir.FacetCut
	Init     ir.Address
	Calldata []byte
}

// Error is a manifest problem with an optional source position.
type Error struct {
	File    string
	Line    int
	Column  int
	Field   string
	Message string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(": ")
	}
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// Load reads a manifest, choosing the format by extension.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return ParseCUE(path, data)
	case ".yaml", ".yml":
		return ParseYAML(path, data)
	default:
		return nil, &Error{File: path, Message: "unsupported manifest format (want .yaml, .yml or .cue)"}
	}
}

// ParseYAML decodes a YAML manifest. Unknown fields are rejected.
func ParseYAML(name string, data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, &Error{File: name, Message: fmt.Sprintf("parse YAML: %v", err)}
	}
	if err := m.Validate(); err != nil {
		if me, ok := err.(*Error); ok {
			me.File = name
		}
		return nil, err
	}
	return &m, nil
}

// Validate checks structure without consulting a catalog.
func (m *Manifest) Validate() error {
	if len(m.Cuts) == 0 {
		return &Error{Field: "cuts", Message: "at least one cut item is required"}
	}
	for i, it := range m.Cuts {
		field := fmt.Sprintf("cuts[%d]", i)
		action, err := ir.ParseFacetCutAction(it.Action)
		if err != nil {
			return &Error{Field: field + ".action", Message: err.Error()}
		}
		switch {
		case action == ir.Remove && len(it.Functions) == 0:
			return &Error{Field: field + ".functions", Message: "remove needs an explicit function list"}
		case action != ir.Remove && it.Facet == "":
			return &Error{Field: field + ".facet", Message: "facet is required for " + it.Action}
		}
		for j, fn := range it.Functions {
			if _, err := parseFunction(fn); err != nil {
				return &Error{Field: fmt.Sprintf("%s.functions[%d]", field, j), Message: err.Error()}
			}
		}
	}
	if m.Init != nil {
		if m.Init.Module == "" {
			return &Error{Field: "init.module", Message: "module is required"}
		}
		if _, err := parseFunction(m.Init.Call); err != nil {
			return &Error{Field: "init.call", Message: err.Error()}
		}
		if isSelector(m.Init.Call) && len(m.Init.Args) > 0 {
			return &Error{Field: "init.args", Message: "arguments need a signature, not a raw selector"}
		}
	}
	return nil
}

// Resolve binds names against cat and encodes the initializer call.
func (m *Manifest) Resolve(cat *catalog.Catalog) (*Resolved, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	out := &Resolved{Cuts: make([]ir.FacetCut, 0, len(m.Cuts))}
	for i, it := range m.Cuts {
		field := fmt.Sprintf("cuts[%d]", i)
		action, _ := ir.ParseFacetCutAction(it.Action)

		var facet ir.Address
		if it.Facet != "" {
			addr, err := cat.Resolve(it.Facet)
			if err != nil {
				return nil, &Error{Field: field + ".facet", Message: err.Error()}
			}
			facet = addr
		}

		var sels []ir.Selector
		if len(it.Functions) == 0 {
			entry, ok := cat.ByAddress(facet)
			if !ok || entry.Selectors() == nil {
				return nil, &Error{Field: field + ".functions", Message: fmt.Sprintf("%s is not a catalog facet; list its functions", it.Facet)}
			}
			sels = entry.Selectors()
		} else {
			for _, fn := range it.Functions {
				sel, _ := parseFunction(fn)
				sels = append(sels, sel)
			}
		}

		out.Cuts = append(out.Cuts, ir.FacetCut{
			FacetAddress:      facet,
			Action:            action,
			FunctionSelectors: sels,
		})
	}

	if m.Init != nil {
		addr, err := cat.Resolve(m.Init.Module)
		if err != nil {
			return nil, &Error{Field: "init.module", Message: err.Error()}
		}
		out.Init = addr
		if out.Calldata, err = encodeInit(m.Init); err != nil {
			return nil, &Error{Field: "init.args", Message: err.Error()}
		}
	}
	return out, nil
}

func encodeInit(in *Init) ([]byte, error) {
	if isSelector(in.Call) {
		sel, err := ir.ParseSelector(in.Call)
		if err != nil {
			return nil, err
		}
		return abi.EncodeCall(sel)
	}
	args, err := abi.ParseArgs(in.Call, in.Args)
	if err != nil {
		return nil, err
	}
	return abi.EncodeSignatureCall(in.Call, args...)
}

func isSelector(s string) bool {
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
}

func parseFunction(s string) (ir.Selector, error) {
	if isSelector(s) {
		return ir.ParseSelector(s)
	}
	return abi.SelectorOf(s)
}
