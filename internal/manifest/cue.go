package manifest

import (
	_ "embed"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// Schema returns the CUE source of the #Manifest definition.
func Schema() string {
	return schemaSource
}

// ParseCUE compiles a CUE manifest, unifies it with #Manifest and decodes
// the result. Definitions are closed, so unknown fields fail.
func ParseCUE(name string, data []byte) (*Manifest, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, cueError(name, err)
	}
	def := schema.LookupPath(cue.ParsePath("#Manifest"))

	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, cueError(name, err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(name, err)
	}

	var m Manifest
	if err := unified.Decode(&m); err != nil {
		return nil, cueError(name, err)
	}
	if err := m.Validate(); err != nil {
		if me, ok := err.(*Error); ok {
			me.File = name
		}
		return nil, err
	}
	return &m, nil
}

// cueError keeps the first error and its position.
func cueError(name string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{File: name, Field: "cue", Message: err.Error()}
	}
	first := errs[0]
	out := &Error{File: name, Field: "cue", Message: first.Error()}
	if pos := errors.Positions(first); len(pos) > 0 && pos[0].IsValid() {
		out.Line = pos[0].Line()
		out.Column = pos[0].Column()
		if f := pos[0].Filename(); f != "" {
			out.File = f
		}
	}
	return out
}
