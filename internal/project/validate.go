package project

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaCUE string

// validate checks raw project JSON against the embedded CUE schema. The
// schema rejects unknown tags, bad relation kinds and shape errors before
// any Go decoding touches the data.
func validate(data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile project schema: %w", err)
	}
	fileDef := schema.LookupPath(cue.ParsePath("#File"))
	if err := fileDef.Err(); err != nil {
		return fmt.Errorf("lookup #File: %w", err)
	}

	expr, err := cuejson.Extract("project.json", data)
	if err != nil {
		return fmt.Errorf("parse project file: %w", err)
	}
	value := ctx.BuildExpr(expr)
	if err := value.Err(); err != nil {
		return fmt.Errorf("build project value: %w", err)
	}

	unified := fileDef.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid project file: %w", err)
	}
	return nil
}
