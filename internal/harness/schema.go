package harness

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaCUE string

// SchemaError is a scenario that does not match the scenario schema.
type SchemaError struct {
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error

	// cue.Context is not safe for concurrent use.
	schemaMu sync.Mutex
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile scenario schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Scenario"))
		if !schemaDef.Exists() {
			schemaErr = fmt.Errorf("scenario schema has no #Scenario")
		}
	})
	return schemaCtx, schemaDef, schemaErr
}

// ValidateSchema checks a YAML scenario document against the scenario
// schema. filename is used in error positions only.
func ValidateSchema(filename string, data []byte) error {
	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}
	schemaMu.Lock()
	defer schemaMu.Unlock()

	f, err := cueyaml.Extract(filename, data)
	if err != nil {
		return toSchemaError(err)
	}
	doc := ctx.BuildFile(f)
	if err := doc.Err(); err != nil {
		return toSchemaError(err)
	}
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return toSchemaError(err)
	}
	return nil
}

// toSchemaError keeps the first CUE error and its position.
func toSchemaError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{Message: err.Error()}
	}
	first := errs[0]
	se := &SchemaError{Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		se.Pos = positions[0]
	}
	return se
}
