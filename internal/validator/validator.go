// Package validator enforces the CUE schema contracts between the
// extractor, the fact tables, the policy engine, and the report output.
//
// The schemas exist to fail loudly: if a field is renamed or a type
// drifts, rego rules would silently match nothing and the lint would
// look clean. Validation turns that silent miss into an immediate,
// named error. When validation fails, fix the producer or the schema
// deliberately; never loosen the schema to make an error go away.
package validator

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaFS embed.FS

//go:embed output_schema.cue
var outputSchemaFS embed.FS

//go:embed facts_schema.cue
var factsSchemaFS embed.FS

//go:embed daemon_schema.cue
var daemonSchemaFS embed.FS

// Validator validates per-file extraction output against the CUE schema
// contract. If the data doesn't match the schema we crash immediately
// with a clear error rather than letting the policy engine silently
// receive bad data.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// New creates a new Validator with the embedded CUE schema
func New() (*Validator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile("schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}

	return &Validator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// Validate checks that per-file extraction data conforms to the CUE schema.
// Returns nil if valid, or a detailed error explaining what failed.
func (v *Validator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON validates JSON bytes directly against the schema
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}

	fileDef := v.schema.LookupPath(cue.ParsePath("#FileData"))
	if fileDef.Err() != nil {
		return fmt.Errorf("looking up #FileData definition: %w", fileDef.Err())
	}

	unified := fileDef.Unify(dataValue)
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

// ValidationErrors returns detailed information about all validation errors
func (v *Validator) ValidationErrors(data interface{}) []string {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return []string{fmt.Sprintf("marshal error: %v", err)}
	}

	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return []string{fmt.Sprintf("compile error: %v", dataValue.Err())}
	}

	fileDef := v.schema.LookupPath(cue.ParsePath("#FileData"))
	if fileDef.Err() != nil {
		return []string{fmt.Sprintf("schema lookup error: %v", fileDef.Err())}
	}

	unified := fileDef.Unify(dataValue)
	err = unified.Validate()
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// OutputValidator validates linter output against the output schema
type OutputValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewOutputValidator creates a validator for linter output
func NewOutputValidator() (*OutputValidator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := outputSchemaFS.ReadFile("output_schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading output schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling output schema: %w", schema.Err())
	}

	return &OutputValidator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// Validate checks that the output data conforms to the output schema
func (v *OutputValidator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling output to JSON: %w", err)
	}

	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling output as CUE: %w", dataValue.Err())
	}

	outputDef := v.schema.LookupPath(cue.ParsePath("#LintOutput"))
	if outputDef.Err() != nil {
		return fmt.Errorf("looking up #LintOutput definition: %w", outputDef.Err())
	}

	unified := outputDef.Unify(dataValue)
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("output schema validation failed: %w", err)
	}

	return nil
}

// FactsValidator validates relational fact tables against the facts schema.
type FactsValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewFactsValidator creates a validator for relational fact tables.
func NewFactsValidator() (*FactsValidator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := factsSchemaFS.ReadFile("facts_schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading facts schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling facts schema: %w", schema.Err())
	}

	return &FactsValidator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// Validate checks that the fact tables conform to the facts schema.
func (v *FactsValidator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling facts to JSON: %w", err)
	}

	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling facts as CUE: %w", dataValue.Err())
	}

	factsDef := v.schema.LookupPath(cue.ParsePath("#FactTables"))
	if factsDef.Err() != nil {
		return fmt.Errorf("looking up #FactTables definition: %w", factsDef.Err())
	}

	unified := factsDef.Unify(dataValue)
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("facts schema validation failed: %w", err)
	}

	return nil
}

// PolicyDaemonValidator validates sv_policyd command/response payloads.
type PolicyDaemonValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewPolicyDaemonValidator creates a validator for policy daemon protocol payloads.
func NewPolicyDaemonValidator() (*PolicyDaemonValidator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := daemonSchemaFS.ReadFile("daemon_schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading daemon schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling daemon schema: %w", schema.Err())
	}

	return &PolicyDaemonValidator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// ValidateCommandJSON validates a command JSON payload.
func (v *PolicyDaemonValidator) ValidateCommandJSON(jsonBytes []byte) error {
	return v.validateJSON(jsonBytes, "#PolicyDaemonCommand")
}

// ValidateResponseJSON validates a response JSON payload.
func (v *PolicyDaemonValidator) ValidateResponseJSON(jsonBytes []byte) error {
	return v.validateJSON(jsonBytes, "#PolicyDaemonResponse")
}

func (v *PolicyDaemonValidator) validateJSON(jsonBytes []byte, path string) error {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}

	def := v.schema.LookupPath(cue.ParsePath(path))
	if def.Err() != nil {
		return fmt.Errorf("looking up %s definition: %w", path, def.Err())
	}

	unified := def.Unify(dataValue)
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("daemon schema validation failed: %w", err)
	}

	return nil
}
