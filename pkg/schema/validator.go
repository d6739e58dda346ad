package schema

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fulmenhq/repopolicy/internal/assets"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// isOfflineMode checks if offline schema validation is enabled via environment variable
func isOfflineMode() bool {
	return os.Getenv("REPOPOLICY_OFFLINE_SCHEMA_VALIDATION") == "true"
}

// Result holds the validation result.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError is a single schema violation.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Messages renders the violations as "path: message" lines, sorted.
func (r *Result) Messages() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Path+": "+e.Message)
	}
	sort.Strings(out)
	return out
}

// Validator wraps a compiled schema.
type Validator struct {
	schema *gojsonschema.Schema
}

var (
	regMu          sync.RWMutex
	schemaRegistry = map[string]*gojsonschema.Schema{}
)

func compileSchemaBytes(schemaBytes []byte) (*gojsonschema.Schema, error) {
	// Try YAML first; if it parses, convert to canonical JSON bytes for loader
	var tmp any
	if err := yaml.Unmarshal(schemaBytes, &tmp); err == nil {
		// Remove $schema so gojsonschema never tries to fetch the meta-schema
		if isOfflineMode() {
			if m, ok := tmp.(map[string]interface{}); ok {
				delete(m, "$schema")
			}
		}
		jb, jerr := json.Marshal(tmp)
		if jerr != nil {
			return nil, fmt.Errorf("failed to encode schema to JSON: %w", jerr)
		}
		sch, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(jb))
		if err != nil {
			return nil, fmt.Errorf("failed to load schema: %w", err)
		}
		return sch, nil
	}
	sch, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	return sch, nil
}

// NewValidatorFromBytes compiles schema bytes (JSON or YAML) into a reusable validator.
func NewValidatorFromBytes(schemaBytes []byte) (*Validator, error) {
	sch, err := compileSchemaBytes(schemaBytes)
	if err != nil {
		return nil, err
	}
	return &Validator{schema: sch}, nil
}

// NewValidatorFromFS loads a schema from the provided filesystem and path.
func NewValidatorFromFS(fsys fs.FS, schemaPath string) (*Validator, error) {
	data, err := fs.ReadFile(fsys, schemaPath)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", schemaPath, err)
	}
	return NewValidatorFromBytes(data)
}

// GetEmbeddedValidator returns a cached validator for an embedded schema
// such as "pre-commit-config.json".
func GetEmbeddedValidator(name string) (*Validator, error) {
	regMu.RLock()
	sch, ok := schemaRegistry[name]
	regMu.RUnlock()
	if ok {
		return &Validator{schema: sch}, nil
	}

	data, found := assets.GetSchema(name)
	if !found || len(data) == 0 {
		return nil, fmt.Errorf("schema %s not found", name)
	}
	sch, err := compileSchemaBytes(data)
	if err != nil {
		return nil, err
	}

	regMu.Lock()
	schemaRegistry[name] = sch
	regMu.Unlock()
	return &Validator{schema: sch}, nil
}

// Validate applies the compiled schema to the provided data structure.
func (v *Validator) Validate(data interface{}) (*Result, error) {
	if v == nil || v.schema == nil {
		return nil, fmt.Errorf("validator not initialised")
	}
	return validateWithCompiled(v.schema, data)
}

// ValidateBytes parses YAML/JSON bytes and validates them against the compiled schema.
func (v *Validator) ValidateBytes(dataBytes []byte) (*Result, error) {
	if v == nil || v.schema == nil {
		return nil, fmt.Errorf("validator not initialised")
	}
	var data interface{}
	if err := yaml.Unmarshal(dataBytes, &data); err != nil {
		if err := json.Unmarshal(dataBytes, &data); err != nil {
			return nil, fmt.Errorf("failed to parse data bytes (YAML/JSON): %w", err)
		}
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return validateWithCompiled(v.schema, data)
}

// ValidateFile reads a YAML or JSON document and validates it.
func (v *Validator) ValidateFile(path string) (*Result, error) {
	clean, err := safeio.CleanUserPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(clean) // #nosec G304 -- path cleaned above
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", clean, err)
	}
	return v.ValidateBytes(data)
}

// improveErrorMessage rewrites the messages users hit most often.
func improveErrorMessage(path, message string) string {
	if strings.HasPrefix(message, "Additional property ") && strings.HasSuffix(message, " is not allowed") {
		key := strings.TrimSuffix(strings.TrimPrefix(message, "Additional property "), " is not allowed")
		if path == "root" {
			return fmt.Sprintf("unknown option %q", key)
		}
		return fmt.Sprintf("unknown key %q under %s", key, path)
	}
	return message
}

func validateWithCompiled(sch *gojsonschema.Schema, data interface{}) (*Result, error) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode data to JSON: %w", err)
	}
	result, err := sch.Validate(gojsonschema.NewBytesLoader(dataJSON))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	res := &Result{Valid: result.Valid()}
	if !result.Valid() {
		for _, verr := range result.Errors() {
			field := verr.Field()
			if field == "" || field == "(root)" {
				field = "root"
			}
			res.Errors = append(res.Errors, ValidationError{
				Path:    field,
				Message: improveErrorMessage(field, verr.Description()),
			})
		}
	}
	return res, nil
}

// Validate validates data against the named embedded schema.
func Validate(data interface{}, schemaName string) (*Result, error) {
	validator, err := GetEmbeddedValidator(schemaName)
	if err != nil {
		return nil, err
	}
	return validator.Validate(data)
}

// ValidateFromBytes validates data against schema bytes (JSON or YAML).
func ValidateFromBytes(schemaBytes []byte, data interface{}) (*Result, error) {
	v, err := NewValidatorFromBytes(schemaBytes)
	if err != nil {
		return nil, err
	}
	return v.Validate(data)
}
