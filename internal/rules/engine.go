// Package rules evaluates user supplied Rego policies against a snapshot of
// the repository configuration.
package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// Query is the rule set every policy contributes to.
const Query = "data.repopolicy.deny"

// Engine holds the loaded policy modules.
type Engine struct {
	modules map[string]string
}

// NewEngine creates an engine without policies.
func NewEngine() *Engine {
	return &Engine{modules: map[string]string{}}
}

// Len reports the number of loaded modules.
func (e *Engine) Len() int { return len(e.modules) }

// LoadModule registers Rego source under name.
func (e *Engine) LoadModule(name, source string) {
	e.modules[name] = source
}

// LoadDir loads every *.rego file in dir. A missing directory loads nothing.
func (e *Engine) LoadDir(dir string) error {
	clean, err := safeio.CleanUserPath(dir)
	if err != nil {
		return err
	}
	if !safeio.IsDir(clean) {
		return nil
	}
	paths, err := filepath.Glob(filepath.Join(clean, "*.rego"))
	if err != nil {
		return fmt.Errorf("list policies: %w", err)
	}
	for _, path := range paths {
		data, err := os.ReadFile(path) // #nosec G304 -- policy files inside the project policy directory
		if err != nil {
			return fmt.Errorf("failed to read policy file: %w", err)
		}
		e.LoadModule(filepath.Base(path), string(data))
	}
	return nil
}

// Evaluate runs the deny query and returns its messages sorted.
func (e *Engine) Evaluate(ctx context.Context, input any) ([]string, error) {
	if len(e.modules) == 0 {
		return nil, nil
	}
	opts := []func(*rego.Rego){rego.Query(Query), rego.Input(input)}
	names := make([]string, 0, len(e.modules))
	for name := range e.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, rego.Module(name, e.modules[name]))
	}
	rs, err := rego.New(opts...).Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluate policies: %w", err)
	}

	var messages []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			items, ok := expr.Value.([]any)
			if !ok {
				continue
			}
			for _, item := range items {
				messages = append(messages, fmt.Sprint(item))
			}
		}
	}
	sort.Strings(messages)
	return messages, nil
}
