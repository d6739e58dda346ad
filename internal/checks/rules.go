package checks

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/match"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/rules"
	"github.com/fulmenhq/repopolicy/pkg/logger"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// Rules evaluates the Rego policies of the policies directory. Every deny
// message is reported as is.
func Rules(ctx context.Context, c *Context) error {
	engine := rules.NewEngine()
	if err := engine.LoadDir(c.Options.PoliciesDir); err != nil {
		return err
	}
	if engine.Len() == 0 {
		return nil
	}
	input, err := policyInput(c)
	if err != nil {
		return err
	}
	messages, err := engine.Evaluate(ctx, input)
	if err != nil {
		return err
	}
	logger.Debug("evaluated policies", logger.Int("modules", engine.Len()), logger.Int("violations", len(messages)))
	do := executor.New()
	for _, msg := range messages {
		msg := msg
		if err := do.Do(func() error { return executor.NewPrecommitError(msg) }); err != nil {
			return err
		}
	}
	return do.Finalize()
}

// policyInput is the document policies see as input.
func policyInput(c *Context) (map[string]any, error) {
	files := match.RepoFiles()
	if files == nil {
		files = []string{}
	}
	input := map[string]any{
		"files":     files,
		"precommit": nil,
		"pyproject": nil,
	}
	if safeio.Exists(project.Pyproject) {
		pyp, err := pyproject.Load(project.Pyproject)
		if err != nil {
			return nil, err
		}
		input["pyproject"] = map[string]any(pyp.Document())
	}
	if c.Precommit != nil {
		src, err := c.Precommit.Dumps()
		if err != nil {
			return nil, err
		}
		var doc map[string]any
		if err := yaml.Unmarshal(src, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", project.Precommit, err)
		}
		input["precommit"] = doc
	}
	return input, nil
}
