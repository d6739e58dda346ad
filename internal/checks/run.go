package checks

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/match"
	"github.com/fulmenhq/repopolicy/internal/precommit"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/pkg/config"
	"github.com/fulmenhq/repopolicy/pkg/logger"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// RunOptions tune a Run.
type RunOptions struct {
	// Only restricts the run to the named checks. Empty runs all.
	Only []string
	// Output receives the merged messages; nil discards them.
	Output io.Writer
}

// NewContext prepares the shared state of a run in the working directory.
func NewContext(opts *config.Options) (*Context, error) {
	c := &Context{Options: opts}
	if safeio.Exists(project.Precommit) {
		pc, err := precommit.Load(project.Precommit)
		if err != nil {
			return nil, err
		}
		c.Precommit = pc
	} else {
		logger.Debug("no pre-commit config, hook checks are skipped")
	}
	c.HasNotebooks = len(match.FilterFiles([]string{"*.ipynb"}, nil)) > 0
	return c, nil
}

// Run executes the enabled checks in registry order and returns every
// reported message. A non-nil error means a check failed operationally.
func Run(ctx context.Context, opts *config.Options, ro RunOptions) ([]string, error) {
	for _, name := range ro.Only {
		if _, ok := Find(name); !ok {
			return nil, fmt.Errorf("unknown check %q", name)
		}
	}
	c, err := NewContext(opts)
	if err != nil {
		return nil, err
	}
	out := ro.Output
	if out == nil {
		out = io.Discard
	}
	do := executor.New(executor.WithRaiseException(false), executor.WithOutput(out))
	for _, ch := range Registry {
		if len(ro.Only) > 0 && !slices.Contains(ro.Only, ch.Name) {
			continue
		}
		if !ch.IsEnabled(c) {
			logger.Debug("skipping check", logger.String("check", ch.Name))
			continue
		}
		if err := ctx.Err(); err != nil {
			return do.ErrorMessages(), err
		}
		logger.Debug("running check", logger.String("check", ch.Name))
		ch := ch
		if err := do.Do(func() error { return ch.Run(ctx, c) }); err != nil {
			return do.ErrorMessages(), fmt.Errorf("check %s: %w", ch.Name, err)
		}
	}
	if c.Precommit != nil {
		if err := do.Do(func() error { return c.Precommit.Finalize(ctx) }); err != nil {
			return do.ErrorMessages(), err
		}
	}
	messages := do.ErrorMessages()
	if err := do.Finalize(); err != nil {
		return messages, err
	}
	return messages, nil
}
