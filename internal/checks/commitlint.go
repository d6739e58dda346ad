package checks

import (
	"context"
	"os"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

const commitlintConfig = "commitlint.config.js"

// Commitlint removes the local commitlint config.
func Commitlint(_ context.Context, _ *Context) error {
	if !safeio.Exists(commitlintConfig) {
		return nil
	}
	if err := os.Remove(commitlintConfig); err != nil {
		return err
	}
	return executor.Errorf("Remove outdated %s. Commitlint is now configured through https://github.com/ComPWA/commitlint-config.", commitlintConfig)
}
