/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fulmenhq/repopolicy/internal/cfg"
	"github.com/fulmenhq/repopolicy/pkg/exitcode"
	"github.com/fulmenhq/repopolicy/pkg/logger"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
	"github.com/spf13/cobra"
)

const setupCfg = "setup.cfg"

func newFormatCfgCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "format-cfg [files...]",
		Short: "Format INI configuration files",
		Long: `Normalise whitespace in INI configuration files: tabs become four spaces,
inline comments get two spaces in front, trailing whitespace and repeated
blank lines are removed. Version constraints in setup.cfg are tightened to
"pkg >=1.0". Without arguments, setup.cfg is formatted if it exists.`,
		RunE: runFormatCfg,
	}
}

func runFormatCfg(cmd *cobra.Command, args []string) error {
	files := args
	if len(files) == 0 && safeio.Exists(setupCfg) {
		files = []string{setupCfg}
	}
	changedCount := 0
	for _, file := range files {
		var rules []cfg.Rule
		if filepath.Base(file) == setupCfg {
			rules = append(rules, cfg.FormatVersionConstraints)
		}
		changed, err := cfg.FormatFile(file, rules...)
		if err != nil {
			return &exitError{code: exitcode.FileSystemError, err: err}
		}
		if changed {
			changedCount++
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Formatted %s\n", file)
		}
	}
	logger.Debug("format-cfg finished", logger.Int("files", len(files)), logger.Int("formatted", changedCount))
	if changedCount > 0 {
		return &exitError{code: exitcode.GeneralError}
	}
	return nil
}
