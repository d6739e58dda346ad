package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fulmenhq/repopolicy/pkg/exitcode"
	"github.com/spf13/cobra"
)

// execRoot runs a fresh command tree with args and returns its output.
func execRoot(t *testing.T, args []string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	registerSubcommands(cmd)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func loggerFlags(level string, json, noColor, noOp bool) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("log-level", level, "")
	cmd.Flags().Bool("json", json, "")
	cmd.Flags().Bool("no-color", noColor, "")
	cmd.Flags().Bool("no-op", noOp, "")
	return cmd
}

func TestInitializeLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		json    bool
		noColor bool
		noOp    bool
	}{
		{"default", "info", false, false, false},
		{"debug", "debug", false, false, false},
		{"invalid level falls back to info", "invalid", false, false, false},
		{"json", "info", true, false, false},
		{"no color", "info", false, true, false},
		{"no-op", "info", false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// This should not panic
			initializeLogger(loggerFlags(tt.level, tt.json, tt.noColor, tt.noOp))
		})
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(nil); got != exitcode.Success {
		t.Errorf("exitCode(nil) = %d", got)
	}
	if got := exitCode(errors.New("boom")); got != exitcode.GeneralError {
		t.Errorf("plain errors should map to GeneralError, got %d", got)
	}
	wrapped := &exitError{code: exitcode.ConfigError, err: errors.New("bad file")}
	if got := exitCode(wrapped); got != exitcode.ConfigError {
		t.Errorf("exitCode() = %d, expected ConfigError", got)
	}
	if wrapped.Error() != "bad file" {
		t.Errorf("unexpected message %q", wrapped.Error())
	}
	bare := &exitError{code: exitcode.PoliciesViolated}
	if bare.Error() != "Policy violations found" {
		t.Errorf("unexpected message %q", bare.Error())
	}
}

func TestRootCmd_VersionIsSet(t *testing.T) {
	if rootCmd.Version == "" {
		t.Error("rootCmd.Version should not be empty")
	}
}

func TestRootCmd_Help(t *testing.T) {
	output, err := execRoot(t, []string{"--help"})
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	if !strings.Contains(output, "Repopolicy keeps the developer configuration") {
		t.Error("Help output should contain the description")
	}
	policy := strings.Index(output, "Policy Commands:")
	support := strings.Index(output, "Support Commands:")
	if policy < 0 || support < policy {
		t.Fatalf("Help output should list policy commands before support commands:\n%s", output)
	}
	if !strings.Contains(output[policy:support], "check-dev-files  Check and fix developer configuration files") {
		t.Error("check-dev-files should be listed under policy commands")
	}
	if !strings.Contains(output[support:], "version") {
		t.Error("version should be listed under support commands")
	}
}

func TestRootCmd_VersionFlag(t *testing.T) {
	output, err := execRoot(t, []string{"--version"})
	if err != nil {
		t.Errorf("Version flag failed: %v", err)
	}
	if !strings.HasPrefix(output, "repopolicy ") {
		t.Errorf("Version output should start with 'repopolicy', got %q", output)
	}
}

func TestRootCmd_InvalidFlag(t *testing.T) {
	if _, err := execRoot(t, []string{"--invalid-flag"}); err == nil {
		t.Error("Invalid flag should return an error")
	}
}

func TestRegisteredCommands(t *testing.T) {
	for _, name := range []string{"check-dev-files", "format-cfg", "list-checks", "version"} {
		if _, _, err := rootCmd.Find([]string{name}); err != nil {
			t.Errorf("command %s is not registered: %v", name, err)
		}
	}
}
