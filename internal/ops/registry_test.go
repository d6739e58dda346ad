/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package ops

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestRegister_AssignsGroups(t *testing.T) {
	root := &cobra.Command{Use: "repopolicy"}
	Register(root, GroupNeat,
		&cobra.Command{Use: "format-cfg", Run: func(*cobra.Command, []string) {}},
		&cobra.Command{Use: "check-dev-files", Run: func(*cobra.Command, []string) {}},
	)
	Register(root, GroupSupport, &cobra.Command{Use: "version", Run: func(*cobra.Command, []string) {}})

	if !root.ContainsGroup("neat") || !root.ContainsGroup("support") {
		t.Fatalf("expected both groups on root, got %v", root.Groups())
	}
	if len(root.Groups()) != 2 {
		t.Errorf("groups must be added once, got %d", len(root.Groups()))
	}
	if root.Groups()[0].Title != "Policy Commands:" {
		t.Errorf("unexpected title %q", root.Groups()[0].Title)
	}

	neat := CommandsInGroup(root, GroupNeat)
	if len(neat) != 2 || neat[0].Name() != "check-dev-files" || neat[1].Name() != "format-cfg" {
		t.Errorf("unexpected neat commands %v", neat)
	}
	if support := CommandsInGroup(root, GroupSupport); len(support) != 1 || support[0].GroupID != "support" {
		t.Errorf("unexpected support commands %v", support)
	}
}

func TestCommandsInGroup_SkipsHidden(t *testing.T) {
	root := &cobra.Command{Use: "repopolicy"}
	Register(root, GroupSupport,
		&cobra.Command{Use: "version", Run: func(*cobra.Command, []string) {}},
		&cobra.Command{Use: "debug-dump", Hidden: true, Run: func(*cobra.Command, []string) {}},
	)
	if got := CommandsInGroup(root, GroupSupport); len(got) != 1 || got[0].Name() != "version" {
		t.Errorf("hidden commands must not be listed, got %v", got)
	}
	if got := CommandsInGroup(root, GroupNeat); len(got) != 0 {
		t.Errorf("expected empty group, got %v", got)
	}
}

func TestGroupTitles(t *testing.T) {
	for _, g := range Groups {
		if g.Title() == "" {
			t.Errorf("group %s has no title", g)
		}
	}
	if got := CommandGroup("extra").Title(); got != "extra:" {
		t.Errorf("unexpected fallback title %q", got)
	}
}
