/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package ops

import (
	"github.com/spf13/cobra"
)

// CommandGroup is the help section a command is listed under
type CommandGroup string

const (
	GroupNeat    CommandGroup = "neat"    // check-dev-files, format-cfg
	GroupSupport CommandGroup = "support" // list-checks, version
)

// Groups lists the help sections in display order
var Groups = []CommandGroup{GroupNeat, GroupSupport}

// Title returns the help heading of the group
func (g CommandGroup) Title() string {
	switch g {
	case GroupNeat:
		return "Policy Commands:"
	case GroupSupport:
		return "Support Commands:"
	default:
		return string(g) + ":"
	}
}

// Register adds subcommands to root under group, creating the cobra group
// on first use
func Register(root *cobra.Command, group CommandGroup, subs ...*cobra.Command) {
	if !root.ContainsGroup(string(group)) {
		root.AddGroup(&cobra.Group{ID: string(group), Title: group.Title()})
	}
	for _, sub := range subs {
		sub.GroupID = string(group)
		root.AddCommand(sub)
	}
}

// CommandsInGroup returns the available subcommands of root in group, in
// the order cobra lists them
func CommandsInGroup(root *cobra.Command, group CommandGroup) []*cobra.Command {
	var out []*cobra.Command
	for _, c := range root.Commands() {
		if c.GroupID == string(group) && c.IsAvailableCommand() {
			out = append(out, c)
		}
	}
	return out
}
