package cmd

import "testing"

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	want := []string{"ask", "save", "notes", "relations", "serve", "mcp", "version"}

	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}

	for _, name := range want {
		if !registered[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "json-logs", "verbose"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag %q not registered", name)
		}
	}
}

func TestNotesCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range notesCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show"} {
		if !names[name] {
			t.Errorf("notes subcommand %q not registered", name)
		}
	}
}

func TestRelationsCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range relationsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "add", "rm", "suggest"} {
		if !names[name] {
			t.Errorf("relations subcommand %q not registered", name)
		}
	}
}
