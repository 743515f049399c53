package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/pcibx/pkg/script"
)

func newScriptCommand() *cobra.Command {
	scriptCmd := &cobra.Command{
		Use:   "script",
		Short: "Work with command scripts",
	}

	checkCmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Parse scripts and list their commands without touching the board",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runScriptCheck,
	}
	scriptCmd.AddCommand(checkCmd)
	return scriptCmd
}

func runScriptCheck(cmd *cobra.Command, args []string) error {
	parser, err := script.NewParser()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, path := range args {
		cmds, err := parser.ParseFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d command(s)\n", path, len(cmds))
		for i, c := range cmds {
			fmt.Fprintf(out, "  %3d  %-18s %s\n", i+1, c, c.Kind.Usage())
		}
	}
	return nil
}
