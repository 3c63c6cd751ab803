package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingoflow/internal/store"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List or regenerate the active scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		return scenariosListCmd.RunE(cmd, args)
	},
}

var scenariosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		list, err := st.ScenarioRepo().List(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No active scenarios. Run `lingoflow scenarios generate`.")
			return nil
		}
		printScenarios(list)
		return nil
	},
}

var scenariosGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Replace the active scenarios with a freshly generated batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := build(cmd, buildOpts{})
		if err != nil {
			return err
		}
		defer rt.Close()

		list, err := rt.catalog.Regenerate(cmd.Context())
		if err != nil {
			return err
		}
		printScenarios(list)
		return nil
	},
}

var scenariosRetireCmd = &cobra.Command{
	Use:   "retire <scenario-id>",
	Short: "Remove a scenario and its live conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := build(cmd, buildOpts{})
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.conversations.Retire(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Retired %s.\n", args[0])
		return nil
	},
}

func printScenarios(list []store.Scenario) {
	fmt.Printf("%-24s  %-28s  %s\n", "ID", "Setting", "Goal")
	fmt.Println(strings.Repeat("─", 90))
	for _, s := range list {
		fmt.Printf("%-24s  %-28s  %s\n", truncate(s.ID, 24), truncate(s.Setting, 28), s.Goal)
	}
}

func init() {
	scenariosCmd.AddCommand(scenariosListCmd)
	scenariosCmd.AddCommand(scenariosGenerateCmd)
	scenariosCmd.AddCommand(scenariosRetireCmd)
}
