package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models offered by the generation backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := build(cmd, buildOpts{quiet: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		models := rt.generation.ListModels(cmd.Context())
		if len(models) == 0 {
			fmt.Println("No models available. Is the backend running?")
			return nil
		}

		fmt.Printf("%-40s  %s\n", "Model", "Size")
		fmt.Println(strings.Repeat("─", 52))
		for _, m := range models {
			fmt.Printf("%-40s  %s\n", truncate(m.Name, 40), m.ParameterSize)
		}
		return nil
	},
}
