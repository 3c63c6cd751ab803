package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingoflow/internal/store"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change learner settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsShowCmd.RunE(cmd, args)
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		s, err := st.SettingsRepo().Get(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(s)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change one or more settings",
	Example: `  lingoflow settings set --practice-language Spanish --ui-language English
  lingoflow settings set --model llama3.2:3b`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch store.SettingsPatch
		patch.Theme, _ = cmd.Flags().GetString("theme")
		patch.Model, _ = cmd.Flags().GetString("model")
		patch.PracticeLanguage, _ = cmd.Flags().GetString("practice-language")
		patch.UILanguage, _ = cmd.Flags().GetString("ui-language")
		if patch.IsEmpty() {
			return fmt.Errorf("nothing to change; pass at least one flag")
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.SettingsRepo().Update(cmd.Context(), patch, 0); err != nil {
			return err
		}
		s, err := st.SettingsRepo().Get(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(s)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	f := settingsSetCmd.Flags()
	f.String("theme", "", "UI theme (light or dark)")
	f.String("model", "", "Model used for new conversations")
	f.String("practice-language", "", "Language to practice")
	f.String("ui-language", "", "Language for hints and summaries")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}
