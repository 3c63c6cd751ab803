package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/abhisek/lingoflow/internal/config"
	"github.com/abhisek/lingoflow/internal/store"
)

var (
	v   = config.New()
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lingoflow",
	Short: "Conversation practice for language learners",
	Long:  "LingoFlow - role-play everyday scenarios with a local or hosted language model until you reach the goal.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		loaded, err := config.Load(v)
		if err != nil {
			return fmt.Errorf("configuration: %w", err)
		}
		cfg = loaded
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("db", "", "Path to SQLite database file (overrides LINGOFLOW_DB)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-file", "", "Write logs to this file instead of stderr")
	bindFlags(v, flags.Lookup("db"), flags.Lookup("log-level"), flags.Lookup("log-file"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(hintCmd)
	rootCmd.AddCommand(abandonCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the configured database path (flag, then
// LINGOFLOW_DB), falling back to the default XDG path.
func resolveDBPath() (string, error) {
	if p := cfg.DBPath; p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// bindFlags lets a flag override the viper key of the same name when set.
func bindFlags(v *viper.Viper, flags ...*pflag.Flag) {
	for _, f := range flags {
		if err := v.BindPFlag(f.Name, f); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", f.Name, err))
		}
	}
}
