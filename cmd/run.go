package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/lingoflow/internal/app"
)

// runApp builds the services and launches the TUI.
func runApp(cmd *cobra.Command) error {
	rt, err := build(cmd, buildOpts{quiet: true, replenish: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	return app.Run(app.Options{
		Settings:      rt.store.SettingsRepo(),
		Catalog:       rt.catalog,
		Conversations: rt.conversations,
	})
}
