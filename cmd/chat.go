package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingoflow/internal/conversation"
)

var chatCmd = &cobra.Command{
	Use:   "chat <scenario-id> <message>...",
	Short: "Send one message in a scenario and print the reply",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := build(cmd, buildOpts{})
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.conversations.Turn(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}

		fmt.Println(res.Reply)
		if res.Status == conversation.StatusReached {
			fmt.Println()
			fmt.Println("Goal reached!")
			if res.Summary != nil {
				fmt.Println()
				fmt.Println(*res.Summary)
			}
			if rt.replenisher == nil {
				// Without the background worker, top the catalog back up inline.
				if _, err := rt.catalog.Replenish(cmd.Context(), 1); err != nil {
					rt.log.Sugar().Warnf("replace completed scenario: %v", err)
				}
			}
		}
		return nil
	},
}

var hintCmd = &cobra.Command{
	Use:   "hint <scenario-id>",
	Short: "Suggest what to say next in a scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := build(cmd, buildOpts{})
		if err != nil {
			return err
		}
		defer rt.Close()

		hint, err := rt.conversations.Hint(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(hint)
		return nil
	},
}

var abandonCmd = &cobra.Command{
	Use:   "abandon <scenario-id>",
	Short: "Drop the live conversation of a scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := build(cmd, buildOpts{})
		if err != nil {
			return err
		}
		defer rt.Close()

		return rt.conversations.Abandon(cmd.Context(), args[0])
	},
}
