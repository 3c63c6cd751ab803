package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse completed conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyListCmd.RunE(cmd, args)
	},
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List completed conversations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		list, err := st.ConversationRepo().ListCompleted(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No completed conversations yet.")
			return nil
		}

		fmt.Printf("%-5s  %-16s  %-12s  %-24s  %s\n", "ID", "Finished", "Language", "Scenario", "Summary")
		fmt.Println(strings.Repeat("─", 80))
		for _, c := range list {
			summary := "-"
			if c.Summary != nil {
				summary = "yes"
			}
			fmt.Printf("%-5d  %-16s  %-12s  %-24s  %s\n",
				c.ID, c.Timestamp.Local().Format("2006-01-02 15:04"), truncate(c.PracticeLanguage, 12),
				truncate(c.ScenarioID, 24), summary)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a conversation with its summary, generating the summary when missing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseHistoryID(args[0])
		if err != nil {
			return err
		}

		rt, err := build(cmd, buildOpts{})
		if err != nil {
			return err
		}
		defer rt.Close()

		d, err := rt.conversations.History(cmd.Context(), id)
		if err != nil {
			return err
		}

		fmt.Printf("ID:        %d\n", d.ID)
		fmt.Printf("Scenario:  %s\n", d.ScenarioID)
		fmt.Printf("Language:  %s\n", d.PracticeLanguage)
		fmt.Printf("Model:     %s\n", d.Model)
		fmt.Printf("Started:   %s\n", d.Timestamp.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Completed: %v\n", d.Completed)

		sep := strings.Repeat("─", 60)
		fmt.Println()
		fmt.Println(sep)
		for _, m := range d.Messages {
			fmt.Printf("%-4s %s\n", m.Speaker+":", m.Content)
		}
		fmt.Println(sep)

		if d.Completed {
			summary, err := rt.conversations.Summary(cmd.Context(), id)
			if err != nil {
				summary = "(unavailable: " + err.Error() + ")"
			}
			fmt.Println("SUMMARY")
			fmt.Println(summary)
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseHistoryID(args[0])
		if err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.ConversationRepo().Delete(cmd.Context(), id); err != nil {
			return fmt.Errorf("delete conversation %d: %w", id, err)
		}
		fmt.Printf("Deleted conversation %d.\n", id)
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every completed conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !confirm("Delete all completed conversations?") {
			fmt.Println("Aborted.")
			return nil
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.ConversationRepo().DeleteCompleted(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d conversations.\n", n)
		return nil
	},
}

func parseHistoryID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid history id %q", s)
	}
	return id, nil
}

// confirm asks a yes/no question on stdin.
func confirm(question string) bool {
	fmt.Printf("%s [y/N] ", question)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func init() {
	historyClearCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
}
