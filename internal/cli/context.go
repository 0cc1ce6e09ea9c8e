package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/rcliao/story-continuity/internal/assembler"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [chapter]",
		Short: "Assemble the continuity context for writing a chapter",
		Long: "Select open threads, recent characters, world elements, earlier summaries and " +
			"recent events recorded before the chapter. JSON output is structured; text output " +
			"is markdown packed into the byte budget.",
		Args: cobra.ExactArgs(1),
		Run:  runContext,
	}

	cmd.Flags().IntP("items", "n", 0, "Max characters and events (default: context_items from config)")
	cmd.Flags().IntP("budget", "b", -1, "Max bytes of text output, 0 for no limit (default: context_budget from config)")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	items, _ := cmd.Flags().GetInt("items")
	budget, _ := cmd.Flags().GetInt("budget")
	if items <= 0 {
		items = cfg.ContextItems
	}
	if budget < 0 {
		budget = cfg.ContextBudget
	}

	chapter, err := strconv.Atoi(args[0])
	if err != nil || chapter <= 0 {
		exitErr("context", fmt.Errorf("chapter %q must be a positive number", args[0]))
	}

	tr, _ := currentWorkspace().load()
	ctx := assembler.Build(tr.Record(), chapter, items)

	emit(ctx, func(w io.Writer) {
		fmt.Fprintln(w, assembler.Render(ctx, budget))
	})
}
