package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/rcliao/story-continuity/internal/record"
	"github.com/rcliao/story-continuity/internal/tracker"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "world [id] [description]",
		Short: "Add or extend a world element",
		Long:  "Add a world element, or append to the description of an existing one.",
		Args:  cobra.MinimumNArgs(2),
		Run:   runWorld,
	}

	cmd.Flags().Int("chapter", 0, "Chapter the element appears in")
	cmd.Flags().String("category", "", "Category, e.g. location, magic, culture")

	RootCmd.AddCommand(cmd)
}

func runWorld(cmd *cobra.Command, args []string) {
	chapter, _ := cmd.Flags().GetInt("chapter")
	category, _ := cmd.Flags().GetString("category")
	id := args[0]
	description := strings.Join(args[1:], " ")

	warnings, err := currentWorkspace().commit(cmd.Context(), worldChange(id, category, description, chapter))
	if err != nil {
		exitErr("world", err)
	}

	emit(map[string]any{"ok": true, "id": id, "warnings": warnings}, func(w io.Writer) {
		fmt.Fprintf(w, "world element %s recorded\n", id)
		for _, wn := range warnings {
			fmt.Fprintf(w, "warning: %s\n", wn)
		}
	})
}

func worldChange(id, category, description string, chapter int) change {
	return change{
		chapter: chapter,
		payload: factsPayload(chapter, record.SectionWorldElements,
			map[string]any{id: map[string]any{"category": category, "description": description}}),
		apply: func(tr *tracker.Tracker) error {
			return tr.AddWorldElement(id, category, description, chapter)
		},
	}
}
