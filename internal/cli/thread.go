package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/rcliao/story-continuity/internal/model"
	"github.com/rcliao/story-continuity/internal/record"
	"github.com/rcliao/story-continuity/internal/tracker"
	"github.com/spf13/cobra"
)

func init() {
	threadCmd := &cobra.Command{
		Use:   "thread",
		Short: "Manage plot threads",
	}

	addCmd := &cobra.Command{
		Use:   "add [id] [description]",
		Short: "Introduce a plot thread",
		Args:  cobra.MinimumNArgs(2),
		Run:   runThreadAdd,
	}
	addCmd.Flags().Int("chapter", 0, "Chapter the thread is introduced in")

	statusCmd := &cobra.Command{
		Use:   "status [id] [introduced|developed|resolved]",
		Short: "Move a plot thread forward",
		Args:  cobra.ExactArgs(2),
		Run:   runThreadStatus,
	}
	statusCmd.Flags().Int("chapter", 0, "Chapter of the change")

	threadCmd.AddCommand(addCmd, statusCmd)
	RootCmd.AddCommand(threadCmd)
}

func runThreadAdd(cmd *cobra.Command, args []string) {
	chapter, _ := cmd.Flags().GetInt("chapter")
	id := args[0]
	description := strings.Join(args[1:], " ")

	if _, err := currentWorkspace().commit(cmd.Context(), threadAddChange(id, description, chapter)); err != nil {
		exitErr("thread add", err)
	}

	emit(map[string]any{"ok": true, "id": id}, func(w io.Writer) {
		fmt.Fprintf(w, "thread %s introduced\n", id)
	})
}

func runThreadStatus(cmd *cobra.Command, args []string) {
	chapter, _ := cmd.Flags().GetInt("chapter")
	id, status := args[0], model.ThreadStatus(args[1])

	if _, err := currentWorkspace().commit(cmd.Context(), threadStatusChange(id, status, chapter)); err != nil {
		exitErr("thread status", err)
	}

	emit(map[string]any{"ok": true, "id": id, "status": status}, func(w io.Writer) {
		fmt.Fprintf(w, "thread %s is %s\n", id, status)
	})
}

func threadAddChange(id, description string, chapter int) change {
	return change{
		chapter: chapter,
		payload: factsPayload(chapter, record.SectionPlotThreads,
			map[string]any{id: map[string]any{"description": description}}),
		apply: func(tr *tracker.Tracker) error {
			return tr.AddPlotThread(id, description, chapter)
		},
	}
}

func threadStatusChange(id string, status model.ThreadStatus, chapter int) change {
	return change{
		chapter: chapter,
		payload: factsPayload(chapter, record.SectionPlotThreads,
			map[string]any{id: map[string]any{"status": string(status)}}),
		apply: func(tr *tracker.Tracker) error {
			return tr.UpdatePlotThreadStatus(id, status, chapter)
		},
	}
}
