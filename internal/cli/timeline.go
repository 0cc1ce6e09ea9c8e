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
		Use:   "timeline [description]",
		Short: "Record a timeline event",
		Args:  cobra.MinimumNArgs(1),
		Run:   runTimeline,
	}

	cmd.Flags().Int("chapter", 0, "Chapter the event is told in")
	cmd.Flags().String("story-time", "", "When the event happens in story time, e.g. \"day 3, dusk\"")
	cmd.Flags().Int("order", 0, "Position in story-time order within the chapter")

	RootCmd.AddCommand(cmd)
}

func runTimeline(cmd *cobra.Command, args []string) {
	chapter, _ := cmd.Flags().GetInt("chapter")
	storyTime, _ := cmd.Flags().GetString("story-time")
	description := strings.Join(args, " ")

	var order *int
	if cmd.Flags().Changed("order") {
		n, _ := cmd.Flags().GetInt("order")
		order = &n
	}

	if _, err := currentWorkspace().commit(cmd.Context(), timelineChange(description, chapter, storyTime, order)); err != nil {
		exitErr("timeline", err)
	}

	emit(map[string]any{"ok": true, "chapter": chapter}, func(w io.Writer) {
		fmt.Fprintf(w, "event recorded in chapter %d\n", chapter)
	})
}

func timelineChange(description string, chapter int, storyTime string, order *int) change {
	ev := map[string]any{"description": description, "chapter": chapter, "story_time": storyTime}
	if order != nil {
		ev["story_order"] = *order
	}
	return change{
		chapter: chapter,
		payload: factsPayload(chapter, record.SectionTimeline, []any{ev}),
		apply: func(tr *tracker.Tracker) error {
			return tr.AddTimelineEvent(description, chapter, storyTime, order)
		},
	}
}
