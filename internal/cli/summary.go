package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rcliao/story-continuity/internal/tracker"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "summary [chapter] [text]",
		Short: "Record a chapter summary",
		Long:  "Record a chapter summary. Text can be positional args or piped via stdin.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSummary,
	}

	cmd.Flags().Int("words", 0, "Chapter word count (default: counted from the summary)")

	RootCmd.AddCommand(cmd)
}

func runSummary(cmd *cobra.Command, args []string) {
	words, _ := cmd.Flags().GetInt("words")

	chapter, err := strconv.Atoi(args[0])
	if err != nil {
		exitErr("summary", fmt.Errorf("chapter %q is not a number", args[0]))
	}

	var text string
	if len(args) > 1 {
		text = strings.Join(args[1:], " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			text = string(b)
		}
	}

	if _, err := currentWorkspace().commit(cmd.Context(), summaryChange(chapter, text, words)); err != nil {
		exitErr("summary", err)
	}

	emit(map[string]any{"ok": true, "chapter": chapter}, func(w io.Writer) {
		fmt.Fprintf(w, "summary for chapter %d recorded\n", chapter)
	})
}

func summaryChange(chapter int, text string, words int) change {
	return change{
		chapter: chapter,
		payload: factsPayload(chapter, "summary", map[string]any{"text": text, "word_count": words}),
		apply: func(tr *tracker.Tracker) error {
			return tr.AddChapterSummary(chapter, text, words)
		},
	}
}
