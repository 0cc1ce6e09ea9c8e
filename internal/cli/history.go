package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/rcliao/story-continuity/internal/digest"
	"github.com/rcliao/story-continuity/internal/journal"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List facts payloads applied to the work, newest first",
		Run:   runHistory,
	}

	cmd.Flags().Int("chapter", 0, "Only payloads for this chapter")
	cmd.Flags().StringP("query", "q", "", "Only payloads containing this text")
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Bool("all-works", false, "Include every work in the journal")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	chapter, _ := cmd.Flags().GetInt("chapter")
	query, _ := cmd.Flags().GetString("query")
	limit, _ := cmd.Flags().GetInt("limit")
	allWorks, _ := cmd.Flags().GetBool("all-works")

	j, err := currentWorkspace().openJournal()
	if err != nil {
		exitErr("open journal", err)
	}
	defer j.Close()

	p := journal.ListParams{Work: cfg.Work, Chapter: chapter, Query: query, Limit: limit}
	if allWorks {
		p.Work = ""
	}
	entries, err := j.List(cmd.Context(), p)
	if err != nil {
		exitErr("history", err)
	}
	if entries == nil {
		entries = []journal.Entry{}
	}

	emit(entries, func(w io.Writer) {
		for _, e := range entries {
			fmt.Fprintf(w, "%s  %s  ch %d  %s\n",
				e.CreatedAt.Local().Format(time.DateTime), e.Work, e.Chapter, digest.OneLine(string(e.Payload), 80))
			for _, wn := range e.Warnings {
				fmt.Fprintf(w, "    warning: %s\n", wn)
			}
		}
	})
}
