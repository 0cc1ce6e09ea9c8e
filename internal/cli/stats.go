package cli

import (
	"fmt"
	"io"

	"github.com/rcliao/story-continuity/internal/journal"
	"github.com/rcliao/story-continuity/internal/persist"
	"github.com/rcliao/story-continuity/internal/record"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show record and journal statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

// RecordStats holds per-section counts of a record.
type RecordStats struct {
	Path           string        `json:"path"`
	State          persist.State `json:"state"`
	Capacity       int           `json:"capacity"`
	Characters     int           `json:"characters"`
	PlotThreads    int           `json:"plot_threads"`
	OpenThreads    int           `json:"open_threads"`
	WorldElements  int           `json:"world_elements"`
	TimelineEvents int           `json:"timeline_events"`
	Summaries      int           `json:"chapter_summaries"`
	Backups        int           `json:"backups"`
}

func recordStats(rec *record.Record, path string, state persist.State) RecordStats {
	st := RecordStats{
		Path:           path,
		State:          state,
		Capacity:       rec.Capacity(),
		Characters:     rec.Characters.Len(),
		PlotThreads:    rec.PlotThreads.Len(),
		WorldElements:  rec.WorldElements.Len(),
		TimelineEvents: rec.TimelineLen(),
		Summaries:      rec.Summaries.Len(),
	}
	for _, th := range rec.PlotThreads.Items() {
		if th.Open() {
			st.OpenThreads++
		}
	}
	if backups, err := persist.Backups(path); err == nil {
		st.Backups = len(backups)
	}
	return st
}

func runStats(cmd *cobra.Command, args []string) {
	ws := currentWorkspace()
	tr, res := ws.load()

	out := struct {
		Record  RecordStats    `json:"record"`
		Journal *journal.Stats `json:"journal,omitempty"`
	}{Record: recordStats(tr.Record(), ws.path(), res.State)}

	j, err := ws.openJournal()
	if err != nil {
		exitErr("open journal", err)
	}
	defer j.Close()
	out.Journal, err = j.Stats(cmd.Context(), cfg.JournalPath())
	if err != nil {
		exitErr("stats", err)
	}

	emit(out, func(w io.Writer) {
		r := out.Record
		fmt.Fprintf(w, "%s (%s)\n", r.Path, r.State)
		fmt.Fprintf(w, "  characters %d, threads %d (%d open), world %d, events %d, summaries %d, backups %d\n",
			r.Characters, r.PlotThreads, r.OpenThreads, r.WorldElements, r.TimelineEvents, r.Summaries, r.Backups)
		fmt.Fprintf(w, "journal %s: %d entries\n", out.Journal.DBPath, out.Journal.TotalEntries)
		for _, wk := range out.Journal.Works {
			fmt.Fprintf(w, "  %s: %d entries, %d chapters, last chapter %d\n", wk.Work, wk.Entries, wk.Chapters, wk.LastChapter)
		}
	})
}
