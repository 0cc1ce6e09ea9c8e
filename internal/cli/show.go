package cli

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/rcliao/story-continuity/internal/record"
	"github.com/spf13/cobra"
)

var sections = []string{
	record.SectionCharacters,
	record.SectionPlotThreads,
	record.SectionWorldElements,
	record.SectionTimeline,
	record.SectionSummaries,
}

func init() {
	cmd := &cobra.Command{
		Use:       "show [section]",
		Short:     "Print the record, or one section of it",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: sections,
		Run:       runShow,
	}

	RootCmd.AddCommand(cmd)
}

func runShow(cmd *cobra.Command, args []string) {
	if len(args) == 1 && !slices.Contains(sections, args[0]) {
		exitErr("show", fmt.Errorf("unknown section %q; valid sections: %v", args[0], sections))
	}

	tr, _ := currentWorkspace().load()
	data, err := tr.Record().MarshalJSON()
	if err != nil {
		exitErr("show", err)
	}

	var out any = json.RawMessage(data)
	if len(args) == 1 {
		raw, err := record.Decode(data)
		if err != nil {
			exitErr("show", err)
		}
		v, _ := record.Lookup(raw, args[0])
		out = v
	}
	// The record is JSON either way.
	emit(out, nil)
}
