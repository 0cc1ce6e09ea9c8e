package cli

import (
	"fmt"
	"io"

	"github.com/rcliao/story-continuity/internal/persist"
	"github.com/rcliao/story-continuity/internal/record"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the record file and report how it loads",
		Long: "Load the record the way every command does and report whether it came from the " +
			"file, a backup or an empty fallback, with every dropped entry. Nothing is written.",
		Run: runCheck,
	}

	RootCmd.AddCommand(cmd)
}

type checkResult struct {
	Path                  string           `json:"path"`
	State                 persist.State    `json:"state"`
	Source                string           `json:"source,omitempty"`
	RecoveredWithDataLoss bool             `json:"recovered_with_data_loss"`
	Warnings              []record.Warning `json:"warnings"`
	Failures              []string         `json:"failures"`
}

func runCheck(cmd *cobra.Command, args []string) {
	ws := currentWorkspace()
	_, res := ws.load()

	out := checkResult{
		Path:                  ws.path(),
		State:                 res.State,
		Source:                res.Source,
		RecoveredWithDataLoss: res.RecoveredWithDataLoss,
		Warnings:              res.Warnings,
		Failures:              []string{},
	}
	if out.Warnings == nil {
		out.Warnings = []record.Warning{}
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, f.Error())
	}

	emit(out, func(w io.Writer) {
		fmt.Fprintf(w, "%s: %s", out.Path, out.State)
		if out.Source != "" && out.Source != out.Path {
			fmt.Fprintf(w, " from %s", out.Source)
		}
		fmt.Fprintln(w)
		for _, f := range out.Failures {
			fmt.Fprintf(w, "failed: %s\n", f)
		}
		for _, wn := range out.Warnings {
			fmt.Fprintf(w, "warning: %s\n", wn)
		}
	})
}
