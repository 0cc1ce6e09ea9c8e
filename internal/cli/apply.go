package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "apply [file]",
		Short: "Merge a chapter's extracted facts into the record",
		Long: "Merge a facts payload (JSON or YAML, from a file or stdin) into the record and " +
			"append it to the journal. Malformed parts are dropped with warnings; rejected " +
			"plot thread transitions are listed but do not stop the rest of the payload.",
		Args: cobra.MaximumNArgs(1),
		Run:  runApply,
	}

	cmd.Flags().Int("chapter", 0, "Chapter number (overrides the payload)")

	RootCmd.AddCommand(cmd)
}

func runApply(cmd *cobra.Command, args []string) {
	chapter, _ := cmd.Flags().GetInt("chapter")

	var (
		data []byte
		err  error
	)
	if len(args) > 0 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read payload", err)
	}

	res, err := currentWorkspace().apply(cmd.Context(), data, chapter)
	if err != nil {
		exitErr("apply", err)
	}

	emit(res, func(w io.Writer) {
		fmt.Fprintf(w, "chapter %d: %d characters, %d threads, %d world elements, %d events",
			res.Chapter, res.Characters, res.PlotThreads, res.WorldElements, res.TimelineEvents)
		if res.Summary {
			fmt.Fprint(w, ", summary")
		}
		fmt.Fprintln(w)
		for _, wn := range res.Warnings {
			fmt.Fprintf(w, "warning: %s\n", wn)
		}
		for _, r := range res.Rejected {
			fmt.Fprintf(w, "rejected: %s\n", r)
		}
	})
}
