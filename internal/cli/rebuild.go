package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the record by replaying the journal",
		Long: "Replay the journal of the work, oldest first, into an empty record and save it. " +
			"The journal holds every applied facts payload and every edit made with the " +
			"character, thread, world, summary and timeline commands. The current file is " +
			"kept as a backup.",
		Run: runRebuild,
	}

	RootCmd.AddCommand(cmd)
}

func runRebuild(cmd *cobra.Command, args []string) {
	res, err := currentWorkspace().rebuild(cmd.Context())
	if err != nil {
		exitErr("rebuild", err)
	}

	emit(res, func(w io.Writer) {
		fmt.Fprintf(w, "rebuilt %s from %d payloads", res.Path, res.Entries)
		if res.Rejected > 0 {
			fmt.Fprintf(w, " (%d thread transitions rejected)", res.Rejected)
		}
		fmt.Fprintln(w)
	})
}
