package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/rcliao/story-continuity/internal/persist"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List backups of the record, newest first",
		Run:   runBackups,
	}

	RootCmd.AddCommand(cmd)
}

func runBackups(cmd *cobra.Command, args []string) {
	backups, err := persist.Backups(currentWorkspace().path())
	if err != nil {
		exitErr("backups", err)
	}
	if backups == nil {
		backups = []persist.Backup{}
	}

	emit(backups, func(w io.Writer) {
		for _, b := range backups {
			fmt.Fprintf(w, "%s  %s\n", b.TakenAt.Local().Format(time.DateTime), b.Path)
		}
	})
}
