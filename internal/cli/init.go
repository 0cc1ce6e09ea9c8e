package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rcliao/story-continuity/internal/record"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty record for the work",
		Run:   runInit,
	}

	RootCmd.AddCommand(cmd)
}

func runInit(cmd *cobra.Command, args []string) {
	ws := currentWorkspace()

	_, err := os.Stat(ws.path())
	exists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		exitErr("init", err)
	}
	if !exists {
		rec, err := record.New(cfg.Capacity)
		if err != nil {
			exitErr("init", err)
		}
		if err := ws.persister.Save(rec, ws.path()); err != nil {
			exitErr("init", err)
		}
	}

	out := map[string]any{"ok": true, "work": cfg.Work, "path": ws.path(), "created": !exists}
	emit(out, func(w io.Writer) {
		if exists {
			fmt.Fprintf(w, "%s already exists\n", ws.path())
			return
		}
		fmt.Fprintf(w, "created %s\n", ws.path())
	})
}
