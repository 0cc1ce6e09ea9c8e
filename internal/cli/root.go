// Package cli implements the continuity CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rcliao/story-continuity/internal/config"
	"github.com/spf13/cobra"
)

var (
	dirFlag    string
	workFlag   string
	configFlag string
	formatFlag string

	cfg    *config.Config
	logger *slog.Logger
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "continuity",
	Short: "Track story continuity across chapters",
	Long: "Keeps a per-work continuity record (characters, plot threads, world, timeline, summaries) " +
		"as JSON with backups, and assembles the context a chapter should be written against.",
	PersistentPreRun: setup,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&dirFlag, "dir", "", "Record directory (default: $CONTINUITY_DIR or ~/.continuity)")
	RootCmd.PersistentFlags().StringVarP(&workFlag, "work", "w", "", "Work name (default: $CONTINUITY_WORK or \"default\")")
	RootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "YAML config file (default: $CONTINUITY_CONFIG)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func setup(cmd *cobra.Command, args []string) {
	c, err := config.Load(configPath())
	if err != nil {
		exitErr("load config", err)
	}
	if dirFlag != "" {
		c.Dir = dirFlag
	}
	if workFlag != "" {
		c.Work = workFlag
	}
	if err := config.Validate(c); err != nil {
		exitErr("config", err)
	}
	if formatFlag != "json" && formatFlag != "text" {
		exitErr("format", fmt.Errorf("%q is invalid; valid values: json, text", formatFlag))
	}
	cfg = c
	logger = newLogger(c, os.Stderr)
	slog.SetDefault(logger)
}

func configPath() string {
	if configFlag != "" {
		return configFlag
	}
	return os.Getenv("CONTINUITY_CONFIG")
}

func newLogger(c *config.Config, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch c.LogLevel {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogInfo:
		lvl = slog.LevelInfo
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == config.LogJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func currentWorkspace() *workspace {
	return newWorkspace(cfg, logger)
}

// emit prints v as indented JSON, or through text when --format=text and
// a text form exists.
func emit(v any, text func(w io.Writer)) {
	if formatFlag == "text" && text != nil {
		text(os.Stdout)
		return
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
