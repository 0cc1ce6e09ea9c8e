package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/rcliao/story-continuity/internal/record"
	"github.com/rcliao/story-continuity/internal/tracker"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "character [name]",
		Short: "Add or update a character",
		Long: "Add or update a character. Relationships given as Name=label are stored under the " +
			"counterpart's name; anything else is kept as free text. Existing relationships and " +
			"abilities are never removed.",
		Args: cobra.ExactArgs(1),
		Run:  runCharacter,
	}

	cmd.Flags().Int("chapter", 0, "Chapter the update belongs to")
	cmd.Flags().String("role", "", "Role in the story")
	cmd.Flags().String("description", "", "Description")
	cmd.Flags().StringArrayP("relationship", "r", nil, "Relationship, as Name=label or free text (repeatable)")
	cmd.Flags().StringSliceP("ability", "a", nil, "Abilities (comma-separated or repeatable)")
	cmd.Flags().String("emotional", "", "Emotional state at this chapter (needs --chapter)")
	cmd.Flags().String("knowledge", "", "What the character knows at this chapter (needs --chapter)")

	RootCmd.AddCommand(cmd)
}

func runCharacter(cmd *cobra.Command, args []string) {
	chapter, _ := cmd.Flags().GetInt("chapter")
	role, _ := cmd.Flags().GetString("role")
	description, _ := cmd.Flags().GetString("description")
	rels, _ := cmd.Flags().GetStringArray("relationship")
	abilities, _ := cmd.Flags().GetStringSlice("ability")
	emotional, _ := cmd.Flags().GetString("emotional")
	knowledge, _ := cmd.Flags().GetString("knowledge")

	fields := map[string]any{
		"role":            role,
		"description":     description,
		"emotional_state": emotional,
		"knowledge":       knowledge,
	}
	if v := relationshipValue(rels); v != nil {
		fields["relationships"] = v
	}
	if len(abilities) > 0 {
		fields["abilities"] = abilities
	}

	name := args[0]
	warnings, err := currentWorkspace().commit(cmd.Context(), characterChange(name, chapter, fields))
	if err != nil {
		exitErr("character", err)
	}

	emit(map[string]any{"ok": true, "name": strings.TrimSpace(name), "warnings": warnings}, func(w io.Writer) {
		fmt.Fprintf(w, "updated %s\n", strings.TrimSpace(name))
		for _, wn := range warnings {
			fmt.Fprintf(w, "warning: %s\n", wn)
		}
	})
}

func characterChange(name string, chapter int, fields map[string]any) change {
	return change{
		chapter: chapter,
		payload: factsPayload(chapter, record.SectionCharacters, map[string]any{name: fields}),
		apply: func(tr *tracker.Tracker) error {
			tr.BeginChapter(chapter)
			return tr.AddOrUpdateCharacter(name, fields)
		},
	}
}

// relationshipValue shapes --relationship flags the way extracted facts
// arrive: a lone free-text value stays a string, anything else becomes a
// list of free text and single-entry mappings.
func relationshipValue(flags []string) any {
	if len(flags) == 0 {
		return nil
	}
	list := make([]any, 0, len(flags))
	for _, f := range flags {
		name, label, ok := strings.Cut(f, "=")
		if ok && strings.TrimSpace(name) != "" {
			list = append(list, map[string]any{strings.TrimSpace(name): strings.TrimSpace(label)})
			continue
		}
		list = append(list, f)
	}
	if s, ok := list[0].(string); ok && len(list) == 1 {
		return s
	}
	return list
}
