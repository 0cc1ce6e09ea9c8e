package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeString(t *testing.T, s string) any {
	t.Helper()
	v, err := Decode([]byte(s))
	require.NoError(t, err)
	return v
}

func TestValidate_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
		path string
	}{
		{"array document", `[1,2]`, "$"},
		{"string document", `"hello"`, "$"},
		{"null document", `null`, "$"},
		{"characters as string", `{"characters": "Bob"}`, "characters"},
		{"threads as number", `{"plot_threads": 3}`, "plot_threads"},
		{"timeline as object", `{"timeline": {"a": 1}}`, "timeline"},
		{"summaries as bool", `{"chapter_summaries": true}`, "chapter_summaries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Validate(decodeString(t, tt.in), 10)
			var mErr *MalformedRecordError
			require.ErrorAs(t, err, &mErr)
			assert.Equal(t, tt.path, mErr.Path)
		})
	}
}

func TestValidate_EmptyAndUnknownFields(t *testing.T) {
	rec, warnings, err := Validate(decodeString(t, `{"version": 3, "extra": {"x": [1]}}`), 10)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 0, rec.Characters.Len())
	assert.Equal(t, 0, rec.TimelineLen())
}

func TestValidate_DropsBadEntriesKeepsRest(t *testing.T) {
	in := `{
		"characters": {
			"": {"role": "ghost"},
			"Bob": {"relationships": "friend of Alice", "abilities": "swordplay", "last_chapter": 3},
			"Eve": "not an object"
		},
		"plot_threads": {
			"T1": {"description": "Who sent the letter?", "status": "developed", "chapter_introduced": 2},
			"T2": {"description": "bad", "status": "abandoned"},
			"T3": {"description": "early", "status": "introduced", "chapter_resolved": 4}
		},
		"world_elements": [{"category": "place"}, {"id": "tower", "category": "place", "description": "tall"}],
		"timeline": [{"description": "storm", "chapter": 1}, {"chapter": 2}, 7],
		"chapter_summaries": {"1": {"summary": "It begins.", "word_count": 3000}, "zero": {"summary": "?"}, "2": "Legacy text summary"}
	}`
	rec, warnings, err := Validate(decodeString(t, in), 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"Bob"}, rec.Characters.Keys())
	bob, _ := rec.Characters.Peek("Bob")
	assert.Equal(t, "friend of Alice", bob.Relationships["general_book_3"])
	assert.Equal(t, []string{"swordplay"}, bob.Abilities)

	assert.Equal(t, []string{"T1", "T3"}, rec.PlotThreads.Keys())
	t3, _ := rec.PlotThreads.Peek("T3")
	assert.Nil(t, t3.ChapterResolved)

	assert.Equal(t, []string{"tower"}, rec.WorldElements.Keys())
	assert.Equal(t, 1, rec.TimelineLen())
	assert.Equal(t, []int{1, 2}, rec.Summaries.Keys())
	legacy, _ := rec.Summaries.Peek(2)
	assert.Equal(t, 3, legacy.WordCount)

	paths := make([]string, 0, len(warnings))
	for _, w := range warnings {
		paths = append(paths, w.Path)
	}
	assert.Contains(t, paths, "characters.")
	assert.Contains(t, paths, "characters.Eve")
	assert.Contains(t, paths, "plot_threads.T2")
	assert.Contains(t, paths, "plot_threads.T3")
	assert.Contains(t, paths, "world_elements[0]")
	assert.Contains(t, paths, "timeline[1]")
	assert.Contains(t, paths, "timeline[2]")
	assert.Contains(t, paths, "chapter_summaries.zero")
}

func TestValidate_RepairsResolvedBeforeIntroduced(t *testing.T) {
	in := `{"plot_threads": {"T1": {"description": "d", "status": "resolved", "chapter_introduced": 5, "chapter_resolved": 2}}}`
	rec, warnings, err := Validate(decodeString(t, in), 10)
	require.NoError(t, err)
	require.Len(t, warnings, 1)

	th, _ := rec.PlotThreads.Peek("T1")
	require.NotNil(t, th.ChapterResolved)
	assert.Equal(t, 5, *th.ChapterResolved)
}

func TestValidate_PlainMapsAndLegacyLists(t *testing.T) {
	raw := map[string]any{
		"characters": []any{
			map[string]any{"name": "Ana", "relationships": []any{"mentor to Bo", map[string]any{"Cy": "sister"}}},
		},
		"plot_threads": []any{
			map[string]any{"id": "T9", "description": "the key", "chapter_introduced": 1.0},
		},
	}
	rec, warnings, err := Validate(raw, 10)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	ana, ok := rec.Characters.Peek("Ana")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"relationship_0_book_0": "mentor to Bo", "Cy": "sister"}, ana.Relationships)
	th, _ := rec.PlotThreads.Peek("T9")
	assert.Equal(t, 1, th.ChapterIntroduced)
}

// Every JSON value must either validate or fail with MalformedRecordError.
func TestValidate_ArbitraryInputNeverPanics(t *testing.T) {
	inputs := []string{
		`{}`, `0`, `true`, `{"characters": null}`, `{"characters": {"x": null}}`,
		`{"characters": {"x": {"relationships": 5, "abilities": {"a": 1}, "states": "sad"}}}`,
		`{"characters": {"x": {"states": {"abc": {}, "2": {"emotional": ["x"]}}}}}`,
		`{"plot_threads": [1, "two", null, {"id": 3}]}`,
		`{"chapter_summaries": [{"chapter": "4", "summary": ["x"]}, {}]}`,
		`{"timeline": [{"description": {"x": 1}}, {"description": "ok", "story_order": "first"}]}`,
		`{"world_elements": {"w": {"chapter_introduced": 1.5}}}`,
	}
	for _, in := range inputs {
		raw := decodeString(t, in)
		assert.NotPanics(t, func() {
			_, _, err := Validate(raw, 5)
			if err != nil {
				var mErr *MalformedRecordError
				assert.ErrorAs(t, err, &mErr)
			}
		}, in)
	}
}

func TestNormalizeRelationships(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		want     map[string]string
		problems int
	}{
		{"absent", nil, map[string]string{}, 0},
		{"text", "friend of Alice", map[string]string{"general_book_2": "friend of Alice"}, 0},
		{"blank text", "   ", map[string]string{}, 0},
		{"mapping", map[string]any{"Carol": "rival", "Age": json.Number("3"), "Bad": []any{}}, map[string]string{"Carol": "rival", "Age": "3"}, 1},
		{"list", []any{"ally", map[string]any{"Dan": "brother"}, 4.0, nil}, map[string]string{"relationship_0_book_2": "ally", "Dan": "brother"}, 1},
		{"number", 12.0, map[string]string{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, problems := NormalizeRelationships(tt.in, 2)
			assert.Equal(t, tt.want, got)
			assert.Len(t, problems, tt.problems)
		})
	}
}

func TestNormalizeAbilities(t *testing.T) {
	got, problems := NormalizeAbilities("flight")
	assert.Equal(t, []string{"flight"}, got)
	assert.Empty(t, problems)

	got, problems = NormalizeAbilities([]any{"fire", 3.0, map[string]any{}, true})
	assert.Equal(t, []string{"fire", "3", "true"}, got)
	assert.Len(t, problems, 1)

	got, problems = NormalizeAbilities(map[string]any{"a": "b"})
	assert.Empty(t, got)
	assert.Len(t, problems, 1)

	assert.True(t, IsSyntheticRelationship("general_book_1"))
	assert.True(t, IsSyntheticRelationship("relationship_0_book_1"))
	assert.False(t, IsSyntheticRelationship("Carol"))
}
