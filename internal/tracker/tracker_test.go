package tracker

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/story-continuity/internal/model"
	"github.com/rcliao/story-continuity/internal/record"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	rec, err := record.New(100)
	require.NoError(t, err)
	return New(rec, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func character(t *testing.T, tr *Tracker, name string) model.Character {
	t.Helper()
	c, ok := tr.Record().Characters.Peek(name)
	require.True(t, ok, "character %q missing", name)
	return c
}

func TestAddOrUpdateCharacter_TextThenMapping(t *testing.T) {
	tr := newTestTracker(t)

	require.NoError(t, tr.AddOrUpdateCharacter("Bob", map[string]any{"relationships": "friend of Alice"}))
	require.NoError(t, tr.AddOrUpdateCharacter("Bob", map[string]any{"relationships": map[string]any{"Carol": "rival"}}))

	bob := character(t, tr, "Bob")
	assert.Equal(t, map[string]string{
		"general_book_0": "friend of Alice",
		"Carol":          "rival",
	}, bob.Relationships)
}

func TestAddOrUpdateCharacter_EmptyName(t *testing.T) {
	tr := newTestTracker(t)
	assert.ErrorIs(t, tr.AddOrUpdateCharacter("  ", nil), ErrEmptyName)
}

func TestAddOrUpdateCharacter_MappingIdempotent(t *testing.T) {
	tr := newTestTracker(t)
	fields := map[string]any{
		"relationships": map[string]any{"Carol": "rival", "Dan": "brother"},
		"abilities":     []any{"archery", "stealth"},
	}
	require.NoError(t, tr.AddOrUpdateCharacter("Bob", fields))
	once := character(t, tr, "Bob").Clone()
	require.NoError(t, tr.AddOrUpdateCharacter("Bob", fields))

	assert.Equal(t, once, character(t, tr, "Bob"))
}

func TestAddOrUpdateCharacter_TextRepeatedAcrossChapters(t *testing.T) {
	tr := newTestTracker(t)
	tr.BeginChapter(1)
	require.NoError(t, tr.AddOrUpdateCharacter("Bob", map[string]any{"relationships": "friend of Alice"}))
	tr.BeginChapter(2)
	require.NoError(t, tr.AddOrUpdateCharacter("Bob", map[string]any{"relationships": "friend of Alice"}))

	bob := character(t, tr, "Bob")
	assert.Equal(t, map[string]string{"general_book_1": "friend of Alice"}, bob.Relationships)
	assert.Equal(t, 1, bob.FirstChapter)
	assert.Equal(t, 2, bob.LastChapter)
}

func TestAddOrUpdateCharacter_ListRelationships(t *testing.T) {
	tr := newTestTracker(t)
	tr.BeginChapter(3)
	require.NoError(t, tr.AddOrUpdateCharacter("Ana", map[string]any{
		"relationships": []any{"owes Bo a debt", map[string]any{"Cy": "sister"}, 42.0},
	}))

	ana := character(t, tr, "Ana")
	assert.Equal(t, map[string]string{
		"relationship_0_book_3": "owes Bo a debt",
		"Cy":                    "sister",
	}, ana.Relationships)

	warnings := tr.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "characters.Ana", warnings[0].Path)
	assert.Empty(t, tr.Warnings())
}

func TestAddOrUpdateCharacter_AbilitiesUnion(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.AddOrUpdateCharacter("Mia", map[string]any{"abilities": "healing"}))
	require.NoError(t, tr.AddOrUpdateCharacter("Mia", map[string]any{"abilities": []any{"healing", "flight", 7.0}}))
	require.NoError(t, tr.AddOrUpdateCharacter("Mia", map[string]any{"abilities": map[string]any{"x": 1}}))

	assert.Equal(t, []string{"healing", "flight", "7"}, character(t, tr, "Mia").Abilities)
	assert.Len(t, tr.Warnings(), 1)
}

func TestAddOrUpdateCharacter_MalformedFieldsDoNotStopUpdate(t *testing.T) {
	tr := newTestTracker(t)
	tr.BeginChapter(4)
	err := tr.AddOrUpdateCharacter("Lu", map[string]any{
		"role":            []any{"bad"},
		"description":     "a cartographer",
		"relationships":   true,
		"emotional_state": "anxious",
		"knowledge":       "knows the map is forged",
	})
	require.NoError(t, err)

	lu := character(t, tr, "Lu")
	assert.Empty(t, lu.Role)
	assert.Equal(t, "a cartographer", lu.Description)
	assert.Equal(t, model.StateSnapshot{Emotional: "anxious", Knowledge: "knows the map is forged"}, lu.States[4])
	assert.Len(t, tr.Warnings(), 2)
}

func TestAddOrUpdateCharacter_StateWithoutChapterSurvivesReload(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.AddOrUpdateCharacter("Bob", map[string]any{
		"role":            "ferryman",
		"emotional_state": "grieving",
	}))

	bob := character(t, tr, "Bob")
	assert.Equal(t, "ferryman", bob.Role)
	assert.Empty(t, bob.States)
	warnings := tr.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "characters.Bob.states", warnings[0].Path)

	tr.BeginChapter(2)
	require.NoError(t, tr.AddOrUpdateCharacter("Bob", map[string]any{"knowledge": "the ferry sank"}))

	data, err := json.Marshal(tr.Record())
	require.NoError(t, err)
	raw, err := record.Decode(data)
	require.NoError(t, err)
	rec, loadWarnings, err := record.Validate(raw, 100)
	require.NoError(t, err)
	assert.Empty(t, loadWarnings)

	reloaded, ok := rec.Characters.Peek("Bob")
	require.True(t, ok)
	assert.Equal(t, map[int]model.StateSnapshot{2: {Knowledge: "the ferry sank"}}, reloaded.States)
}

func TestPlotThread_ResolveThenRegress(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.AddPlotThread("T1", "Who sent the letter?", 2))
	require.NoError(t, tr.UpdatePlotThreadStatus("T1", model.ThreadResolved, 9))

	th, _ := tr.Record().PlotThreads.Peek("T1")
	assert.Equal(t, model.ThreadResolved, th.Status)
	require.NotNil(t, th.ChapterResolved)
	assert.Equal(t, 9, *th.ChapterResolved)

	err := tr.UpdatePlotThreadStatus("T1", model.ThreadDeveloped, 10)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, model.ThreadResolved, invalid.From)

	err = tr.UpdatePlotThreadStatus("T1", model.ThreadIntroduced, 11)
	require.ErrorAs(t, err, &invalid)

	th, _ = tr.Record().PlotThreads.Peek("T1")
	assert.Equal(t, model.ThreadResolved, th.Status)
	assert.Equal(t, 9, *th.ChapterResolved)
}

func TestPlotThread_Validation(t *testing.T) {
	tr := newTestTracker(t)
	assert.ErrorIs(t, tr.AddPlotThread("", "x", 1), ErrEmptyID)
	assert.ErrorIs(t, tr.AddPlotThread("T", " ", 1), ErrEmptyText)
	assert.ErrorIs(t, tr.UpdatePlotThreadStatus("missing", model.ThreadDeveloped, 1), ErrThreadNotFound)

	require.NoError(t, tr.AddPlotThread("T", "the heist", 5))
	assert.ErrorIs(t, tr.UpdatePlotThreadStatus("T", "abandoned", 6), ErrInvalidStatus)

	var invalid *InvalidTransitionError
	assert.ErrorAs(t, tr.UpdatePlotThreadStatus("T", model.ThreadResolved, 3), &invalid)

	// re-adding keeps the original thread
	require.NoError(t, tr.AddPlotThread("T", "another description", 8))
	th, _ := tr.Record().PlotThreads.Peek("T")
	assert.Equal(t, "the heist", th.Description)
	assert.Equal(t, 5, th.ChapterIntroduced)
	assert.Nil(t, th.ChapterResolved)

	require.NoError(t, tr.UpdatePlotThreadStatus("T", model.ThreadDeveloped, 6))
	require.NoError(t, tr.UpdatePlotThreadStatus("T", model.ThreadDeveloped, 7))
	th, _ = tr.Record().PlotThreads.Peek("T")
	assert.Equal(t, model.ThreadDeveloped, th.Status)
	assert.Nil(t, th.ChapterResolved)
}

func TestAddWorldElement_Accumulates(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.AddWorldElement("tower", "place", "A black tower.", 1))
	require.NoError(t, tr.AddWorldElement("tower", "object", "It hums at night.", 4))
	require.NoError(t, tr.AddWorldElement("tower", "place", "A black tower.", 5))

	el, _ := tr.Record().WorldElements.Peek("tower")
	assert.Equal(t, "place", el.Category)
	assert.Equal(t, 1, el.ChapterIntroduced)
	assert.Equal(t, "A black tower.; It hums at night.", el.Description)
	assert.Len(t, tr.Warnings(), 1)

	assert.ErrorIs(t, tr.AddWorldElement("", "place", "x", 1), ErrEmptyID)
}

func TestAddChapterSummary(t *testing.T) {
	tr := newTestTracker(t)
	assert.ErrorIs(t, tr.AddChapterSummary(0, "x", 1), ErrInvalidChapter)

	require.NoError(t, tr.AddChapterSummary(3, "first draft", 2500))
	require.NoError(t, tr.AddChapterSummary(3, "regenerated chapter text summary", 0))

	s, _ := tr.Record().Summaries.Peek(3)
	assert.Equal(t, "regenerated chapter text summary", s.Summary)
	assert.Equal(t, 4, s.WordCount)
	assert.Equal(t, 1, tr.Record().Summaries.Len())
}

func TestAddTimelineEvent(t *testing.T) {
	tr := newTestTracker(t)
	assert.ErrorIs(t, tr.AddTimelineEvent(" ", 1, "", nil), ErrEmptyText)
	require.NoError(t, tr.AddTimelineEvent("the storm breaks", 2, "dusk", nil))
	require.NoError(t, tr.AddTimelineEvent("the storm breaks", 2, "dusk", nil))
	assert.Equal(t, 1, tr.Record().TimelineLen())
}

func TestAddOrUpdateCharacter_WarnsOnNearDuplicateName(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		added    string
		warn     bool
	}{
		{"misspelling", "Mara", "Marra", true},
		{"casing", "Mara", "mara", true},
		{"distinct", "Mara", "Vess", false},
		{"short distinct", "Bob", "Ilo", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(t)
			require.NoError(t, tr.AddOrUpdateCharacter(tt.existing, nil))
			require.NoError(t, tr.AddOrUpdateCharacter(tt.added, nil))

			assert.True(t, tr.Record().Characters.Has(tt.added))
			warnings := tr.Warnings()
			if !tt.warn {
				assert.Empty(t, warnings)
				return
			}
			require.Len(t, warnings, 1)
			assert.Contains(t, warnings[0].Message, tt.existing)
		})
	}
}
