// Package assembler selects the part of a continuity record that is handed
// to the generation step for a chapter.
//
// Build returns a structured Context so callers can render it into any
// prompt template; Render is a plain markdown rendering under a character
// budget for callers that just want text. Neither touches store recency.
package assembler

import (
	"slices"

	"github.com/rcliao/story-continuity/internal/digest"
	"github.com/rcliao/story-continuity/internal/model"
	"github.com/rcliao/story-continuity/internal/record"
)

// DefaultMaxItems caps characters and timeline events when the caller
// passes a non-positive limit.
const DefaultMaxItems = 8

// Context is the continuity payload for one chapter.
type Context struct {
	Chapter          int                   `json:"chapter"`
	OpenThreads      []model.PlotThread    `json:"open_threads"`
	Characters       []CharacterContext    `json:"characters"`
	WorldElements    []model.WorldElement  `json:"world_elements"`
	PreviousSummary  *SummaryContext       `json:"previous_summary,omitempty"`
	EarlierSummaries []SummaryDigest       `json:"earlier_summaries"`
	RecentEvents     []model.TimelineEvent `json:"recent_events"`
}

// CharacterContext is a character as of the chapter being written.
// LastChapter and State only reflect earlier chapters. Role, description,
// relationships and abilities are the latest recorded values, since the
// record keeps no per-chapter history for them.
type CharacterContext struct {
	Name          string               `json:"name"`
	Role          string               `json:"role,omitempty"`
	Description   string               `json:"description,omitempty"`
	Relationships map[string]string    `json:"relationships,omitempty"`
	Abilities     []string             `json:"abilities,omitempty"`
	LastChapter   int                  `json:"last_chapter"`
	State         *model.StateSnapshot `json:"state,omitempty"`
	StateChapter  int                  `json:"state_chapter,omitempty"`
}

// SummaryContext is the verbatim summary of the latest earlier chapter.
type SummaryContext struct {
	Chapter   int    `json:"chapter"`
	Summary   string `json:"summary"`
	WordCount int    `json:"word_count"`
}

// SummaryDigest is a one-line digest of an older chapter.
type SummaryDigest struct {
	Chapter int    `json:"chapter"`
	Digest  string `json:"digest"`
}

// Build assembles the context for writing chapter. Nothing recorded for
// chapter or later is selected: summaries and events must come from
// earlier chapters, world elements and threads from chapter or earlier,
// characters must have first appeared before chapter. Threads resolved in
// chapter or later still count as open. Characters are the maxItems seen
// most recently before chapter, ties kept in insertion order; see
// CharacterContext for which of their fields are chapter-relative.
func Build(rec *record.Record, chapter, maxItems int) *Context {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	ctx := &Context{
		Chapter:          chapter,
		OpenThreads:      []model.PlotThread{},
		Characters:       []CharacterContext{},
		WorldElements:    []model.WorldElement{},
		EarlierSummaries: []SummaryDigest{},
		RecentEvents:     []model.TimelineEvent{},
	}

	for _, th := range rec.PlotThreads.Items() {
		if th, ok := threadAt(th, chapter); ok {
			ctx.OpenThreads = append(ctx.OpenThreads, th)
		}
	}

	for _, el := range rec.WorldElements.Items() {
		if el.ChapterIntroduced <= chapter {
			ctx.WorldElements = append(ctx.WorldElements, el)
		}
	}

	ctx.Characters = selectCharacters(rec, chapter, maxItems)
	ctx.PreviousSummary, ctx.EarlierSummaries = selectSummaries(rec, chapter)

	var events []model.TimelineEvent
	for _, ev := range rec.Timeline() {
		if ev.Chapter < chapter {
			events = append(events, ev)
		}
	}
	if len(events) > maxItems {
		events = events[len(events)-maxItems:]
	}
	ctx.RecentEvents = append(ctx.RecentEvents, events...)

	return ctx
}

// threadAt reports whether th is open while chapter is being written. A
// thread resolved in chapter or later is shown as it stood before.
func threadAt(th model.PlotThread, chapter int) (model.PlotThread, bool) {
	if th.ChapterIntroduced > chapter {
		return th, false
	}
	if th.Open() {
		return th, true
	}
	if th.ChapterResolved == nil || *th.ChapterResolved < chapter {
		return th, false
	}
	th.ChapterResolved = nil
	th.Status = model.ThreadDeveloped
	if chapter <= th.ChapterIntroduced {
		th.Status = model.ThreadIntroduced
	}
	return th, true
}

func selectCharacters(rec *record.Record, chapter, maxItems int) []CharacterContext {
	var chars []model.Character
	seen := map[string]int{}
	for _, c := range rec.Characters.Items() {
		if c.FirstChapter < chapter || c.FirstChapter == 0 {
			chars = append(chars, c)
			seen[c.Name] = lastSeenBefore(c, chapter)
		}
	}
	slices.SortStableFunc(chars, func(a, b model.Character) int {
		return seen[b.Name] - seen[a.Name]
	})
	if len(chars) > maxItems {
		chars = chars[:maxItems]
	}

	out := make([]CharacterContext, 0, len(chars))
	for _, c := range chars {
		c = c.Clone()
		cc := CharacterContext{
			Name:          c.Name,
			Role:          c.Role,
			Description:   c.Description,
			Relationships: c.Relationships,
			Abilities:     c.Abilities,
			LastChapter:   seen[c.Name],
		}
		if snap, ch, ok := c.LatestStateBefore(chapter); ok {
			cc.State = &snap
			cc.StateChapter = ch
		}
		out = append(out, cc)
	}
	return out
}

// lastSeenBefore is the latest chapter below chapter in which c is known
// to appear: its last chapter, a state snapshot or its first chapter.
func lastSeenBefore(c model.Character, chapter int) int {
	if c.LastChapter < chapter {
		return c.LastChapter
	}
	last := 0
	if c.FirstChapter < chapter {
		last = c.FirstChapter
	}
	for ch := range c.States {
		if ch < chapter && ch > last {
			last = ch
		}
	}
	return last
}

func selectSummaries(rec *record.Record, chapter int) (*SummaryContext, []SummaryDigest) {
	var chapters []int
	for ch := range rec.Summaries.Items() {
		if ch < chapter {
			chapters = append(chapters, ch)
		}
	}
	if len(chapters) == 0 {
		return nil, []SummaryDigest{}
	}
	slices.Sort(chapters)

	last := chapters[len(chapters)-1]
	s, _ := rec.Summaries.Peek(last)
	prev := &SummaryContext{Chapter: last, Summary: s.Summary, WordCount: s.WordCount}

	digests := make([]SummaryDigest, 0, len(chapters)-1)
	for _, ch := range chapters[:len(chapters)-1] {
		s, _ := rec.Summaries.Peek(ch)
		digests = append(digests, SummaryDigest{Chapter: ch, Digest: digest.OneLine(s.Summary, 0)})
	}
	return prev, digests
}
