// Package record holds the continuity record of one work: characters, plot
// threads, world elements, timeline and chapter summaries.
//
// Every keyed section is a bounded.Store sharing one capacity so that a
// long multi-book series cannot grow the record without limit. The
// timeline is capped at the same capacity, dropping its oldest events.
package record

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rcliao/story-continuity/internal/bounded"
	"github.com/rcliao/story-continuity/internal/model"
)

// Section names as they appear in the persisted document.
const (
	SectionCharacters    = "characters"
	SectionPlotThreads   = "plot_threads"
	SectionWorldElements = "world_elements"
	SectionTimeline      = "timeline"
	SectionSummaries     = "chapter_summaries"
)

// Record is the aggregate continuity state of one work or installment.
type Record struct {
	Characters    *bounded.Store[string, model.Character]
	PlotThreads   *bounded.Store[string, model.PlotThread]
	WorldElements *bounded.Store[string, model.WorldElement]
	Summaries     *bounded.Store[int, model.ChapterSummary]

	capacity int
	timeline []model.TimelineEvent
}

// New returns an empty record whose sections hold at most capacity entries.
func New(capacity int) (*Record, error) {
	chars, err := bounded.New[string, model.Character](capacity)
	if err != nil {
		return nil, err
	}
	threads, _ := bounded.New[string, model.PlotThread](capacity)
	world, _ := bounded.New[string, model.WorldElement](capacity)
	summaries, _ := bounded.New[int, model.ChapterSummary](capacity)

	return &Record{
		Characters:    chars,
		PlotThreads:   threads,
		WorldElements: world,
		Summaries:     summaries,
		capacity:      capacity,
		timeline:      []model.TimelineEvent{},
	}, nil
}

// Capacity returns the per-section capacity.
func (r *Record) Capacity() int { return r.capacity }

// AddEvent appends e to the timeline. It reports false when an event with
// the same description and chapter is already recorded.
func (r *Record) AddEvent(e model.TimelineEvent) bool {
	for _, existing := range r.timeline {
		if existing.Chapter == e.Chapter && existing.Description == e.Description {
			return false
		}
	}
	r.timeline = append(r.timeline, e)
	if over := len(r.timeline) - r.capacity; over > 0 {
		r.timeline = slices.Delete(r.timeline, 0, over)
	}
	return true
}

// Timeline returns a copy of the events ordered by chapter. Within a
// chapter, events carrying a story order come first, sorted by it; the rest
// keep insertion order.
func (r *Record) Timeline() []model.TimelineEvent {
	out := slices.Clone(r.timeline)
	slices.SortStableFunc(out, func(a, b model.TimelineEvent) int {
		if a.Chapter != b.Chapter {
			return a.Chapter - b.Chapter
		}
		switch {
		case a.StoryOrder != nil && b.StoryOrder != nil:
			return *a.StoryOrder - *b.StoryOrder
		case a.StoryOrder != nil:
			return -1
		case b.StoryOrder != nil:
			return 1
		}
		return 0
	})
	return out
}

// TimelineLen returns the number of recorded events.
func (r *Record) TimelineLen() int { return len(r.timeline) }

// MarshalJSON writes the persisted layout with every section in insertion
// order.
func (r *Record) MarshalJSON() ([]byte, error) {
	chars := orderedmap.New[string, model.Character]()
	for k, v := range r.Characters.Items() {
		chars.Set(k, v)
	}
	threads := orderedmap.New[string, model.PlotThread]()
	for k, v := range r.PlotThreads.Items() {
		threads.Set(k, v)
	}
	world := orderedmap.New[string, model.WorldElement]()
	for k, v := range r.WorldElements.Items() {
		world.Set(k, v)
	}
	summaries := orderedmap.New[string, model.ChapterSummary]()
	for ch, v := range r.Summaries.Items() {
		summaries.Set(strconv.Itoa(ch), v)
	}

	doc := orderedmap.New[string, any]()
	doc.Set(SectionCharacters, chars)
	doc.Set(SectionPlotThreads, threads)
	doc.Set(SectionWorldElements, world)
	doc.Set(SectionTimeline, r.timeline)
	doc.Set(SectionSummaries, summaries)

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("record: marshal: %w", err)
	}
	return b, nil
}
