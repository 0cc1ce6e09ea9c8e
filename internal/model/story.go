// Package model defines the continuity entry types tracked for a work.
package model

import "slices"

// Character is one character's evolving state.
type Character struct {
	Name          string                `json:"name"`
	Role          string                `json:"role,omitempty"`
	Description   string                `json:"description,omitempty"`
	Relationships map[string]string     `json:"relationships"`
	Abilities     []string              `json:"abilities"`
	States        map[int]StateSnapshot `json:"states,omitempty"`
	FirstChapter  int                   `json:"first_chapter,omitempty"`
	LastChapter   int                   `json:"last_chapter,omitempty"`
}

// StateSnapshot captures what a character felt and knew at one chapter.
type StateSnapshot struct {
	Emotional string `json:"emotional,omitempty"`
	Knowledge string `json:"knowledge,omitempty"`
}

// NewCharacter returns a character with empty containers.
func NewCharacter(name string) Character {
	return Character{
		Name:          name,
		Relationships: map[string]string{},
		Abilities:     []string{},
	}
}

// LatestStateBefore returns the snapshot with the highest chapter lower
// than chapter.
func (c Character) LatestStateBefore(chapter int) (StateSnapshot, int, bool) {
	best := 0
	for ch := range c.States {
		if ch < chapter && ch > best {
			best = ch
		}
	}
	if best == 0 {
		return StateSnapshot{}, 0, false
	}
	return c.States[best], best, true
}

// Clone returns a deep copy.
func (c Character) Clone() Character {
	out := c
	out.Relationships = make(map[string]string, len(c.Relationships))
	for k, v := range c.Relationships {
		out.Relationships[k] = v
	}
	out.Abilities = slices.Clone(c.Abilities)
	if out.Abilities == nil {
		out.Abilities = []string{}
	}
	if c.States != nil {
		out.States = make(map[int]StateSnapshot, len(c.States))
		for k, v := range c.States {
			out.States[k] = v
		}
	}
	return out
}

// ThreadStatus is the lifecycle stage of a plot thread.
type ThreadStatus string

const (
	ThreadIntroduced ThreadStatus = "introduced"
	ThreadDeveloped  ThreadStatus = "developed"
	ThreadResolved   ThreadStatus = "resolved"
)

// IsValid reports whether s is a recognised status.
func (s ThreadStatus) IsValid() bool {
	switch s {
	case ThreadIntroduced, ThreadDeveloped, ThreadResolved:
		return true
	}
	return false
}

// Rank orders statuses; transitions may only keep or raise the rank.
func (s ThreadStatus) Rank() int {
	switch s {
	case ThreadIntroduced:
		return 1
	case ThreadDeveloped:
		return 2
	case ThreadResolved:
		return 3
	}
	return 0
}

// PlotThread is an open or answered narrative question.
type PlotThread struct {
	ID                string       `json:"id"`
	Description       string       `json:"description"`
	Status            ThreadStatus `json:"status"`
	ChapterIntroduced int          `json:"chapter_introduced"`
	ChapterResolved   *int         `json:"chapter_resolved"`
}

// Open reports whether the thread is not yet resolved.
func (t PlotThread) Open() bool { return t.Status != ThreadResolved }

// WorldElement is a setting, rule or object established in the narrative.
type WorldElement struct {
	ID                string `json:"id"`
	Category          string `json:"category"`
	Description       string `json:"description"`
	ChapterIntroduced int    `json:"chapter_introduced"`
}

// TimelineEvent is a point-in-story event.
type TimelineEvent struct {
	Description string `json:"description"`
	Chapter     int    `json:"chapter"`
	StoryTime   string `json:"story_time,omitempty"`
	StoryOrder  *int   `json:"story_order,omitempty"`
}

// ChapterSummary is the digest of one generated chapter.
type ChapterSummary struct {
	Summary   string `json:"summary"`
	WordCount int    `json:"word_count"`
}
