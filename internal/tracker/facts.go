package tracker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/story-continuity/internal/model"
	"github.com/rcliao/story-continuity/internal/record"
)

// Facts is the structured content extracted from one generated chapter.
type Facts struct {
	Chapter       int
	Characters    []CharacterFacts
	PlotThreads   []ThreadFacts
	WorldElements []WorldFacts
	Timeline      []EventFacts
	Summary       *SummaryFacts
}

// CharacterFacts carries the loosely typed fields reported for a character.
type CharacterFacts struct {
	Name   string
	Fields map[string]any
}

type ThreadFacts struct {
	ID          string
	Description string
	Status      model.ThreadStatus
}

type WorldFacts struct {
	ID          string
	Category    string
	Description string
}

type EventFacts struct {
	Description string
	Chapter     int
	StoryTime   string
	StoryOrder  *int
}

type SummaryFacts struct {
	Text      string
	WordCount int
}

// Report summarizes one ApplyFacts call.
type Report struct {
	Chapter        int              `json:"chapter"`
	Characters     int              `json:"characters"`
	PlotThreads    int              `json:"plot_threads"`
	WorldElements  int              `json:"world_elements"`
	TimelineEvents int              `json:"timeline_events"`
	Summary        bool             `json:"summary"`
	Warnings       []record.Warning `json:"warnings,omitempty"`
}

// ParseFacts reads a decoded facts payload (JSON or YAML). Only a
// non-object payload is an error; malformed parts are dropped with a
// warning.
func ParseFacts(raw any) (Facts, []record.Warning, error) {
	top, ok := record.Fields(raw)
	if !ok {
		return Facts{}, nil, fmt.Errorf("%w: got %s", ErrMalformedFacts, record.Kind(raw))
	}

	var (
		f        Facts
		warnings []record.Warning
	)
	warn := func(path, format string, args ...any) {
		warnings = append(warnings, record.Warning{Path: path, Message: fmt.Sprintf(format, args...)})
	}
	str := func(v any, key string) string {
		s, _ := record.Lookup(v, key)
		out, _ := record.String(s)
		return strings.TrimSpace(out)
	}

	for _, field := range top {
		switch field.Key {
		case "chapter":
			n, ok := record.Int(field.Value)
			if !ok {
				warn("chapter", "ignored non-integer chapter")
				continue
			}
			f.Chapter = n

		case record.SectionCharacters:
			for _, e := range keyedEntries(field.Value, "name") {
				props, ok := record.Fields(e.value)
				if !ok {
					warn(e.path, "dropped character: expected object, got %s", record.Kind(e.value))
					continue
				}
				fields := make(map[string]any, len(props))
				for _, p := range props {
					fields[p.Key] = p.Value
				}
				f.Characters = append(f.Characters, CharacterFacts{Name: e.id, Fields: fields})
			}

		case record.SectionPlotThreads:
			for _, e := range keyedEntries(field.Value, "id") {
				f.PlotThreads = append(f.PlotThreads, ThreadFacts{
					ID:          e.id,
					Description: str(e.value, "description"),
					Status:      model.ThreadStatus(strings.ToLower(str(e.value, "status"))),
				})
			}

		case record.SectionWorldElements:
			for _, e := range keyedEntries(field.Value, "id") {
				f.WorldElements = append(f.WorldElements, WorldFacts{
					ID:          e.id,
					Category:    str(e.value, "category"),
					Description: str(e.value, "description"),
				})
			}

		case record.SectionTimeline:
			items, ok := record.List(field.Value)
			if !ok {
				warn(record.SectionTimeline, "ignored %s timeline", record.Kind(field.Value))
				continue
			}
			for i, item := range items {
				ev := EventFacts{Description: str(item, "description"), StoryTime: str(item, "story_time")}
				if s, ok := item.(string); ok {
					ev.Description = strings.TrimSpace(s)
				}
				if ch, ok := record.Lookup(item, "chapter"); ok {
					ev.Chapter, _ = record.Int(ch)
				}
				if o, ok := record.Lookup(item, "story_order"); ok {
					if n, ok := record.Int(o); ok {
						ev.StoryOrder = &n
					}
				}
				if ev.Description == "" {
					warn(fmt.Sprintf("timeline[%d]", i), "dropped event without a description")
					continue
				}
				f.Timeline = append(f.Timeline, ev)
			}

		case "summary":
			s := &SummaryFacts{}
			if text, ok := field.Value.(string); ok {
				s.Text = strings.TrimSpace(text)
			} else {
				s.Text = str(field.Value, "text")
				if wc, ok := record.Lookup(field.Value, "word_count"); ok {
					s.WordCount, _ = record.Int(wc)
				}
			}
			if s.Text == "" {
				warn("summary", "ignored empty summary")
				continue
			}
			f.Summary = s
		}
	}
	return f, warnings, nil
}

type keyedEntry struct {
	path  string
	id    string
	value any
}

// keyedEntries accepts both {"<id>": {...}} and [{"<idField>": ...}].
func keyedEntries(raw any, idField string) []keyedEntry {
	var out []keyedEntry
	if fields, ok := record.Fields(raw); ok {
		for _, f := range fields {
			out = append(out, keyedEntry{path: f.Key, id: f.Key, value: f.Value})
		}
		return out
	}
	items, _ := record.List(raw)
	for i, item := range items {
		id := ""
		if v, ok := record.Lookup(item, idField); ok {
			id, _ = record.String(v)
		}
		out = append(out, keyedEntry{path: fmt.Sprintf("[%d]", i), id: id, value: item})
	}
	return out
}

// ApplyFacts merges one chapter's facts into the record. Every part of the
// payload is attempted; failures other than invalid thread transitions are
// reported as warnings. Invalid transitions are joined into the returned
// error after the rest of the payload has been applied.
func (t *Tracker) ApplyFacts(f Facts) (Report, error) {
	t.BeginChapter(f.Chapter)
	rep := Report{Chapter: f.Chapter}
	var transitions []error

	for _, c := range f.Characters {
		if err := t.AddOrUpdateCharacter(c.Name, c.Fields); err != nil {
			t.warn(record.SectionCharacters, err.Error())
			continue
		}
		rep.Characters++
	}

	for _, th := range f.PlotThreads {
		path := record.SectionPlotThreads + "." + th.ID
		if !t.rec.PlotThreads.Has(strings.TrimSpace(th.ID)) {
			if err := t.AddPlotThread(th.ID, th.Description, f.Chapter); err != nil {
				t.warn(path, err.Error())
				continue
			}
		}
		if th.Status != "" && th.Status != model.ThreadIntroduced {
			err := t.UpdatePlotThreadStatus(th.ID, th.Status, f.Chapter)
			var invalid *InvalidTransitionError
			switch {
			case errors.As(err, &invalid):
				transitions = append(transitions, err)
				continue
			case err != nil:
				t.warn(path, err.Error())
				continue
			}
		}
		rep.PlotThreads++
	}

	for _, w := range f.WorldElements {
		if err := t.AddWorldElement(w.ID, w.Category, w.Description, f.Chapter); err != nil {
			t.warn(record.SectionWorldElements, err.Error())
			continue
		}
		rep.WorldElements++
	}

	for _, ev := range f.Timeline {
		ch := ev.Chapter
		if ch == 0 {
			ch = f.Chapter
		}
		if err := t.AddTimelineEvent(ev.Description, ch, ev.StoryTime, ev.StoryOrder); err != nil {
			t.warn(record.SectionTimeline, err.Error())
			continue
		}
		rep.TimelineEvents++
	}

	if f.Summary != nil {
		if err := t.AddChapterSummary(f.Chapter, f.Summary.Text, f.Summary.WordCount); err != nil {
			t.warn("summary", err.Error())
		} else {
			rep.Summary = true
		}
	}

	rep.Warnings = t.Warnings()
	return rep, errors.Join(transitions...)
}
