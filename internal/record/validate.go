package record

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rcliao/story-continuity/internal/model"
)

// MalformedRecordError reports a structural problem in persisted state.
type MalformedRecordError struct {
	Path   string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record: malformed %s: %s", e.Path, e.Reason)
}

// Warning describes an entry that was dropped or repaired during
// validation or merging.
type Warning struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Path == "" {
		return w.Message
	}
	return w.Path + ": " + w.Message
}

// Validate builds a record from untrusted decoded input. Structural
// problems (the document or a whole section has the wrong kind) fail with
// *MalformedRecordError. Bad entries are dropped or repaired and reported
// as warnings so that the rest of the record still loads. Unknown fields
// are ignored.
func Validate(raw any, capacity int) (*Record, []Warning, error) {
	rec, err := New(capacity)
	if err != nil {
		return nil, nil, err
	}

	top, ok := Fields(raw)
	if !ok {
		return nil, nil, &MalformedRecordError{Path: "$", Reason: "expected object, got " + Kind(raw)}
	}

	v := &validator{rec: rec}
	for _, f := range top {
		if f.Value == nil {
			continue
		}
		var err error
		switch f.Key {
		case SectionCharacters:
			err = v.characters(f.Value)
		case SectionPlotThreads:
			err = v.plotThreads(f.Value)
		case SectionWorldElements:
			err = v.worldElements(f.Value)
		case SectionTimeline:
			err = v.timeline(f.Value)
		case SectionSummaries:
			err = v.summaries(f.Value)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return rec, v.warnings, nil
}

type validator struct {
	rec      *Record
	warnings []Warning
}

func (v *validator) warn(path, format string, args ...any) {
	v.warnings = append(v.warnings, Warning{Path: path, Message: fmt.Sprintf(format, args...)})
}

// entry is one element of a keyed section, either from the object form
// {"<id>": {...}} or from the legacy list form [{"<idField>": ...}].
type entry struct {
	path  string
	id    string
	value any
}

func (v *validator) entries(section string, raw any, idField string) ([]entry, error) {
	if fields, ok := Fields(raw); ok {
		out := make([]entry, 0, len(fields))
		for _, f := range fields {
			out = append(out, entry{path: section + "." + f.Key, id: f.Key, value: f.Value})
		}
		return out, nil
	}
	items, ok := List(raw)
	if !ok {
		return nil, &MalformedRecordError{Path: section, Reason: "expected object or array, got " + Kind(raw)}
	}
	out := make([]entry, 0, len(items))
	for i, item := range items {
		id := ""
		if idv, ok := Lookup(item, idField); ok {
			id, _ = String(idv)
		}
		out = append(out, entry{path: fmt.Sprintf("%s[%d]", section, i), id: id, value: item})
	}
	return out, nil
}

func (v *validator) characters(raw any) error {
	entries, err := v.entries(SectionCharacters, raw, "name")
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := strings.TrimSpace(e.id)
		if name == "" {
			v.warn(e.path, "dropped character without a name")
			continue
		}
		if _, ok := Fields(e.value); !ok {
			v.warn(e.path, "dropped character: expected object, got %s", Kind(e.value))
			continue
		}

		c := model.NewCharacter(name)
		c.Role = v.optString(e, "role")
		c.Description = v.optString(e, "description")
		c.FirstChapter = v.optInt(e, "first_chapter")
		c.LastChapter = v.optInt(e, "last_chapter")

		if rel, ok := Lookup(e.value, "relationships"); ok {
			rels, problems := NormalizeRelationships(rel, c.LastChapter)
			for _, p := range problems {
				v.warn(e.path, "%s", p)
			}
			c.Relationships = rels
		}
		if ab, ok := Lookup(e.value, "abilities"); ok {
			abilities, problems := NormalizeAbilities(ab)
			for _, p := range problems {
				v.warn(e.path, "%s", p)
			}
			c.Abilities = appendUnique(c.Abilities, abilities...)
		}
		if states, ok := Lookup(e.value, "states"); ok && states != nil {
			c.States = v.states(e.path+".states", states)
		}
		v.rec.Characters.Put(name, c)
	}
	return nil
}

func (v *validator) states(path string, raw any) map[int]model.StateSnapshot {
	fields, ok := Fields(raw)
	if !ok {
		v.warn(path, "ignored states: expected object, got %s", Kind(raw))
		return nil
	}
	out := make(map[int]model.StateSnapshot, len(fields))
	for _, f := range fields {
		ch, ok := Int(f.Key)
		if !ok || ch <= 0 {
			v.warn(path+"."+f.Key, "dropped state snapshot with invalid chapter")
			continue
		}
		var snap model.StateSnapshot
		if s, ok := Lookup(f.Value, "emotional"); ok {
			snap.Emotional, _ = String(s)
		}
		if s, ok := Lookup(f.Value, "knowledge"); ok {
			snap.Knowledge, _ = String(s)
		}
		out[ch] = snap
	}
	return out
}

func (v *validator) plotThreads(raw any) error {
	entries, err := v.entries(SectionPlotThreads, raw, "id")
	if err != nil {
		return err
	}
	for _, e := range entries {
		id := strings.TrimSpace(e.id)
		if id == "" {
			v.warn(e.path, "dropped plot thread without an id")
			continue
		}
		if _, ok := Fields(e.value); !ok {
			v.warn(e.path, "dropped plot thread: expected object, got %s", Kind(e.value))
			continue
		}

		t := model.PlotThread{
			ID:                id,
			Description:       v.optString(e, "description"),
			Status:            model.ThreadIntroduced,
			ChapterIntroduced: v.optInt(e, "chapter_introduced"),
		}
		if s, ok := Lookup(e.value, "status"); ok && s != nil {
			str, _ := String(s)
			status := model.ThreadStatus(strings.ToLower(strings.TrimSpace(str)))
			if !status.IsValid() {
				v.warn(e.path, "dropped plot thread with unknown status %q", str)
				continue
			}
			t.Status = status
		}
		if r, ok := Lookup(e.value, "chapter_resolved"); ok && r != nil {
			resolved, ok := Int(r)
			switch {
			case !ok:
				v.warn(e.path, "ignored non-numeric chapter_resolved")
			case t.Status != model.ThreadResolved:
				v.warn(e.path, "cleared chapter_resolved on a %s thread", t.Status)
			case resolved < t.ChapterIntroduced:
				v.warn(e.path, "raised chapter_resolved %d to chapter_introduced %d", resolved, t.ChapterIntroduced)
				resolved = t.ChapterIntroduced
				t.ChapterResolved = &resolved
			default:
				t.ChapterResolved = &resolved
			}
		}
		v.rec.PlotThreads.Put(id, t)
	}
	return nil
}

func (v *validator) worldElements(raw any) error {
	entries, err := v.entries(SectionWorldElements, raw, "id")
	if err != nil {
		return err
	}
	for _, e := range entries {
		id := strings.TrimSpace(e.id)
		if id == "" {
			v.warn(e.path, "dropped world element without an id")
			continue
		}
		if _, ok := Fields(e.value); !ok {
			v.warn(e.path, "dropped world element: expected object, got %s", Kind(e.value))
			continue
		}
		v.rec.WorldElements.Put(id, model.WorldElement{
			ID:                id,
			Category:          v.optString(e, "category"),
			Description:       v.optString(e, "description"),
			ChapterIntroduced: v.optInt(e, "chapter_introduced"),
		})
	}
	return nil
}

func (v *validator) timeline(raw any) error {
	items, ok := List(raw)
	if !ok {
		return &MalformedRecordError{Path: SectionTimeline, Reason: "expected array, got " + Kind(raw)}
	}
	for i, item := range items {
		e := entry{path: fmt.Sprintf("%s[%d]", SectionTimeline, i), value: item}
		if _, ok := Fields(item); !ok {
			v.warn(e.path, "dropped event: expected object, got %s", Kind(item))
			continue
		}
		desc := strings.TrimSpace(v.optString(e, "description"))
		if desc == "" {
			v.warn(e.path, "dropped event without a description")
			continue
		}
		ev := model.TimelineEvent{
			Description: desc,
			Chapter:     v.optInt(e, "chapter"),
			StoryTime:   v.optString(e, "story_time"),
		}
		if o, ok := Lookup(item, "story_order"); ok && o != nil {
			if n, ok := Int(o); ok {
				ev.StoryOrder = &n
			}
		}
		v.rec.AddEvent(ev)
	}
	return nil
}

func (v *validator) summaries(raw any) error {
	entries, err := v.entries(SectionSummaries, raw, "chapter")
	if err != nil {
		return err
	}
	for _, e := range entries {
		ch, ok := Int(e.id)
		if !ok || ch <= 0 {
			v.warn(e.path, "dropped summary with invalid chapter number %q", e.id)
			continue
		}
		// Legacy files stored the summary text directly.
		if text, ok := e.value.(string); ok {
			v.rec.Summaries.Put(ch, model.ChapterSummary{Summary: text, WordCount: len(strings.Fields(text))})
			continue
		}
		if _, ok := Fields(e.value); !ok {
			v.warn(e.path, "dropped summary: expected object, got %s", Kind(e.value))
			continue
		}
		v.rec.Summaries.Put(ch, model.ChapterSummary{
			Summary:   v.optString(e, "summary"),
			WordCount: v.optInt(e, "word_count"),
		})
	}
	return nil
}

func (v *validator) optString(e entry, key string) string {
	raw, ok := Lookup(e.value, key)
	if !ok || raw == nil {
		return ""
	}
	s, ok := String(raw)
	if !ok {
		v.warn(e.path+"."+key, "ignored %s value", Kind(raw))
	}
	return s
}

func (v *validator) optInt(e entry, key string) int {
	raw, ok := Lookup(e.value, key)
	if !ok || raw == nil {
		return 0
	}
	n, ok := Int(raw)
	if !ok {
		v.warn(e.path+"."+key, "ignored non-integer %s value", Kind(raw))
	}
	return n
}

// appendUnique appends the items of add not yet in dst, keeping order.
func appendUnique(dst []string, add ...string) []string {
	for _, a := range add {
		if !slices.Contains(dst, a) {
			dst = append(dst, a)
		}
	}
	return dst
}

// MergeAbilities returns existing extended with the new abilities not
// already present.
func MergeAbilities(existing []string, add []string) []string {
	return appendUnique(existing, add...)
}
