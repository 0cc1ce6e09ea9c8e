// Package tracker applies facts extracted from generated chapters to a
// continuity record.
//
// Loosely shaped input (relationships as text, lists or mappings,
// abilities as a string or list) is normalized rather than rejected: bad
// sub-values are skipped and recorded as warnings while the rest of the
// update proceeds. Only contract violations return errors.
//
// A Tracker is not safe for concurrent use; merges must be applied one
// chapter at a time.
package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rcliao/story-continuity/internal/model"
	"github.com/rcliao/story-continuity/internal/record"
)

var (
	ErrEmptyName      = errors.New("tracker: character name must not be empty")
	ErrEmptyID        = errors.New("tracker: id must not be empty")
	ErrEmptyText      = errors.New("tracker: description must not be empty")
	ErrInvalidStatus  = errors.New("tracker: invalid plot thread status")
	ErrThreadNotFound = errors.New("tracker: plot thread not found")
	ErrInvalidChapter = errors.New("tracker: chapter must be positive")
	ErrMalformedFacts = errors.New("tracker: facts payload must be an object")
)

// InvalidTransitionError is returned when a plot thread update would move
// its status backwards or resolve it before it was introduced.
type InvalidTransitionError struct {
	ThreadID string
	From     model.ThreadStatus
	To       model.ThreadStatus
	Reason   string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("tracker: invalid transition for thread %q: %s -> %s", e.ThreadID, e.From, e.To)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// worldSeparator joins accumulated world element descriptions.
const worldSeparator = "; "

// Tracker owns the mutation API of one record.
type Tracker struct {
	rec      *record.Record
	chapter  int
	logger   *slog.Logger
	warnings []record.Warning
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger used for merge warnings.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// New returns a tracker mutating rec.
func New(rec *record.Record, opts ...Option) *Tracker {
	t := &Tracker{rec: rec, logger: slog.Default()}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Record returns the record being tracked.
func (t *Tracker) Record() *record.Record { return t.rec }

// BeginChapter sets the chapter that subsequent character updates are
// attributed to.
func (t *Tracker) BeginChapter(n int) { t.chapter = n }

// Chapter returns the current chapter cursor.
func (t *Tracker) Chapter() int { return t.chapter }

// Warnings returns and clears the warnings recorded since the last call.
func (t *Tracker) Warnings() []record.Warning {
	w := t.warnings
	t.warnings = nil
	return w
}

func (t *Tracker) warn(path, msg string) {
	t.warnings = append(t.warnings, record.Warning{Path: path, Message: msg})
	t.logger.Warn("continuity merge skipped a value", "path", path, "problem", msg, "chapter", t.chapter)
}

// AddOrUpdateCharacter creates or updates a character from loosely typed
// fields. Recognised keys: role, description, relationships, abilities,
// emotional_state, knowledge. Existing relationships and abilities are
// never removed.
func (t *Tracker) AddOrUpdateCharacter(name string, fields map[string]any) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	path := record.SectionCharacters + "." + name

	c, ok := t.rec.Characters.Get(name)
	if ok {
		c = c.Clone()
	} else {
		if other, ok := t.similarCharacter(name); ok {
			t.warn(path, fmt.Sprintf("new character may duplicate %q", other))
		}
		c = model.NewCharacter(name)
		c.FirstChapter = t.chapter
	}
	if t.chapter > c.LastChapter {
		c.LastChapter = t.chapter
	}

	if s, ok := t.text(path, "role", fields); ok && s != "" {
		c.Role = s
	}
	if s, ok := t.text(path, "description", fields); ok && s != "" {
		c.Description = s
	}

	rels, problems := record.NormalizeRelationships(fields["relationships"], t.chapter)
	for _, p := range problems {
		t.warn(path, p)
	}
	mergeRelationships(c.Relationships, rels)

	abilities, problems := record.NormalizeAbilities(fields["abilities"])
	for _, p := range problems {
		t.warn(path, p)
	}
	c.Abilities = record.MergeAbilities(c.Abilities, abilities)

	emotional, _ := t.text(path, "emotional_state", fields)
	knowledge, _ := t.text(path, "knowledge", fields)
	switch {
	case emotional == "" && knowledge == "":
	case t.chapter <= 0:
		t.warn(path+".states", "dropped state snapshot: no chapter set")
	default:
		if c.States == nil {
			c.States = map[int]model.StateSnapshot{}
		}
		snap := c.States[t.chapter]
		if emotional != "" {
			snap.Emotional = emotional
		}
		if knowledge != "" {
			snap.Knowledge = knowledge
		}
		c.States[t.chapter] = snap
	}

	t.rec.Characters.Put(name, c)
	return nil
}

// mergeRelationships copies add into dst. A free-text entry whose text is
// already stored under another synthetic key is skipped so that repeated
// payloads do not accumulate copies.
func mergeRelationships(dst, add map[string]string) {
	for k, v := range add {
		if record.IsSyntheticRelationship(k) && dst[k] != v && hasSyntheticValue(dst, v) {
			continue
		}
		dst[k] = v
	}
}

func hasSyntheticValue(m map[string]string, v string) bool {
	for k, existing := range m {
		if existing == v && record.IsSyntheticRelationship(k) {
			return true
		}
	}
	return false
}

func (t *Tracker) text(path, key string, fields map[string]any) (string, bool) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return "", false
	}
	s, ok := record.String(raw)
	if !ok {
		t.warn(path+"."+key, "unsupported "+record.Kind(raw)+" value")
		return "", false
	}
	return strings.TrimSpace(s), true
}

// AddPlotThread records a new thread. Adding an id that already exists
// leaves the thread untouched.
func (t *Tracker) AddPlotThread(id, description string, chapter int) error {
	id = strings.TrimSpace(id)
	description = strings.TrimSpace(description)
	if id == "" {
		return ErrEmptyID
	}
	if description == "" {
		return ErrEmptyText
	}
	if t.rec.PlotThreads.Has(id) {
		return nil
	}
	t.rec.PlotThreads.Put(id, model.PlotThread{
		ID:                id,
		Description:       description,
		Status:            model.ThreadIntroduced,
		ChapterIntroduced: chapter,
	})
	return nil
}

// UpdatePlotThreadStatus moves a thread forward. Keeping the current
// status is allowed; moving backwards returns *InvalidTransitionError and
// leaves the thread unchanged.
func (t *Tracker) UpdatePlotThreadStatus(id string, status model.ThreadStatus, chapter int) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	th, ok := t.rec.PlotThreads.Get(strings.TrimSpace(id))
	if !ok {
		return fmt.Errorf("%w: %q", ErrThreadNotFound, id)
	}
	if status.Rank() < th.Status.Rank() {
		return &InvalidTransitionError{ThreadID: th.ID, From: th.Status, To: status}
	}
	if status == model.ThreadResolved {
		if chapter < th.ChapterIntroduced {
			return &InvalidTransitionError{
				ThreadID: th.ID, From: th.Status, To: status,
				Reason: fmt.Sprintf("resolved in chapter %d before introduction in chapter %d", chapter, th.ChapterIntroduced),
			}
		}
		if th.Status == model.ThreadResolved {
			return nil
		}
		resolved := chapter
		th.ChapterResolved = &resolved
	}
	th.Status = status
	t.rec.PlotThreads.Put(th.ID, th)
	return nil
}

// AddWorldElement records a world element. For an existing id the new
// description is appended to the accumulated one; category and
// introduction chapter stay as first recorded.
func (t *Tracker) AddWorldElement(id, category, description string, chapter int) error {
	id = strings.TrimSpace(id)
	description = strings.TrimSpace(description)
	if id == "" {
		return ErrEmptyID
	}

	el, ok := t.rec.WorldElements.Get(id)
	if !ok {
		t.rec.WorldElements.Put(id, model.WorldElement{
			ID:                id,
			Category:          strings.TrimSpace(category),
			Description:       description,
			ChapterIntroduced: chapter,
		})
		return nil
	}

	if c := strings.TrimSpace(category); c != "" && el.Category != "" && c != el.Category {
		t.warn(record.SectionWorldElements+"."+id, fmt.Sprintf("category %q kept, ignored %q", el.Category, c))
	}
	if el.Category == "" {
		el.Category = strings.TrimSpace(category)
	}
	switch {
	case description == "":
	case el.Description == "":
		el.Description = description
	case !containsSegment(el.Description, description):
		el.Description += worldSeparator + description
	}
	t.rec.WorldElements.Put(id, el)
	return nil
}

func containsSegment(accumulated, s string) bool {
	for _, seg := range strings.Split(accumulated, worldSeparator) {
		if seg == s {
			return true
		}
	}
	return false
}

// AddChapterSummary stores the summary of a chapter, replacing any
// previous summary of the same chapter.
func (t *Tracker) AddChapterSummary(chapter int, summary string, wordCount int) error {
	if chapter <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChapter, chapter)
	}
	if wordCount <= 0 {
		wordCount = len(strings.Fields(summary))
	}
	t.rec.Summaries.Put(chapter, model.ChapterSummary{Summary: strings.TrimSpace(summary), WordCount: wordCount})
	return nil
}

// AddTimelineEvent records an event. An identical event (same description
// and chapter) is ignored.
func (t *Tracker) AddTimelineEvent(description string, chapter int, storyTime string, storyOrder *int) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return ErrEmptyText
	}
	t.rec.AddEvent(model.TimelineEvent{
		Description: description,
		Chapter:     chapter,
		StoryTime:   strings.TrimSpace(storyTime),
		StoryOrder:  storyOrder,
	})
	return nil
}
