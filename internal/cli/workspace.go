package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rcliao/story-continuity/internal/config"
	"github.com/rcliao/story-continuity/internal/journal"
	"github.com/rcliao/story-continuity/internal/persist"
	"github.com/rcliao/story-continuity/internal/record"
	"github.com/rcliao/story-continuity/internal/tracker"
)

// workspace ties one configured work to its record file and the journal.
// Every mutation loads, changes and saves the record.
type workspace struct {
	cfg       *config.Config
	logger    *slog.Logger
	persister *persist.Persister
}

func newWorkspace(c *config.Config, l *slog.Logger) *workspace {
	if l == nil {
		l = slog.Default()
	}
	return &workspace{
		cfg:    c,
		logger: l,
		persister: persist.New(persist.Options{
			MaxBackups: c.MaxBackups,
			Capacity:   c.Capacity,
			Logger:     l,
		}),
	}
}

func (w *workspace) path() string { return w.cfg.RecordPath() }

func (w *workspace) load() (*tracker.Tracker, persist.Result) {
	res := w.persister.Load(w.path())
	if res.RecoveredWithDataLoss {
		w.logger.Warn("continuity record recovered with data loss",
			"work", w.cfg.Work, "state", res.State, "source", res.Source, "failures", len(res.Failures))
	}
	return tracker.New(res.Record, tracker.WithLogger(w.logger)), res
}

// mutate runs fn against the loaded record and saves it when fn succeeds.
func (w *workspace) mutate(fn func(*tracker.Tracker) error) ([]record.Warning, error) {
	tr, _ := w.load()
	if err := fn(tr); err != nil {
		return nil, err
	}
	if err := w.persister.Save(tr.Record(), w.path()); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	return tr.Warnings(), nil
}

func (w *workspace) openJournal() (*journal.Journal, error) {
	return journal.Open(w.cfg.JournalPath())
}

// decodePayload accepts a facts payload as JSON, falling back to YAML.
func decodePayload(data []byte) (any, error) {
	raw, err := record.Decode(data)
	if err == nil {
		return raw, nil
	}
	raw, yerr := record.DecodeYAML(data)
	if yerr != nil {
		return nil, fmt.Errorf("payload is neither JSON (%v) nor YAML (%v)", err, yerr)
	}
	return raw, nil
}

type applyResult struct {
	tracker.Report
	Rejected  []string `json:"rejected,omitempty"`
	JournalID string   `json:"journal_id,omitempty"`
}

// apply merges a facts payload into the record and journals it. chapter
// overrides the payload's chapter when positive. Rejected thread
// transitions do not stop the rest of the payload.
func (w *workspace) apply(ctx context.Context, data []byte, chapter int) (*applyResult, error) {
	raw, err := decodePayload(data)
	if err != nil {
		return nil, err
	}
	f, parseWarnings, err := tracker.ParseFacts(raw)
	if err != nil {
		return nil, err
	}
	if chapter > 0 {
		f.Chapter = chapter
	}
	if f.Chapter <= 0 {
		return nil, fmt.Errorf("%w: %d (set \"chapter\" in the payload or pass --chapter)", tracker.ErrInvalidChapter, f.Chapter)
	}

	var (
		rep      tracker.Report
		applyErr error
	)
	if _, err := w.mutate(func(tr *tracker.Tracker) error {
		rep, applyErr = tr.ApplyFacts(f)
		return nil
	}); err != nil {
		return nil, err
	}
	rep.Warnings = append(parseWarnings, rep.Warnings...)

	res := &applyResult{Report: rep}
	for _, e := range unjoin(applyErr) {
		res.Rejected = append(res.Rejected, e.Error())
	}

	warnings := append(warningStrings(rep.Warnings), res.Rejected...)
	res.JournalID = w.journal(ctx, f.Chapter, raw, warnings)
	return res, nil
}

// change is one edit made by a single-purpose verb together with the
// facts payload that reproduces it on replay.
type change struct {
	chapter int
	payload map[string]any
	apply   func(*tracker.Tracker) error
}

// factsPayload wraps one section of a facts payload.
func factsPayload(chapter int, section string, value any) map[string]any {
	return map[string]any{"chapter": chapter, section: value}
}

// commit applies c like mutate and journals its payload once saved.
func (w *workspace) commit(ctx context.Context, c change) ([]record.Warning, error) {
	warnings, err := w.mutate(c.apply)
	if err != nil {
		return nil, err
	}
	w.journal(ctx, c.chapter, c.payload, warningStrings(warnings))
	return warnings, nil
}

// journal appends a payload to the facts journal and returns the entry
// id. The record is already saved, so failures are only logged.
func (w *workspace) journal(ctx context.Context, chapter int, payload any, warnings []string) string {
	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.Warn("facts not journaled", "err", err)
		return ""
	}
	j, err := w.openJournal()
	if err != nil {
		w.logger.Warn("facts not journaled", "err", err)
		return ""
	}
	defer j.Close()
	e, err := j.Append(ctx, journal.AppendParams{
		Work: w.cfg.Work, Chapter: chapter, Payload: data, Warnings: warnings,
	})
	if err != nil {
		w.logger.Warn("facts not journaled", "err", err)
		return ""
	}
	return e.ID
}

func warningStrings(ws []record.Warning) []string {
	out := make([]string, 0, len(ws))
	for _, wn := range ws {
		out = append(out, wn.String())
	}
	return out
}

func unjoin(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

type rebuildResult struct {
	Path     string `json:"path"`
	Entries  int    `json:"entries"`
	Rejected int    `json:"rejected"`
}

// rebuild replays the journal of the work (applied payloads and verb
// edits alike) into a fresh record and saves it over the current file,
// which is kept as a backup.
func (w *workspace) rebuild(ctx context.Context) (*rebuildResult, error) {
	rec, err := record.New(w.cfg.Capacity)
	if err != nil {
		return nil, err
	}
	tr := tracker.New(rec, tracker.WithLogger(w.logger))

	j, err := w.openJournal()
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	res := &rebuildResult{Path: w.path()}
	err = j.Replay(ctx, w.cfg.Work, func(e journal.Entry) error {
		raw, err := record.Decode(e.Payload)
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.ID, err)
		}
		f, _, err := tracker.ParseFacts(raw)
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.ID, err)
		}
		f.Chapter = e.Chapter
		if _, err := tr.ApplyFacts(f); err != nil {
			res.Rejected += len(unjoin(err))
			w.logger.Debug("replayed transition rejected", "entry", e.ID, "err", err)
		}
		res.Entries++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	if res.Entries == 0 {
		return nil, errors.New("no journal entries for work " + w.cfg.Work)
	}
	if err := w.persister.Save(tr.Record(), w.path()); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	return res, nil
}
