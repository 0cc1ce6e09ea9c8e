// Package persist saves continuity records as JSON files with atomic
// replacement and rotating backups, and loads them back with newest-first
// backup recovery.
package persist

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/story-continuity/internal/bounded"
	"github.com/rcliao/story-continuity/internal/record"
)

// DefaultMaxBackups is the number of backups kept when Options leaves it
// unset.
const DefaultMaxBackups = 5

const backupExt = ".bak"

// State is the outcome of Load.
type State string

const (
	// StateLoaded means the primary file validated.
	StateLoaded State = "loaded"
	// StateRecovered means the primary file was unusable and a backup
	// validated instead.
	StateRecovered State = "recovered"
	// StateEmptyFallback means neither the primary file nor any backup
	// validated and an empty record was returned.
	StateEmptyFallback State = "empty_fallback"
	// StateFresh means there was no primary file and no backup.
	StateFresh State = "fresh"
)

// Result is what Load hands back. Record is never nil.
type Result struct {
	Record *record.Record
	State  State
	// Source is the file the record came from; empty for fresh and empty
	// fallback results.
	Source                string
	RecoveredWithDataLoss bool
	Warnings              []record.Warning
	// Failures holds the reason each rejected candidate was skipped.
	Failures []error
}

// Options configures a Persister.
type Options struct {
	MaxBackups int
	Capacity   int
	Logger     *slog.Logger
	Now        func() time.Time
}

// Persister reads and writes record files.
type Persister struct {
	maxBackups int
	capacity   int
	logger     *slog.Logger
	now        func() time.Time
	entropy    io.Reader

	// beforeRename runs after the temp file is synced and closed. Tests
	// use it to simulate a crash.
	beforeRename func(tmp string) error
}

// New returns a Persister with defaults applied to zero options.
func New(opts Options) *Persister {
	p := &Persister{
		maxBackups: opts.MaxBackups,
		capacity:   opts.Capacity,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if p.maxBackups <= 0 {
		p.maxBackups = DefaultMaxBackups
	}
	if p.capacity <= 0 {
		p.capacity = bounded.DefaultCapacity
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	p.entropy = ulid.Monotonic(rand.New(rand.NewSource(p.now().UnixNano())), 0)
	return p
}

// Save writes rec to path. An existing file is first copied to a backup;
// the new content goes to a temp file in the same directory which is
// synced and renamed over path, so a crash leaves either the old or the
// new file in place.
func (p *Persister) Save(rec *record.Record, path string) error {
	data, err := rec.MarshalJSON()
	if err != nil {
		return fmt.Errorf("persist: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persist: create dir: %w", err)
	}

	if err := p.backup(path); err != nil {
		return err
	}
	if err := p.writeAtomic(path, data); err != nil {
		return err
	}
	if err := p.prune(path); err != nil {
		p.logger.Warn("prune backups failed", "path", path, "err", err)
	}
	p.logger.Debug("record saved", "path", path, "bytes", len(data))
	return nil
}

func (p *Persister) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("persist: create temp: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("persist: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("persist: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist: close temp: %w", err)
	}
	if p.beforeRename != nil {
		if err := p.beforeRename(tmpName); err != nil {
			return fmt.Errorf("persist: %w", err)
		}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("persist: rename: %w", err)
	}
	committed = true
	return nil
}

// backup copies the current file at path, if any, to a new backup.
func (p *Persister) backup(path string) error {
	src, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("persist: read current: %w", err)
	}
	id, err := ulid.New(ulid.Timestamp(p.now()), p.entropy)
	if err != nil {
		return fmt.Errorf("persist: backup id: %w", err)
	}
	name := backupName(path, id)
	if err := os.WriteFile(name, src, 0o644); err != nil {
		return fmt.Errorf("persist: write backup: %w", err)
	}
	return nil
}

func (p *Persister) prune(path string) error {
	backups, err := Backups(path)
	if err != nil {
		return err
	}
	var errs []error
	for _, b := range backups[min(len(backups), p.maxBackups):] {
		if err := os.Remove(b.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Backup is one backup file of a record.
type Backup struct {
	Path    string    `json:"path"`
	ID      string    `json:"id"`
	TakenAt time.Time `json:"taken_at"`
}

func backupName(path string, id ulid.ULID) string {
	return path + "." + id.String() + backupExt
}

// Backups lists the backups of path, newest first. A missing directory
// yields no backups.
func Backups(path string) ([]Backup, error) {
	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persist: list backups: %w", err)
	}

	prefix := filepath.Base(path) + "."
	var out []Backup
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, backupExt) {
			continue
		}
		id, err := ulid.ParseStrict(strings.TrimSuffix(strings.TrimPrefix(name, prefix), backupExt))
		if err != nil {
			continue
		}
		out = append(out, Backup{
			Path:    filepath.Join(dir, name),
			ID:      id.String(),
			TakenAt: ulid.Time(id.Time()),
		})
	}
	slices.SortFunc(out, func(a, b Backup) int { return strings.Compare(b.ID, a.ID) })
	return out, nil
}

// Load reads the record at path. It never fails: an unusable primary file
// falls back to backups newest first, and when none validates an empty
// record is returned with RecoveredWithDataLoss set.
func (p *Persister) Load(path string) Result {
	var res Result

	rec, warnings, err := p.attempt(path)
	switch {
	case err == nil:
		res.Record, res.State, res.Source, res.Warnings = rec, StateLoaded, path, warnings
		p.logWarnings(path, warnings)
		return res
	case errors.Is(err, os.ErrNotExist):
		// Missing primary: fall through to backups; fresh when there are none.
	default:
		res.Failures = append(res.Failures, fmt.Errorf("%s: %w", path, err))
		p.logger.Warn("record unreadable, trying backups", "path", path, "err", err)
	}
	primaryMissing := errors.Is(err, os.ErrNotExist)

	backups, err := Backups(path)
	if err != nil {
		res.Failures = append(res.Failures, err)
	}
	for _, b := range backups {
		rec, warnings, err := p.attempt(b.Path)
		if err != nil {
			res.Failures = append(res.Failures, fmt.Errorf("%s: %w", b.Path, err))
			p.logger.Warn("backup unreadable", "path", b.Path, "err", err)
			continue
		}
		res.Record, res.State, res.Source, res.Warnings = rec, StateRecovered, b.Path, warnings
		res.RecoveredWithDataLoss = true
		p.logWarnings(b.Path, warnings)
		p.logger.Warn("record recovered from backup", "path", path, "backup", b.Path)
		return res
	}

	res.Record, _ = record.New(p.capacity)
	if primaryMissing && len(backups) == 0 {
		res.State = StateFresh
		return res
	}
	res.State = StateEmptyFallback
	res.RecoveredWithDataLoss = true
	p.logger.Warn("no usable record or backup, starting empty", "path", path, "backups", len(backups))
	return res
}

func (p *Persister) attempt(path string) (*record.Record, []record.Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil, errors.New("empty file")
	}
	raw, err := record.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return record.Validate(raw, p.capacity)
}

func (p *Persister) logWarnings(path string, warnings []record.Warning) {
	for _, w := range warnings {
		p.logger.Warn("record entry dropped or repaired", "path", path, "entry", w.Path, "msg", w.Message)
	}
}
