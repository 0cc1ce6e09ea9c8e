package persist

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/story-continuity/internal/model"
	"github.com/rcliao/story-continuity/internal/record"
)

func newTestPersister(t *testing.T, maxBackups int) *Persister {
	t.Helper()
	return New(Options{
		MaxBackups: maxBackups,
		Capacity:   100,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func recordWith(t *testing.T, names ...string) *record.Record {
	t.Helper()
	rec, err := record.New(100)
	require.NoError(t, err)
	for _, n := range names {
		rec.Characters.Put(n, model.NewCharacter(n))
	}
	return rec
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	p := newTestPersister(t, 0)
	path := filepath.Join(t.TempDir(), "nested", "story.json")

	require.NoError(t, p.Save(recordWith(t, "Mara", "Ilo"), path))

	res := p.Load(path)
	assert.Equal(t, StateLoaded, res.State)
	assert.Equal(t, path, res.Source)
	assert.False(t, res.RecoveredWithDataLoss)
	assert.Empty(t, res.Failures)
	assert.Equal(t, []string{"Mara", "Ilo"}, res.Record.Characters.Keys())
}

func TestLoad_MissingFileIsFresh(t *testing.T) {
	p := newTestPersister(t, 0)

	res := p.Load(filepath.Join(t.TempDir(), "story.json"))
	assert.Equal(t, StateFresh, res.State)
	assert.False(t, res.RecoveredWithDataLoss)
	require.NotNil(t, res.Record)
	assert.Equal(t, 0, res.Record.Characters.Len())
}

func TestSave_CrashBeforeRenameLeavesFileIntact(t *testing.T) {
	p := newTestPersister(t, 0)
	dir := t.TempDir()
	path := filepath.Join(dir, "story.json")

	require.NoError(t, p.Save(recordWith(t, "Mara"), path))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	crash := errors.New("simulated crash")
	p.beforeRename = func(string) error { return crash }
	err = p.Save(recordWith(t, "Mara", "Ilo", "Vess"), path)
	require.ErrorIs(t, err, crash)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestSave_BackupRetention(t *testing.T) {
	p := newTestPersister(t, 3)
	path := filepath.Join(t.TempDir(), "story.json")

	for i := range 6 {
		names := make([]string, i+1)
		for j := range names {
			names[j] = string(rune('A' + j))
		}
		require.NoError(t, p.Save(recordWith(t, names...), path))
	}

	backups, err := Backups(path)
	require.NoError(t, err)
	require.Len(t, backups, 3)

	// Newest backup holds the state before the last save: five characters.
	res := p.Load(backups[0].Path)
	assert.Equal(t, StateLoaded, res.State)
	assert.Equal(t, 5, res.Record.Characters.Len())

	oldest := p.Load(backups[2].Path)
	assert.Equal(t, 3, oldest.Record.Characters.Len())
}

func TestLoad_RecoversFromNewestValidBackup(t *testing.T) {
	p := newTestPersister(t, 0)
	path := filepath.Join(t.TempDir(), "story.json")

	require.NoError(t, p.Save(recordWith(t, "Mara"), path))
	require.NoError(t, p.Save(recordWith(t, "Mara", "Ilo"), path))
	require.NoError(t, p.Save(recordWith(t, "Mara", "Ilo", "Vess"), path))

	backups, err := Backups(path)
	require.NoError(t, err)
	require.Len(t, backups, 2)

	require.NoError(t, os.WriteFile(path, []byte(`{"characters": [`), 0o644))
	require.NoError(t, os.WriteFile(backups[0].Path, []byte(`[]`), 0o644))

	res := p.Load(path)
	assert.Equal(t, StateRecovered, res.State)
	assert.True(t, res.RecoveredWithDataLoss)
	assert.Equal(t, backups[1].Path, res.Source)
	assert.Equal(t, []string{"Mara"}, res.Record.Characters.Keys())
	require.Len(t, res.Failures, 2)

	var malformed *record.MalformedRecordError
	assert.ErrorAs(t, res.Failures[1], &malformed)
}

func TestLoad_EmptyFallback(t *testing.T) {
	p := newTestPersister(t, 0)
	path := filepath.Join(t.TempDir(), "story.json")

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	res := p.Load(path)
	assert.Equal(t, StateEmptyFallback, res.State)
	assert.True(t, res.RecoveredWithDataLoss)
	require.NotNil(t, res.Record)
	assert.Equal(t, 0, res.Record.Characters.Len())
	assert.Len(t, res.Failures, 1)
}

func TestLoad_EmptyFileFallsBack(t *testing.T) {
	p := newTestPersister(t, 0)
	path := filepath.Join(t.TempDir(), "story.json")

	require.NoError(t, p.Save(recordWith(t, "Mara"), path))
	require.NoError(t, p.Save(recordWith(t, "Mara", "Ilo"), path))
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	res := p.Load(path)
	assert.Equal(t, StateRecovered, res.State)
	assert.Equal(t, []string{"Mara"}, res.Record.Characters.Keys())
}

func TestLoad_MissingPrimaryWithBackup(t *testing.T) {
	p := newTestPersister(t, 0)
	path := filepath.Join(t.TempDir(), "story.json")

	require.NoError(t, p.Save(recordWith(t, "Mara"), path))
	require.NoError(t, p.Save(recordWith(t, "Mara", "Ilo"), path))
	require.NoError(t, os.Remove(path))

	res := p.Load(path)
	assert.Equal(t, StateRecovered, res.State)
	assert.True(t, res.RecoveredWithDataLoss)
	assert.Empty(t, res.Failures)
}

func TestBackups_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "story.json")
	for _, name := range []string{
		"story.json.notaulid.bak",
		"other.json.01HZY3K8Q2V6W1X7T9B4C5D6E7.bak",
		"story.json.01HZY3K8Q2V6W1X7T9B4C5D6E7",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "story.json.01HZY3K8Q2V6W1X7T9B4C5D6E7.bak"), []byte("{}"), 0o644))

	backups, err := Backups(path)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, "01HZY3K8Q2V6W1X7T9B4C5D6E7", backups[0].ID)
	assert.True(t, backups[0].TakenAt.After(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestBackups_MissingDir(t *testing.T) {
	backups, err := Backups(filepath.Join(t.TempDir(), "nope", "story.json"))
	require.NoError(t, err)
	assert.Empty(t, backups)
}
