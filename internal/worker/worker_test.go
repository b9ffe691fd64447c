package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomcal/internal/export"
	"roomcal/internal/source"
)

const fixture = `
terms:
  - {term: Spring 2025, start_date: 2025-01-13, end_date: 2025-05-02}
  - {term: Summer 2025, start_date: 2025-06-02, end_date: 2025-07-25}
sessions:
  - id: s1
    course_code: CS 101
    term: Spring 2025
    rooms: [Smith 201, Baker 110]
    meeting_patterns:
      - {day: Mon, start_time: "9am", end_time: "9:50am"}
`

type fakeLoader struct {
	calls atomic.Int32
	err   error
}

func (f *fakeLoader) Load(context.Context, string) (*source.Dataset, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return source.Decode([]byte(fixture))
}

func newExporter(t *testing.T) *export.Exporter {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	e, err := export.New(export.Options{
		Location: loc,
		Now:      func() time.Time { return time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return e
}

func TestRunOnce_WritesEveryTerm(t *testing.T) {
	dir := t.TempDir()
	var refreshed atomic.Int32
	w := New(Config{Source: "feed.yaml", OutputDir: dir}, &fakeLoader{}, newExporter(t))
	w.OnRun = func() { refreshed.Add(1) }

	results, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Len(t, results[0].Documents, 2)
	assert.Empty(t, results[1].Documents)
	assert.Equal(t, int32(1), refreshed.Load())

	for _, name := range []string{
		"Baker_110_Spring_2025_20250110.ics",
		"Smith_201_Spring_2025_20250110.ics",
		"rooms_Spring_2025_20250110.zip",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestRunOnce_SelectedAndUnknownTerms(t *testing.T) {
	w := New(Config{OutputDir: t.TempDir(), Terms: []string{"Spring 2025", "Autumn 1999"}}, &fakeLoader{}, newExporter(t))

	results, err := w.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrUnknownTerm)
	require.Len(t, results, 1)
	assert.Equal(t, "Spring 2025", results[0].Term)
}

func TestRunOnce_LoadFailure(t *testing.T) {
	w := New(Config{OutputDir: t.TempDir()}, &fakeLoader{err: errors.New("offline")}, newExporter(t))
	_, err := w.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	loader := &fakeLoader{}
	w := New(Config{OutputDir: t.TempDir(), Spec: "0 3 * * *"}, loader, newExporter(t))
	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, int32(1), loader.calls.Load())
	w.Stop()
	w.Stop()

	bad := New(Config{OutputDir: t.TempDir(), Spec: "whenever"}, loader, newExporter(t))
	assert.Error(t, bad.Start(context.Background()))

	none := New(Config{OutputDir: t.TempDir()}, loader, newExporter(t))
	require.NoError(t, none.Start(context.Background()))
	none.Stop()
}
