package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomcal/internal/export"
)

func loadFixture(t *testing.T) *Dataset {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", "spring.yaml"))
	require.NoError(t, err)
	ds, err := Decode(body)
	require.NoError(t, err)
	return ds
}

func TestDecode_YAML(t *testing.T) {
	ds := loadFixture(t)

	assert.Equal(t, []string{"Spring 2025", "Fall 2025"}, ds.TermNames())
	require.Len(t, ds.Sessions, 3)

	spring, err := ds.Term("Spring 2025")
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2025, Month: 1, Day: 13}, spring.StartDate)
	require.Len(t, spring.Exceptions, 1)
	assert.Equal(t, "Snow day", spring.Exceptions[0].Label)

	math := ds.Sessions[1]
	assert.Equal(t, "002", math.Section)
	require.Len(t, math.MeetingPatterns, 1)
	p := math.MeetingPatterns[0]
	assert.Equal(t, "1:00pm", p.StartTime)
	require.NotNil(t, p.EndDate)
	assert.Equal(t, civil.Date{Year: 2025, Month: 3, Day: 28}, *p.EndDate)
	assert.Nil(t, p.StartDate)
}

func TestDecode_JSON(t *testing.T) {
	body := []byte(`{
		"terms": [{"term": "Summer 2025", "start_date": "2025-06-02", "end_date": "2025-07-25"}],
		"sessions": [{"id": "s1", "term": "Summer 2025", "rooms": ["Lab 1"],
			"meeting_patterns": [{"day": "R", "start_time": "9am", "end_time": "10am", "start_date": "2025-06-05"}]}]
	}`)
	ds, err := Decode(body)
	require.NoError(t, err)
	require.Len(t, ds.Sessions, 1)
	require.NotNil(t, ds.Sessions[0].MeetingPatterns[0].StartDate)
	assert.Equal(t, civil.Date{Year: 2025, Month: 6, Day: 5}, *ds.Sessions[0].MeetingPatterns[0].StartDate)
}

func TestDecode_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"empty":           "  \n",
		"bad yaml":        "terms: [",
		"missing id":      "sessions:\n  - term: T\n",
		"missing term":    "terms:\n  - start_date: 2025-01-01\n    end_date: 2025-02-01\n",
		"reversed window": "terms:\n  - term: T\n    start_date: 2025-02-01\n    end_date: 2025-01-01\n",
		"duplicate term":  "terms:\n  - {term: T, start_date: 2025-01-01, end_date: 2025-02-01}\n  - {term: T, start_date: 2025-01-01, end_date: 2025-02-01}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(body))
			assert.Error(t, err)
		})
	}

	_, err := Decode([]byte("terms:\n  - term: T\n    start_date: 2025-02-01\n    end_date: 2025-01-01\n"))
	assert.ErrorIs(t, err, export.ErrInvalidTerm)
}

func TestDataset_Lookups(t *testing.T) {
	ds := loadFixture(t)

	_, err := ds.Term("Winter 2030")
	assert.ErrorIs(t, err, ErrUnknownTerm)

	assert.Len(t, ds.SessionsForTerm("Spring 2025"), 2)
	assert.Len(t, ds.SessionsForTerm(" Fall 2025 "), 1)
	assert.Equal(t, []string{"Baker 110", "Smith 201"}, ds.Rooms("Spring 2025"))
	assert.Equal(t, []string{"Baker 110"}, ds.Rooms("Fall 2025"))
}

func TestDataset_Request(t *testing.T) {
	ds := loadFixture(t)

	req, err := ds.Request("Spring 2025", nil)
	require.NoError(t, err)
	assert.Equal(t, "Spring 2025", req.Term.Term)
	assert.Equal(t, []string{"Baker 110", "Smith 201"}, req.Rooms)
	assert.Len(t, req.Sessions, 2)
	assert.Len(t, req.Exceptions, 1)
	require.NoError(t, req.Validate())

	req, err = ds.Request("Spring 2025", []string{"Smith 201"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Smith 201"}, req.Rooms)

	_, err = ds.Request("nope", nil)
	assert.True(t, errors.Is(err, ErrUnknownTerm))
}

func TestFetcher_LocalFile(t *testing.T) {
	f := NewFetcher(t.TempDir())
	ds, err := f.Load(context.Background(), filepath.Join("testdata", "spring.yaml"))
	require.NoError(t, err)
	assert.Len(t, ds.Terms, 2)

	_, err = f.Fetch(context.Background(), "")
	assert.Error(t, err)
	_, err = f.Fetch(context.Background(), filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}

func TestFetcher_RemoteCachesWithETag(t *testing.T) {
	body, err := os.ReadFile(filepath.Join("testdata", "spring.yaml"))
	require.NoError(t, err)

	var hits, notModified atomic.Int32
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	ctx := context.Background()
	url := srv.URL + "/feed.yaml?token=secret"

	first, err := f.Fetch(ctx, url)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, body, first.Body)

	second, err := f.Fetch(ctx, url)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, body, second.Body)
	assert.Equal(t, int32(1), notModified.Load())

	fail.Store(true)
	third, err := f.Fetch(ctx, url)
	require.NoError(t, err)
	assert.True(t, third.FromCache)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetcher_RemoteErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(t.TempDir()).Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.edu/...(redacted)", redactURL("https://example.edu/feeds/x.yaml?token=abc"))
	assert.Equal(t, "http://host:8080/...(redacted)", redactURL("http://host:8080"))
	assert.Equal(t, "source://...(redacted)", redactURL("not a url"))
}
