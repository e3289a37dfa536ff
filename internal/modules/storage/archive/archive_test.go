package archive

import (
	"archive/zip"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/surveykit/hooks/internal/config"
)

type fakeReader struct {
	rows    map[string][]map[string]interface{}
	cutoffs map[string]time.Time
	fail    map[string]bool
}

func (f *fakeReader) ReadTable(_ context.Context, spec TableSpec, cutoff time.Time) ([]map[string]interface{}, error) {
	if f.cutoffs == nil {
		f.cutoffs = map[string]time.Time{}
	}
	f.cutoffs[spec.Name] = cutoff
	if f.fail[spec.Name] {
		return nil, fmt.Errorf("read %s failed", spec.Name)
	}
	return f.rows[spec.Name], nil
}

type fakePruner struct {
	cutoff time.Time
	n      int64
	err    error
	calls  int
}

func (f *fakePruner) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return f.n, f.err
}

func newTestArchiver(t *testing.T, reader TableReader, pruner Pruner) *Archiver {
	t.Helper()
	cfg := &config.AppConfig{}
	cfg.Paths.Archives = t.TempDir()
	cfg.Archive.RetentionDays = 90
	return NewArchiver(cfg, reader, pruner, nil)
}

func decodeBSONRows(t *testing.T, data []byte) []map[string]interface{} {
	t.Helper()
	out := []map[string]interface{}{}
	for len(data) >= 4 {
		n := int(binary.LittleEndian.Uint32(data[:4]))
		require.GreaterOrEqual(t, n, 5)
		require.LessOrEqual(t, n, len(data))
		var doc map[string]interface{}
		require.NoError(t, bson.Unmarshal(data[:n], &doc))
		out = append(out, doc)
		data = data[n:]
	}
	require.Empty(t, data)
	return out
}

func readZipEntry(t *testing.T, r *zip.ReadCloser, name string) []byte {
	t.Helper()
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return data
	}
	t.Fatalf("zip entry %s not found", name)
	return nil
}

func TestRunWritesArchiveZip(t *testing.T) {
	reader := &fakeReader{rows: map[string][]map[string]interface{}{
		"hook_events": {
			{"id": "ev-1", "survey_id": int64(100), "success": true},
			{"id": "ev-2", "survey_id": int64(100), "success": false},
		},
		"survey_hooks": {{"id": "sh-1", "survey_id": int64(100)}},
		"options":      {{"name": "hooks_enabled", "value": "1"}},
	}}
	pruner := &fakePruner{n: 2}
	a := newTestArchiver(t, reader, pruner)

	now := time.Date(2026, 3, 15, 4, 30, 0, 0, time.UTC)
	report, err := a.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, "archive-2026-03-15T04-30-00.zip", report.Filename)
	assert.Equal(t, map[string]int{"hook_events": 2, "survey_hooks": 1, "options": 1}, report.Tables)
	assert.Equal(t, int64(2), report.PrunedEvents)
	assert.Empty(t, report.UploadedTo)

	wantCutoff := now.AddDate(0, 0, -90)
	assert.True(t, pruner.cutoff.Equal(wantCutoff))
	assert.True(t, reader.cutoffs["hook_events"].Equal(wantCutoff))

	r, err := zip.OpenReader(filepath.Join(a.dir, report.Filename))
	require.NoError(t, err)
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{
		"surveykit-hooks/db/hook_events.bson",
		"surveykit-hooks/db/survey_hooks.bson",
		"surveykit-hooks/db/options.bson",
		"surveykit-hooks/manifest.json",
	}, names)

	var manifest Manifest
	require.NoError(t, json.Unmarshal(readZipEntry(t, r, "surveykit-hooks/manifest.json"), &manifest))
	assert.Equal(t, "surveykit-hooks-bson", manifest.Format)
	assert.Equal(t, 1, manifest.Version)
	assert.Equal(t, "mysql", manifest.Engine)
	assert.True(t, manifest.Cutoff.Equal(wantCutoff))
	assert.Equal(t, []string{"hook_events", "survey_hooks", "options"}, manifest.Tables)

	docs := decodeBSONRows(t, readZipEntry(t, r, "surveykit-hooks/db/hook_events.bson"))
	require.Len(t, docs, 2)
	assert.Equal(t, "ev-1", docs[0]["id"])
	assert.Equal(t, int64(100), docs[0]["survey_id"])
	assert.Equal(t, true, docs[0]["success"])
	assert.Equal(t, "ev-2", docs[1]["id"])
}

func TestRunSkipsUnreadableTables(t *testing.T) {
	reader := &fakeReader{
		rows: map[string][]map[string]interface{}{
			"hook_events": {{"id": "ev-1"}},
			"options":     {{"name": "hooks_enabled"}},
		},
		fail: map[string]bool{"survey_hooks": true},
	}
	pruner := &fakePruner{}
	a := newTestArchiver(t, reader, pruner)

	report, err := a.Run(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"hook_events": 1, "options": 1}, report.Tables)
	assert.NotContains(t, report.Tables, "survey_hooks")

	r, err := zip.OpenReader(filepath.Join(a.dir, report.Filename))
	require.NoError(t, err)
	defer r.Close()

	var manifest Manifest
	require.NoError(t, json.Unmarshal(readZipEntry(t, r, "surveykit-hooks/manifest.json"), &manifest))
	assert.Equal(t, []string{"hook_events", "options"}, manifest.Tables)
}

func TestRunRejectsNonPositiveRetention(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.Paths.Archives = t.TempDir()
	pruner := &fakePruner{}
	a := NewArchiver(cfg, &fakeReader{}, pruner, nil)

	_, err := a.Run(context.Background(), time.Now())
	require.Error(t, err)
	assert.Zero(t, pruner.calls)
}

func TestRunKeepsArchiveWhenPruneFails(t *testing.T) {
	reader := &fakeReader{rows: map[string][]map[string]interface{}{
		"hook_events": {{"id": "ev-1"}},
	}}
	pruner := &fakePruner{err: fmt.Errorf("lock wait timeout")}
	a := newTestArchiver(t, reader, pruner)

	report, err := a.Run(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.PrunedEvents)

	_, statErr := os.Stat(filepath.Join(a.dir, report.Filename))
	assert.NoError(t, statErr)
}

func TestListNewestFirst(t *testing.T) {
	a := newTestArchiver(t, &fakeReader{}, &fakePruner{})

	for _, name := range []string{
		"archive-2026-01-01T00-00-00.zip",
		"archive-2026-02-01T00-00-00.zip",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(a.dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(a.dir, "subdir"), 0o755))

	items := a.List()
	require.Len(t, items, 2)
	assert.Equal(t, "archive-2026-02-01T00-00-00.zip", items[0].Filename)
	assert.Equal(t, "archive-2026-01-01T00-00-00.zip", items[1].Filename)
	assert.Equal(t, "1 B", items[0].Size)
}

func TestPathValidation(t *testing.T) {
	a := newTestArchiver(t, &fakeReader{}, &fakePruner{})

	cases := []struct {
		name     string
		filename string
		wantErr  bool
		wantBase string
	}{
		{"plain", "archive-2026-01-01T00-00-00.zip", false, "archive-2026-01-01T00-00-00.zip"},
		{"traversal is anchored", "../../etc/secrets.zip", false, "secrets.zip"},
		{"not a zip", "../../etc/passwd", true, ""},
		{"empty", "", true, ""},
		{"dot", ".", true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := a.Path(tc.filename)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(a.dir, tc.wantBase), p)
		})
	}
}

func TestRenderObjectKey(t *testing.T) {
	now := time.Date(2026, 3, 5, 14, 7, 9, 0, time.UTC)

	assert.Equal(t,
		"archives/2026/03/archive-x.zip",
		renderObjectKey("archives/{Y}/{m}/{filename}", "archive-x.zip", now))
	assert.Equal(t,
		"2026/03/05/14/07/09/a.zip",
		renderObjectKey("{Y}/{m}/{d}/{H}/{M}/{s}/{filename}", "a.zip", now))
	assert.Equal(t,
		"backups/a.zip",
		renderObjectKey("/backups//{filename}", "a.zip", now))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "2.00 KB", formatSize(2048))
	assert.Equal(t, "5.00 MB", formatSize(5*1024*1024))
}

func TestEncodeBSONRowsRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := encodeBSONRows([]map[string]interface{}{
		{
			"name":  "alpha",
			"count": int64(7),
			"ok":    true,
			"ratio": 3.5,
			"note":  nil,
			"blob":  []byte("xyz"),
			"at":    ts,
		},
	})
	require.NoError(t, err)

	docs := decodeBSONRows(t, data)
	require.Len(t, docs, 1)
	doc := docs[0]
	assert.Equal(t, "alpha", doc["name"])
	assert.Equal(t, int64(7), doc["count"])
	assert.Equal(t, true, doc["ok"])
	assert.Equal(t, 3.5, doc["ratio"])
	assert.Nil(t, doc["note"])
	assert.Equal(t, "xyz", doc["blob"])
	assert.Equal(t, primitive.NewDateTimeFromTime(ts), doc["at"])

	empty, err := encodeBSONRows(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, validIdentifier("hook_events"))
	assert.True(t, validIdentifier("options"))
	assert.False(t, validIdentifier(""))
	assert.False(t, validIdentifier("hook_events; DROP TABLE users"))
	assert.False(t, validIdentifier("Hook_Events"))
	assert.False(t, validIdentifier("hook-events"))
}
