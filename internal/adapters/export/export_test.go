package export_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/okian/pausemap/internal/adapters/export"
	"github.com/okian/pausemap/internal/domain/model"
	"github.com/okian/pausemap/internal/storage"
)

var (
	from = time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2020, 4, 30, 0, 0, 0, 0, time.UTC)
)

func summaries() []model.Summary {
	return []model.Summary{
		{Date: "2020-04-06", Metrics: model.Metrics{"event_count": model.Float(100), "cases": model.Float(50)}},
		{Date: "2020-04-13", Metrics: model.Metrics{"event_count": model.Float(150), "cases": nil}},
	}
}

func TestJSONWriter(t *testing.T) {
	layout := storage.New(t.TempDir())
	w, err := export.New(export.FormatJSON, layout)
	require.NoError(t, err)

	path, err := w.Write(from, to, summaries())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(layout.Outputs, "weekly_2020-04-01_2020-04-30.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "2020-04-13", got[1]["date"])
	m := got[1]["metrics"].(map[string]any)
	assert.Nil(t, m["cases"])
	assert.Contains(t, m, "cases")
	assert.InDelta(t, 150.0, m["event_count"], 1e-9)
}

func TestYAMLWriter(t *testing.T) {
	layout := storage.New(t.TempDir())
	w, err := export.New(export.FormatYAML, layout)
	require.NoError(t, err)
	assert.Equal(t, "yaml", w.Format())

	path, err := w.Write(from, to, summaries())
	require.NoError(t, err)
	assert.Equal(t, ".yaml", filepath.Ext(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []struct {
		Date    string              `yaml:"date"`
		Metrics map[string]*float64 `yaml:"metrics"`
	}
	require.NoError(t, yaml.Unmarshal(raw, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "2020-04-06", got[0].Date)
	assert.InDelta(t, 50.0, *got[0].Metrics["cases"], 1e-9)
	assert.Nil(t, got[1].Metrics["cases"])
}

func TestWriterEmptyAndOverwrite(t *testing.T) {
	layout := storage.New(t.TempDir())
	w, err := export.New("", layout)
	require.NoError(t, err)

	_, err = w.Write(from, to, summaries())
	require.NoError(t, err)
	path, err := w.Write(from, to, nil)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))

	entries, err := os.ReadDir(layout.Outputs)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriterRemove(t *testing.T) {
	w, err := export.New(export.FormatJSON, storage.New(t.TempDir()))
	require.NoError(t, err)

	path, err := w.Write(from, to, summaries())
	require.NoError(t, err)
	require.NoError(t, w.Remove(path))
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.NoError(t, w.Remove(path), "removing twice is not an error")
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := export.New("parquet", storage.New(t.TempDir()))
	assert.True(t, errors.Is(err, export.ErrUnknownFormat))
}
