// Package export writes reconciled weekly summaries for downstream reporting.
//
// Every format carries the same shape: an array of {"date", "metrics"}
// objects, one per week, ascending. Missing values are written as null.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/pausemap/internal/domain/model"
	"github.com/okian/pausemap/internal/domain/week"
	"github.com/okian/pausemap/internal/storage"
)

// Supported formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned by New for unsupported formats.
var ErrUnknownFormat = errors.New("unknown export format")

// Writer persists one run's summaries and returns the written path.
type Writer interface {
	Write(from, to time.Time, summaries []model.Summary) (string, error)
	// Remove deletes an export returned by Write. A missing file is not an error.
	Remove(path string) error
}

type encodeFunc func([]model.Summary) ([]byte, error)

// FileWriter writes summaries below the layout's outputs directory.
type FileWriter struct {
	layout storage.Layout
	ext    string
	encode encodeFunc
}

// New returns the writer for format.
func New(format string, layout storage.Layout) (*FileWriter, error) {
	switch format {
	case FormatJSON, "":
		return &FileWriter{layout: layout, ext: FormatJSON, encode: encodeJSON}, nil
	case FormatYAML:
		return &FileWriter{layout: layout, ext: FormatYAML, encode: encodeYAML}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Format reports the file extension this writer produces.
func (w *FileWriter) Format() string { return w.ext }

func (w *FileWriter) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove export %s: %w", path, err)
	}
	return nil
}

func (w *FileWriter) Write(from, to time.Time, summaries []model.Summary) (string, error) {
	if summaries == nil {
		summaries = []model.Summary{}
	}
	data, err := w.encode(summaries)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", w.ext, err)
	}
	path := w.layout.OutputPath(from.Format(week.Layout), to.Format(week.Layout), w.ext)
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func encodeJSON(s []model.Summary) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func encodeYAML(s []model.Summary) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
