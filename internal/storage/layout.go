// Package storage describes the on-disk directory tree of the pipeline.
// Nothing is created until Init is called.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrInit wraps failures creating the directory tree.
var ErrInit = errors.New("storage init failed")

const dirPerm = 0o755

// Layout holds the directories below one storage root.
type Layout struct {
	Root      string
	Raw       string // cached upstream payloads
	Processed string // per-source tables after parsing
	Outputs   string // weekly summaries
	Samples   string // structure samples per source
}

// New derives the layout from root without touching the filesystem.
func New(root string) Layout {
	return Layout{
		Root:      root,
		Raw:       filepath.Join(root, "raw"),
		Processed: filepath.Join(root, "processed"),
		Outputs:   filepath.Join(root, "outputs"),
		Samples:   filepath.Join(root, "samples"),
	}
}

// Init creates every directory of the layout.
func (l Layout) Init() error {
	for _, dir := range []string{l.Root, l.Raw, l.Processed, l.Outputs, l.Samples} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInit, dir, err)
		}
	}
	return nil
}

// SamplePath is where a source writes its structure sample.
func (l Layout) SamplePath(source string) string {
	return filepath.Join(l.Samples, source+"_sample.json")
}

// ProcessedPath is where a processed table of a source is written.
func (l Layout) ProcessedPath(source, table string) string {
	return filepath.Join(l.Processed, source, table+".json")
}

// OutputPath is where the weekly summaries for [from, to] are exported.
func (l Layout) OutputPath(from, to, ext string) string {
	return filepath.Join(l.Outputs, "weekly_"+from+"_"+to+"."+ext)
}
