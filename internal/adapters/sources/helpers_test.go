package sources_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/okian/pausemap/internal/adapters/cache"
	"github.com/okian/pausemap/internal/adapters/sources"
	"github.com/okian/pausemap/internal/storage"
	"github.com/okian/pausemap/pkg/logger"
)

func newDeps(t *testing.T, srv *httptest.Server) (sources.Deps, storage.Layout) {
	t.Helper()
	layout := storage.New(t.TempDir())
	if err := layout.Init(); err != nil {
		t.Fatal(err)
	}
	return sources.Deps{
		Cache:  cache.NewFileStore(layout.Raw),
		Client: srv.Client(),
		Logger: logger.Nop(),
		Layout: layout,
	}, layout
}

// gdeltRow builds a 58-column export row.
func gdeltRow(id, sqlDate, country, code, goldstein, tone string) string {
	cols := make([]string, 58)
	cols[0], cols[1], cols[7], cols[26], cols[30], cols[34] = id, sqlDate, country, code, goldstein, tone
	return strings.Join(cols, "\t")
}

func zipExport(t *testing.T, name string, rows ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(strings.Join(rows, "\n") + "\n")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	return out
}
