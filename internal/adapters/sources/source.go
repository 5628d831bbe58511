// Package sources implements the fetch-and-cache providers for GDELT event
// exports, OWID COVID metrics and World Bank indicators.
//
// Every provider checks the raw cache before touching the network and stores
// the payload after a successful download. Parsed tables are returned as
// frames keyed by date or period for the reconciler.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/pausemap/internal/adapters/cache"
	"github.com/okian/pausemap/internal/storage"
	"github.com/okian/pausemap/pkg/logger"
	"github.com/okian/pausemap/pkg/metrics"
)

// Source names accepted by the CLI.
const (
	NameGDELT     = "gdelt"
	NameOWID      = "owid"
	NameWorldBank = "worldbank"
)

// Names lists every source in a stable order.
var Names = []string{NameGDELT, NameOWID, NameWorldBank}

// Source is one upstream dataset.
type Source interface {
	Name() string
	// Fetch downloads (or finds cached) every payload for the configured range.
	Fetch(ctx context.Context) (Result, error)
	// Sample writes a structure overview to storage/samples.
	Sample(ctx context.Context) (string, error)
}

// Result summarizes one Fetch.
type Result struct {
	Source string `json:"source"`
	Items  int    `json:"items"`
	Cached int    `json:"cached"`
	Failed int    `json:"failed"`
}

// Deps are the collaborators shared by all providers.
type Deps struct {
	Cache  cache.Store
	Client *http.Client
	Logger logger.Logger
	Layout storage.Layout
}

func (d Deps) withDefaults() Deps {
	if d.Client == nil {
		d.Client = NewHTTPClient(60 * time.Second)
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return d
}

// NewHTTPClient returns a client with bounded dial and handshake timeouts.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// fetcher is the cache-then-network helper embedded by each provider.
type fetcher struct {
	source string
	deps   Deps
}

// get returns the payload for key, downloading url on a cache miss.
func (f *fetcher) get(ctx context.Context, key, url string, check func([]byte) error) ([]byte, bool, error) {
	return f.load(ctx, key, func(ctx context.Context) ([]byte, error) {
		return f.download(ctx, url)
	}, check)
}

// load returns the cached payload for key, or builds it with fill and
// caches the result. When check is set, only payloads it accepts are cached
// or served from the cache; a rejected cached entry is fetched again.
func (f *fetcher) load(ctx context.Context, key string, fill func(context.Context) ([]byte, error), check func([]byte) error) ([]byte, bool, error) {
	data, err := f.deps.Cache.Get(ctx, key)
	if err == nil && check != nil {
		if cerr := check(data); cerr != nil {
			f.deps.Logger.Warn(ctx, "discarding invalid cached payload",
				logger.String("key", key), logger.Error(cerr))
			err = cerr
		}
	}
	if err == nil {
		metrics.RecordSourceFetch(f.source, "cached")
		f.deps.Logger.Debug(ctx, "using cached payload", logger.String("key", key))
		return data, true, nil
	}
	if !isMiss(err) && !errors.Is(err, ErrPayload) {
		// A broken cache should not block the download.
		f.deps.Logger.Warn(ctx, "cache read failed", logger.String("key", key), logger.Error(err))
	}

	start := time.Now()
	data, err = fill(ctx)
	metrics.RecordSourceFetchLatency(f.source, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordSourceFetch(f.source, "error")
		metrics.RecordErrorByComponent(f.source, "fetch")
		return nil, false, err
	}
	if check != nil {
		if err := check(data); err != nil {
			metrics.RecordSourceFetch(f.source, "error")
			metrics.RecordErrorByComponent(f.source, "payload")
			return nil, false, err
		}
	}
	metrics.RecordSourceFetch(f.source, "ok")
	metrics.RecordSourceBytes(f.source, len(data))

	if err := f.deps.Cache.Put(ctx, key, data); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrCache, key, err)
	}
	f.deps.Logger.Info(ctx, "fetched payload",
		logger.String("key", key), logger.Int("bytes", len(data)), logger.Duration("took", time.Since(start)))
	return data, false, nil
}

func (f *fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, f.source, err)
	}
	req.Header.Set("User-Agent", "pausemap/1.0")
	resp, err := f.deps.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, f.source, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Source: f.source, URL: url, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrUpstream, f.source, err)
	}
	return body, nil
}

// writeSample stores v as indented JSON at the source's sample path.
func (f *fetcher) writeSample(ctx context.Context, v any) (string, error) {
	path := f.deps.Layout.SamplePath(f.source)
	if err := writeJSON(path, v); err != nil {
		return "", err
	}
	f.deps.Logger.Info(ctx, "sample saved", logger.String("path", path))
	return path, nil
}

// writeProcessed stores a parsed table under storage/processed.
func (f *fetcher) writeProcessed(table string, v any) error {
	return writeJSON(f.deps.Layout.ProcessedPath(f.source, table), v)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil { //nolint:gosec // data files, not secrets
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
