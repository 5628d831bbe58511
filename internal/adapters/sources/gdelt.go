package sources

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/pausemap/internal/config"
	"github.com/okian/pausemap/internal/domain/dedupe"
	"github.com/okian/pausemap/internal/domain/frame"
	"github.com/okian/pausemap/internal/domain/week"
	"github.com/okian/pausemap/pkg/logger"
	"github.com/okian/pausemap/pkg/metrics"
)

// GDELT 1.0 export column positions (tab-separated, no header).
const (
	gdeltColID        = 0
	gdeltColSQLDate   = 1
	gdeltColActor1Cty = 7
	gdeltColEventCode = 26
	gdeltColGoldstein = 30
	gdeltColAvgTone   = 34
	gdeltMinColumns   = gdeltColAvgTone + 1

	gdeltDayLayout  = "20060102"
	gdeltSampleRows = 1000
)

// GDELT reads the daily event exports.
type GDELT struct {
	fetcher
	urlTemplate string
	from, to    time.Time
	parallel    int
	dedupeSize  int
}

// NewGDELT builds the provider for the configured date range.
func NewGDELT(cfg *config.Config, deps Deps) *GDELT {
	return &GDELT{
		fetcher:     fetcher{source: NameGDELT, deps: deps.withDefaults()},
		urlTemplate: cfg.GDELTURL,
		from:        cfg.Start(),
		to:          cfg.End(),
		parallel:    max(cfg.FetchParallel, 1),
		dedupeSize:  cfg.GDELTDedupeSize,
	}
}

func (g *GDELT) Name() string { return NameGDELT }

func gdeltKey(day time.Time) string {
	return "gdelt/" + day.Format(gdeltDayLayout) + ".export.CSV.zip"
}

// FetchDay returns the zipped export of one day.
func (g *GDELT) FetchDay(ctx context.Context, day time.Time) ([]byte, bool, error) {
	url := strings.ReplaceAll(g.urlTemplate, "{date}", day.Format(gdeltDayLayout))
	return g.get(ctx, gdeltKey(day), url, validExport)
}

// validExport accepts a zip whose first entry decompresses cleanly.
func validExport(data []byte) error {
	rc, err := openExport(data)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("%w: gdelt zip entry: %v", ErrPayload, err)
	}
	return nil
}

// Fetch downloads every day in range. Failed days are logged and skipped;
// only a range where nothing could be fetched is an error.
func (g *GDELT) Fetch(ctx context.Context) (Result, error) {
	days := week.Days(g.from, g.to)
	var ok, cached, failed atomic.Int64

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallel)
	for _, day := range days {
		day := day
		eg.Go(func() error {
			_, hit, err := g.FetchDay(ctx, day)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed.Add(1)
				g.deps.Logger.Error(ctx, "failed to fetch day",
					logger.String("day", day.Format(gdeltDayLayout)), logger.Error(err))
				return nil
			}
			ok.Add(1)
			if hit {
				cached.Add(1)
			}
			return nil
		})
	}
	res := Result{Source: NameGDELT}
	err := eg.Wait()
	res.Items, res.Cached, res.Failed = int(ok.Load()), int(cached.Load()), int(failed.Load())
	if err != nil {
		return res, err
	}
	if len(days) > 0 && res.Items == 0 {
		return res, fmt.Errorf("%w: gdelt: all %d days failed", ErrNoData, len(days))
	}
	return res, nil
}

type weekAgg struct {
	events        int
	goldstein, gN float64
	tone, toneN   float64
}

// gdeltEvent is the part of an export row the weekly table needs.
type gdeltEvent struct {
	id              string
	goldstein, tone string
}

func (a *weekAgg) add(e gdeltEvent) {
	a.events++
	if v, ok := parseFloat(e.goldstein); ok {
		a.goldstein += v
		a.gN++
	}
	if v, ok := parseFloat(e.tone); ok {
		a.tone += v
		a.toneN++
	}
}

// Weekly builds the event table: one row per week of the export day with
// event_count, impact (mean GoldsteinScale) and tone (mean AvgTone). Events
// repeated across days are counted once, by GLOBALEVENTID. A day whose
// export cannot be read in full contributes nothing, so a week is only
// emitted when at least one of its days was read.
func (g *GDELT) Weekly(ctx context.Context) (*frame.Frame, error) {
	if _, err := g.Fetch(ctx); err != nil {
		return nil, err
	}

	seen := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(g.dedupeSize))
	aggs := make(map[time.Time]*weekAgg)
	duplicates, read := 0, 0
	days := week.Days(g.from, g.to)

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := g.deps.Cache.Get(ctx, gdeltKey(day))
		if isMiss(err) {
			continue // logged by Fetch
		}
		if err != nil {
			return nil, fmt.Errorf("gdelt: read cached %s: %w", day.Format(gdeltDayLayout), err)
		}

		var events []gdeltEvent
		err = scanExport(data, func(rec []string) bool {
			events = append(events, gdeltEvent{
				id:        rec[gdeltColID],
				goldstein: rec[gdeltColGoldstein],
				tone:      rec[gdeltColAvgTone],
			})
			return true
		})
		if err != nil {
			metrics.RecordErrorByComponent(NameGDELT, "payload")
			g.deps.Logger.Error(ctx, "skipping unreadable export",
				logger.String("day", day.Format(gdeltDayLayout)), logger.Error(err))
			continue
		}
		read++

		w := week.Start(day)
		agg, ok := aggs[w]
		if !ok {
			agg = &weekAgg{}
			aggs[w] = agg
		}
		for _, e := range events {
			if seen.SeenAndRecord(ctx, e.id) {
				duplicates++
				continue
			}
			agg.add(e)
		}
	}
	metrics.RecordGDELTDuplicates(duplicates)
	if len(days) > 0 && read == 0 {
		return nil, fmt.Errorf("%w: gdelt: no readable export in %d days", ErrNoData, len(days))
	}

	weeks := make([]time.Time, 0, len(aggs))
	for w := range aggs {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	out := frame.New("event", "week", "event_count", "impact", "tone")
	for _, w := range weeks {
		a := aggs[w]
		if err := out.Append(w, a.events, mean(a.goldstein, a.gN), mean(a.tone, a.toneN)); err != nil {
			return nil, err
		}
	}
	metrics.UpdateSourceRows(NameGDELT, out.Len())
	g.deps.Logger.Info(ctx, "gdelt weekly table built",
		logger.Int("weeks", out.Len()), logger.Int("days", read), logger.Int("duplicates", duplicates))
	return out, nil
}

// Sample summarizes the first rows of the first day's export.
func (g *GDELT) Sample(ctx context.Context) (string, error) {
	data, _, err := g.FetchDay(ctx, g.from)
	if err != nil {
		return "", err
	}

	eventCodes := map[string]int{}
	countries := map[string]int{}
	columns := map[string][]string{}
	var tones []float64
	width, rows := 0, 0
	err = scanExport(data, func(rec []string) bool {
		rows++
		width = max(width, len(rec))
		eventCodes[rec[gdeltColEventCode]]++
		countries[rec[gdeltColActor1Cty]]++
		if v, ok := parseFloat(rec[gdeltColAvgTone]); ok {
			tones = append(tones, v)
		}
		for i, v := range rec {
			key := fmt.Sprintf("col_%d", i)
			if v != "" && len(columns[key]) < 3 {
				columns[key] = append(columns[key], v)
			}
		}
		return rows < gdeltSampleRows
	})
	if err != nil {
		return "", err
	}

	m, sd := meanStd(tones)
	sample := map[string]any{
		"metadata": map[string]any{
			"date":          g.from.Format(gdeltDayLayout),
			"total_columns": width,
			"sample_size":   rows,
		},
		"columns": columns,
		"stats": map[string]any{
			"event_codes": eventCodes,
			"countries":   countries,
			"tone": map[string]any{
				"count": len(tones),
				"mean":  m,
				"std":   sd,
			},
		},
	}
	return g.writeSample(ctx, sample)
}

// scanExport walks the tab-separated rows of a zipped export. fn returns
// false to stop early. Rows too short to carry AvgTone are skipped.
func scanExport(data []byte, fn func(rec []string) bool) error {
	rc, err := openExport(data)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	r := csv.NewReader(rc)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: gdelt row: %v", ErrPayload, err)
		}
		if len(rec) < gdeltMinColumns {
			continue
		}
		if !fn(rec) {
			return nil
		}
	}
}

// openExport opens the first entry of a zipped export.
func openExport(data []byte) (io.ReadCloser, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: gdelt zip: %v", ErrPayload, err)
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("%w: gdelt zip is empty", ErrPayload)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("%w: gdelt zip entry: %v", ErrPayload, err)
	}
	return rc, nil
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// mean returns nil when n is zero.
func mean(sum, n float64) any {
	if n == 0 {
		return nil
	}
	return sum / n
}

// meanStd returns the mean and sample standard deviation.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	m := sum / float64(len(xs))
	if len(xs) < 2 {
		return m, 0
	}
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return m, math.Sqrt(ss / float64(len(xs)-1))
}
