package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/pausemap/internal/config"
	"github.com/okian/pausemap/internal/domain/frame"
	"github.com/okian/pausemap/pkg/logger"
	"github.com/okian/pausemap/pkg/metrics"
)

const (
	wbPerPage  = 1000
	wbDocQuery = "COVID-19 OR coronavirus OR pandemic"
	wbDocRows  = 1000
)

// wbPage is the metadata element leading every indicator response.
type wbPage struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Total int `json:"total"`
}

type wbRef struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// wbObservation is one indicator value for one country and period.
type wbObservation struct {
	Indicator   wbRef    `json:"indicator"`
	Country     wbRef    `json:"country"`
	CountryISO3 string   `json:"countryiso3code"`
	Date        string   `json:"date"`
	Value       *float64 `json:"value"`
}

// WorldBank reads the indicators API and the documents search API.
type WorldBank struct {
	fetcher
	indicatorURL string
	docsURL      string
	country      string
	categories   map[string][]string
	from, to     time.Time
	parallel     int
}

// NewWorldBank builds the provider.
func NewWorldBank(cfg *config.Config, deps Deps) *WorldBank {
	return &WorldBank{
		fetcher:      fetcher{source: NameWorldBank, deps: deps.withDefaults()},
		indicatorURL: cfg.WorldBankIndicatorURL,
		docsURL:      cfg.WorldBankDocsURL,
		country:      cfg.Country,
		categories:   cfg.Indicators,
		from:         cfg.Start(),
		to:           cfg.End(),
		parallel:     max(cfg.FetchParallel, 1),
	}
}

func (w *WorldBank) Name() string { return NameWorldBank }

func (w *WorldBank) categoryNames() []string {
	names := make([]string, 0, len(w.categories))
	for c := range w.categories {
		names = append(names, c)
	}
	sort.Strings(names)
	return names
}

func (w *WorldBank) categoryKey(category string) string {
	return fmt.Sprintf("worldbank/wb_%s_%s.json", category, w.from.Format(frame.DateLayout))
}

// FetchDocuments returns the report search results published on date.
func (w *WorldBank) FetchDocuments(ctx context.Context, date string) ([]byte, bool, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("qterm", wbDocQuery)
	q.Set("docty", "Report")
	q.Set("strdate", date)
	q.Set("enddate", date)
	q.Set("fl", "docdt,display_title,abstracts")
	q.Set("rows", strconv.Itoa(wbDocRows))
	return w.get(ctx, "worldbank/wb_docs_"+date+".json", w.docsURL+"?"+q.Encode(), nil)
}

// FetchIndicators fetches every category, each cached as one JSON array of
// observations. Categories are fetched concurrently.
func (w *WorldBank) FetchIndicators(ctx context.Context) (int, error) {
	var cached atomic.Int64
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(w.parallel)
	for _, category := range w.categoryNames() {
		category := category
		eg.Go(func() error {
			_, hit, err := w.fetchCategory(ctx, category)
			if hit {
				cached.Add(1)
			}
			return err
		})
	}
	err := eg.Wait()
	return int(cached.Load()), err
}

func (w *WorldBank) fetchCategory(ctx context.Context, category string) ([]byte, bool, error) {
	return w.load(ctx, w.categoryKey(category), func(ctx context.Context) ([]byte, error) {
		all := []json.RawMessage{}
		for _, code := range w.categories[category] {
			obs, err := w.fetchIndicator(ctx, code)
			if err != nil {
				return nil, err
			}
			all = append(all, obs...)
		}
		w.deps.Logger.Info(ctx, "fetched indicator category",
			logger.String("category", category), logger.Int("observations", len(all)))
		return json.Marshal(all)
	}, nil)
}

// fetchIndicator follows the page metadata until every page is read.
func (w *WorldBank) fetchIndicator(ctx context.Context, code string) ([]json.RawMessage, error) {
	base := strings.NewReplacer("{country}", w.country, "{indicator}", code).Replace(w.indicatorURL)
	var out []json.RawMessage
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("format", "json")
		q.Set("date", fmt.Sprintf("%d:%d", w.from.Year(), w.to.Year()))
		q.Set("per_page", strconv.Itoa(wbPerPage))
		q.Set("page", strconv.Itoa(page))

		body, err := w.download(ctx, base+"?"+q.Encode())
		if err != nil {
			return nil, err
		}
		var parts []json.RawMessage
		if err := json.Unmarshal(body, &parts); err != nil {
			return nil, fmt.Errorf("%w: worldbank %s page %d: %v", ErrPayload, code, page, err)
		}
		if len(parts) < 2 {
			// An error message or an empty result set.
			if len(parts) == 1 && strings.Contains(string(parts[0]), `"message"`) {
				return nil, fmt.Errorf("%w: worldbank %s: %s", ErrUpstream, code, parts[0])
			}
			return out, nil
		}
		var meta wbPage
		if err := json.Unmarshal(parts[0], &meta); err != nil {
			return nil, fmt.Errorf("%w: worldbank %s page meta: %v", ErrPayload, code, err)
		}
		var rows []json.RawMessage
		if err := json.Unmarshal(parts[1], &rows); err != nil {
			return nil, fmt.Errorf("%w: worldbank %s rows: %v", ErrPayload, code, err)
		}
		out = append(out, rows...)
		if page >= meta.Pages {
			return out, nil
		}
	}
}

func (w *WorldBank) Fetch(ctx context.Context) (Result, error) {
	res := Result{Source: NameWorldBank}
	_, hit, err := w.FetchDocuments(ctx, w.from.Format(frame.DateLayout))
	if err != nil {
		res.Failed++
		return res, err
	}
	res.Items++
	if hit {
		res.Cached++
	}
	cached, err := w.FetchIndicators(ctx)
	res.Cached += cached
	if err != nil {
		res.Failed++
		return res, err
	}
	res.Items += len(w.categories)
	return res, nil
}

// Economic returns the indicator table: period, country, indicator, value.
func (w *WorldBank) Economic(ctx context.Context) (*frame.Frame, error) {
	if _, err := w.FetchIndicators(ctx); err != nil {
		return nil, err
	}
	out := frame.New("economic", "period", "country", "indicator", "value")
	for _, category := range w.categoryNames() {
		data, _, err := w.fetchCategory(ctx, category)
		if err != nil {
			return nil, err
		}
		var obs []wbObservation
		if err := json.Unmarshal(data, &obs); err != nil {
			return nil, fmt.Errorf("%w: worldbank %s: %v", ErrPayload, category, err)
		}
		for _, o := range obs {
			country := o.CountryISO3
			if country == "" {
				country = o.Country.ID
			}
			if err := out.Append(o.Date, country, o.Indicator.ID, o.Value); err != nil {
				return nil, err
			}
		}
	}
	if err := w.writeProcessed("indicators", out.Records()); err != nil {
		return nil, err
	}
	metrics.UpdateSourceRows(NameWorldBank, out.Len())
	return out, nil
}

// Sample writes the document count, one example document and the configured
// indicator categories.
func (w *WorldBank) Sample(ctx context.Context) (string, error) {
	date := w.from.Format(frame.DateLayout)
	data, _, err := w.FetchDocuments(ctx, date)
	if err != nil {
		return "", err
	}
	if _, err := w.FetchIndicators(ctx); err != nil {
		return "", err
	}

	var docs struct {
		Documents map[string]json.RawMessage `json:"documents"`
	}
	if err := json.Unmarshal(data, &docs); err != nil {
		return "", fmt.Errorf("%w: worldbank docs: %v", ErrPayload, err)
	}
	ids := make([]string, 0, len(docs.Documents))
	for id := range docs.Documents {
		if id != "facets" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	example := json.RawMessage(`{}`)
	if len(ids) > 0 {
		example = docs.Documents[ids[0]]
	}

	sample := map[string]any{
		"metadata": map[string]any{
			"date":             date,
			"total_documents":  len(ids),
			"total_indicators": len(w.categories),
		},
		"document_example":     example,
		"indicator_categories": w.categoryNames(),
	}
	return w.writeSample(ctx, sample)
}
