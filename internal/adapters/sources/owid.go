package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/pausemap/internal/config"
	"github.com/okian/pausemap/internal/domain/frame"
	"github.com/okian/pausemap/pkg/logger"
	"github.com/okian/pausemap/pkg/metrics"
)

const (
	owidKey          = "owid/owid_covid.json"
	owidRegionPrefix = "OWID_"
)

// owidMetadataFields are the per-country attributes; continent and location
// are strings, the rest numeric.
var owidMetadataFields = []string{
	"aged_65_older", "aged_70_older", "cardiovasc_death_rate", "continent",
	"diabetes_prevalence", "extreme_poverty", "female_smokers", "gdp_per_capita",
	"handwashing_facilities", "hospital_beds_per_thousand", "human_development_index",
	"life_expectancy", "location", "male_smokers", "median_age", "population",
	"population_density",
}

// owidMetricFields are the daily fields; tests_units is a string.
var owidMetricFields = []string{
	"excess_mortality", "excess_mortality_cumulative", "excess_mortality_cumulative_absolute",
	"excess_mortality_cumulative_per_million", "hosp_patients", "hosp_patients_per_million",
	"icu_patients", "icu_patients_per_million", "new_cases", "new_cases_per_million",
	"new_cases_smoothed", "new_cases_smoothed_per_million", "new_deaths", "new_deaths_per_million",
	"new_deaths_smoothed", "new_deaths_smoothed_per_million", "new_people_vaccinated_smoothed",
	"new_people_vaccinated_smoothed_per_hundred", "new_tests", "new_tests_per_thousand",
	"new_tests_smoothed", "new_tests_smoothed_per_thousand", "new_vaccinations",
	"new_vaccinations_smoothed", "new_vaccinations_smoothed_per_million", "people_fully_vaccinated",
	"people_fully_vaccinated_per_hundred", "people_vaccinated", "people_vaccinated_per_hundred",
	"positive_rate", "reproduction_rate", "stringency_index", "tests_per_case", "tests_units",
	"total_boosters", "total_boosters_per_hundred", "total_cases", "total_cases_per_million",
	"total_deaths", "total_deaths_per_million", "total_tests", "total_tests_per_thousand",
	"total_vaccinations", "total_vaccinations_per_hundred", "weekly_hosp_admissions",
	"weekly_hosp_admissions_per_million", "weekly_icu_admissions", "weekly_icu_admissions_per_million",
}

var owidStringFields = map[string]bool{"continent": true, "location": true, "tests_units": true}

// OWIDTables are the two processed OWID tables.
type OWIDTables struct {
	Metadata *frame.Frame // country_code + attributes
	Metrics  *frame.Frame // country_code, date + daily fields, within range
}

// OWID reads the Our World in Data COVID dataset.
type OWID struct {
	fetcher
	url      string
	country  string
	selected []string
	from, to time.Time
}

// NewOWID builds the provider.
func NewOWID(cfg *config.Config, deps Deps) *OWID {
	return &OWID{
		fetcher:  fetcher{source: NameOWID, deps: deps.withDefaults()},
		url:      cfg.OWIDURL,
		country:  cfg.Country,
		selected: cfg.HealthMetrics,
		from:     cfg.Start(),
		to:       cfg.End(),
	}
}

func (o *OWID) Name() string { return NameOWID }

// FetchData returns the raw dataset.
func (o *OWID) FetchData(ctx context.Context) ([]byte, bool, error) {
	return o.get(ctx, owidKey, o.url, nil)
}

func (o *OWID) Fetch(ctx context.Context) (Result, error) {
	res := Result{Source: NameOWID}
	_, hit, err := o.FetchData(ctx)
	if err != nil {
		res.Failed = 1
		return res, err
	}
	res.Items = 1
	if hit {
		res.Cached = 1
	}
	if _, err := o.Process(ctx); err != nil {
		return res, err
	}
	return res, nil
}

type owidCountry map[string]any

func (o *OWID) decode(ctx context.Context) (map[string]owidCountry, error) {
	data, _, err := o.FetchData(ctx)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]owidCountry
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: owid: %v", ErrPayload, err)
	}
	return raw, nil
}

// Process converts the dataset into the metadata and metrics tables, keeps
// only days within the configured range and writes both tables to
// storage/processed/owid.
func (o *OWID) Process(ctx context.Context) (OWIDTables, error) {
	raw, err := o.decode(ctx)
	if err != nil {
		return OWIDTables{}, err
	}

	codes := make([]string, 0, len(raw))
	for code := range raw {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	meta := frame.New("owid_metadata", append([]string{"country_code"}, owidMetadataFields...)...)
	daily := frame.New("owid_metrics", append([]string{"country_code", "date"}, owidMetricFields...)...)
	for _, code := range codes {
		details := raw[code]
		row := []any{code}
		for _, f := range owidMetadataFields {
			row = append(row, owidValue(details[f], owidStringFields[f]))
		}
		if err := meta.Append(row...); err != nil {
			return OWIDTables{}, err
		}

		days, _ := details["data"].([]any)
		for _, d := range days {
			day, ok := d.(map[string]any)
			if !ok {
				continue
			}
			ds, _ := day["date"].(string)
			date, err := time.Parse(frame.DateLayout, ds)
			if err != nil || date.Before(o.from) || date.After(o.to) {
				continue
			}
			row := []any{code, date}
			for _, f := range owidMetricFields {
				row = append(row, owidValue(day[f], owidStringFields[f]))
			}
			if err := daily.Append(row...); err != nil {
				return OWIDTables{}, err
			}
		}
	}

	if err := o.writeProcessed("metadata", meta.Records()); err != nil {
		return OWIDTables{}, err
	}
	if err := o.writeProcessed("metrics", daily.Records()); err != nil {
		return OWIDTables{}, err
	}
	o.deps.Logger.Info(ctx, "processed OWID data",
		logger.Int("countries", meta.Len()), logger.Int("rows", daily.Len()))
	return OWIDTables{Metadata: meta, Metrics: daily}, nil
}

// Health returns the configured country's daily metrics: a date column plus
// the selected numeric fields (every numeric field when none are selected).
func (o *OWID) Health(ctx context.Context) (*frame.Frame, error) {
	tables, err := o.Process(ctx)
	if err != nil {
		return nil, err
	}
	fields := o.selected
	if len(fields) == 0 {
		for _, f := range owidMetricFields {
			if !owidStringFields[f] {
				fields = append(fields, f)
			}
		}
	}
	for _, f := range fields {
		if !tables.Metrics.Has(f) {
			return nil, &frame.SchemaError{Table: "owid_metrics", Column: f}
		}
	}

	out := frame.New("health", append([]string{"date"}, fields...)...)
	m := tables.Metrics
	for i := 0; i < m.Len(); i++ {
		if code, _ := m.String(i, "country_code"); !strings.EqualFold(code, o.country) {
			continue
		}
		row := []any{m.Value(i, "date")}
		for _, f := range fields {
			row = append(row, m.Value(i, f))
		}
		if err := out.Append(row...); err != nil {
			return nil, err
		}
	}
	metrics.UpdateSourceRows(NameOWID, out.Len())
	if out.Len() == 0 {
		o.deps.Logger.Warn(ctx, "no OWID rows for country", logger.String("country", o.country))
	}
	return out, nil
}

// Sample writes the dataset's structure: country and region counts, the
// attribute types of the first country and the metric field types.
func (o *OWID) Sample(ctx context.Context) (string, error) {
	raw, err := o.decode(ctx)
	if err != nil {
		return "", err
	}
	var countries, regions []string
	for code := range raw {
		if strings.HasPrefix(code, owidRegionPrefix) {
			regions = append(regions, code)
		} else {
			countries = append(countries, code)
		}
	}
	sort.Strings(countries)

	attrs := map[string]string{}
	if len(countries) > 0 {
		first := raw[countries[0]]
		for _, f := range owidMetadataFields {
			if v, ok := first[f]; ok && v != nil {
				attrs[f] = typeName(v)
			}
		}
	}
	fields := map[string]string{"date": "date"}
	for _, f := range owidMetricFields {
		fields[f] = "float"
		if owidStringFields[f] {
			fields[f] = "string"
		}
	}

	sample := map[string]any{
		"metadata": map[string]any{
			"date_range":      []string{o.from.Format(frame.DateLayout), o.to.Format(frame.DateLayout)},
			"total_countries": len(countries),
			"total_regions":   len(regions),
		},
		"country_metadata": attrs,
		"metrics":          fields,
	}
	return o.writeSample(ctx, sample)
}

// owidValue keeps strings for string fields and numbers otherwise.
func owidValue(v any, str bool) any {
	switch x := v.(type) {
	case nil:
		return nil
	case json.Number:
		if str {
			return x.String()
		}
		f, err := x.Float64()
		if err != nil {
			return nil
		}
		return f
	case string:
		if str {
			return x
		}
		return nil
	default:
		return nil
	}
}

func typeName(v any) string {
	switch v.(type) {
	case json.Number, float64:
		return "float"
	case string:
		return "string"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}
