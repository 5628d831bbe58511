package sources_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/pausemap/internal/adapters/sources"
	"github.com/okian/pausemap/internal/config"
	"github.com/okian/pausemap/internal/domain/frame"
	. "github.com/smartystreets/goconvey/convey"
)

const owidPayload = `{
  "GBR": {
    "continent": "Europe", "location": "United Kingdom", "population": 67886004,
    "data": [
      {"date": "2020-04-05", "new_cases": 5903, "stringency_index": 79.63},
      {"date": "2020-04-06", "new_cases": 3802, "stringency_index": 79.63, "tests_units": "people tested"},
      {"date": "2020-04-07", "new_cases": 3634}
    ]
  },
  "FRA": {
    "continent": "Europe", "location": "France", "median_age": 42,
    "data": [{"date": "2020-04-06", "new_cases": 2886}]
  },
  "OWID_WRL": {
    "location": "World",
    "data": [{"date": "2020-04-06", "new_cases": 70000}]
  }
}`

func TestOWID(t *testing.T) {
	Convey("Given an OWID server", t, func() {
		var requests atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			_, _ = w.Write([]byte(owidPayload))
		}))
		defer srv.Close()

		deps, layout := newDeps(t, srv)
		cfg := config.New()
		cfg.StartDate, cfg.EndDate = "2020-04-06", "2020-04-30"
		cfg.OWIDURL = srv.URL + "/owid-covid-data.json"
		cfg.HealthMetrics = []string{"new_cases", "stringency_index"}
		o := sources.NewOWID(cfg, deps)
		ctx := context.Background()

		Convey("When the data is processed", func() {
			tables, err := o.Process(ctx)
			So(err, ShouldBeNil)

			Convey("Then metadata covers every code and metrics are range filtered", func() {
				So(tables.Metadata.Len(), ShouldEqual, 3)
				So(tables.Metrics.Len(), ShouldEqual, 4)
				loc, _ := tables.Metadata.String(0, "location")
				So(loc, ShouldEqual, "France")
				So(tables.Metrics.NumericColumns("date"), ShouldNotContain, "tests_units")
			})

			Convey("Then both tables are written to processed storage", func() {
				_, err := os.Stat(layout.ProcessedPath("owid", "metadata"))
				So(err, ShouldBeNil)
				_, err = os.Stat(layout.ProcessedPath("owid", "metrics"))
				So(err, ShouldBeNil)
			})
		})

		Convey("When the health table is requested twice", func() {
			h, err := o.Health(ctx)
			So(err, ShouldBeNil)
			_, err = o.Health(ctx)
			So(err, ShouldBeNil)

			Convey("Then it holds the country's selected metrics from one download", func() {
				So(requests.Load(), ShouldEqual, 1)
				So(h.Columns(), ShouldResemble, []string{"date", "new_cases", "stringency_index"})
				So(h.Len(), ShouldEqual, 2)
				d, _ := h.Time(0, "date")
				So(d, ShouldEqual, time.Date(2020, 4, 6, 0, 0, 0, 0, time.UTC))
				n, _ := h.Float(0, "new_cases")
				So(n, ShouldEqual, 3802.0)
				So(h.Value(1, "stringency_index"), ShouldBeNil)
			})
		})

		Convey("When an unknown metric is selected", func() {
			cfg.HealthMetrics = []string{"bogus"}
			_, err := sources.NewOWID(cfg, deps).Health(ctx)

			Convey("Then a schema error names it", func() {
				So(errors.Is(err, frame.ErrSchema), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "bogus")
			})
		})

		Convey("When a sample is taken", func() {
			path, err := o.Sample(ctx)
			So(err, ShouldBeNil)

			Convey("Then countries and regions are counted", func() {
				s := readJSON(t, path)
				meta := s["metadata"].(map[string]any)
				So(meta["total_countries"], ShouldEqual, 2.0)
				So(meta["total_regions"], ShouldEqual, 1.0)
				attrs := s["country_metadata"].(map[string]any)
				So(attrs["median_age"], ShouldEqual, "float")
				So(attrs["continent"], ShouldEqual, "string")
			})
		})
	})

	Convey("Given a server returning garbage", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}))
		defer srv.Close()
		deps, _ := newDeps(t, srv)
		cfg := config.New()
		cfg.OWIDURL = srv.URL

		Convey("Then processing reports a malformed payload", func() {
			_, err := sources.NewOWID(cfg, deps).Fetch(context.Background())
			So(errors.Is(err, sources.ErrPayload), ShouldBeTrue)
		})
	})
}
