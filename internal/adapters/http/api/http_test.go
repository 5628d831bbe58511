package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/pausemap/internal/adapters/http/api"
	"github.com/okian/pausemap/internal/adapters/repository"
	service "github.com/okian/pausemap/internal/app"
	"github.com/okian/pausemap/internal/domain/frame"
	"github.com/okian/pausemap/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	summaries  []model.Summary
	from, to   time.Time
	got        time.Time
	run        model.Run
	processErr error
	readErr    error
}

func (m *mockDeps) Summaries(_ context.Context, from, to time.Time) ([]model.Summary, error) {
	m.from, m.to = from, to
	return m.summaries, m.readErr
}

func (m *mockDeps) Summary(_ context.Context, w time.Time) (model.Summary, error) {
	m.got = w
	for _, s := range m.summaries {
		if s.Week.Equal(w) {
			return s, nil
		}
	}
	return model.Summary{}, repository.ErrNotFound
}

func (m *mockDeps) Process(context.Context) (model.Run, error) {
	return m.run, m.processErr
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"runs": 3, "sources": []string{"gdelt"}}
}

func newTestServer(deps *mockDeps) *httptest.Server {
	return httptest.NewServer(api.NewServer(deps, mockStats{}).Handler())
}

func decode(resp *http.Response, v any) {
	defer func() { _ = resp.Body.Close() }()
	So(json.NewDecoder(resp.Body).Decode(v), ShouldBeNil)
}

func TestServer(t *testing.T) {
	Convey("Given a server with two stored weeks", t, func() {
		monday := time.Date(2020, 4, 6, 0, 0, 0, 0, time.UTC)
		deps := &mockDeps{summaries: []model.Summary{
			{Week: monday, Date: "2020-04-06", Metrics: model.Metrics{"event_count": model.Float(100), "cases": model.Float(50)}},
			{Week: monday.AddDate(0, 0, 7), Date: "2020-04-13", Metrics: model.Metrics{"event_count": model.Float(150), "cases": nil}},
		}}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When GET /healthz", func() {
			resp, err := http.Get(srv.URL + "/healthz")
			So(err, ShouldBeNil)

			Convey("Then it reports ok", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var body map[string]string
				decode(resp, &body)
				So(body["status"], ShouldEqual, "ok")
			})
		})

		Convey("When GET /metrics after a request", func() {
			_, _ = http.Get(srv.URL + "/stats")
			resp, err := http.Get(srv.URL + "/metrics")
			So(err, ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()

			Convey("Then the exposition includes HTTP counters", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				b, err := io.ReadAll(resp.Body)
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, "http_requests_total")
			})
		})

		Convey("When a cross-origin request is made", func() {
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
			req.Header.Set("Origin", "http://dashboard.example")
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			_ = resp.Body.Close()
			So(resp.Header.Get("Access-Control-Allow-Origin"), ShouldNotBeEmpty)
		})

		Convey("When GET /openapi.yaml", func() {
			resp, err := http.Get(srv.URL + "/openapi.yaml")
			So(err, ShouldBeNil)
			_ = resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("When GET /stats", func() {
			resp, err := http.Get(srv.URL + "/stats")
			So(err, ShouldBeNil)

			Convey("Then the provider's stats are returned", func() {
				var body map[string]any
				decode(resp, &body)
				So(body["runs"], ShouldEqual, 3.0)
			})
		})

		Convey("When GET /summaries with a window", func() {
			resp, err := http.Get(srv.URL + "/summaries?from=2020-04-01&to=2020-04-30")
			So(err, ShouldBeNil)

			Convey("Then the summaries keep the export shape", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var body []map[string]any
				decode(resp, &body)
				So(len(body), ShouldEqual, 2)
				So(body[1]["date"], ShouldEqual, "2020-04-13")
				m := body[1]["metrics"].(map[string]any)
				So(m, ShouldContainKey, "cases")
				So(m["cases"], ShouldBeNil)
				So(deps.from, ShouldEqual, time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC))
			})
		})

		Convey("When GET /summaries without bounds", func() {
			resp, err := http.Get(srv.URL + "/summaries")
			So(err, ShouldBeNil)
			_ = resp.Body.Close()

			Convey("Then the whole range is requested", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(deps.from.Year(), ShouldEqual, 1)
				So(deps.to.Year(), ShouldEqual, 9999)
			})
		})

		Convey("When GET /summaries with bad bounds", func() {
			for _, q := range []string{"from=April", "to=2020-13-01", "from=2020-05-01&to=2020-04-01"} {
				resp, err := http.Get(srv.URL + "/summaries?" + q)
				So(err, ShouldBeNil)
				var body map[string]string
				decode(resp, &body)
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(body["code"], ShouldEqual, "bad_request")
			}
		})

		Convey("When GET /summaries/{week} with a mid-week day", func() {
			resp, err := http.Get(srv.URL + "/summaries/2020-04-09")
			So(err, ShouldBeNil)

			Convey("Then the containing week is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var body map[string]any
				decode(resp, &body)
				So(body["date"], ShouldEqual, "2020-04-06")
				So(deps.got, ShouldEqual, monday)
			})
		})

		Convey("When GET /summaries/{week} for an absent week", func() {
			resp, err := http.Get(srv.URL + "/summaries/2021-01-04")
			So(err, ShouldBeNil)

			Convey("Then 404 is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
				var body map[string]string
				decode(resp, &body)
				So(body["code"], ShouldEqual, "not_found")
			})
		})

		Convey("When GET /summaries/{week} with a malformed week", func() {
			resp, err := http.Get(srv.URL + "/summaries/last-week")
			So(err, ShouldBeNil)
			_ = resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the repository fails", func() {
			deps.readErr = fmt.Errorf("query range: %w", context.DeadlineExceeded)
			resp, err := http.Get(srv.URL + "/summaries")
			So(err, ShouldBeNil)
			_ = resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestServer_Runs(t *testing.T) {
	Convey("Given a server whose pipeline succeeds", t, func() {
		deps := &mockDeps{run: model.Run{ID: "run-1", Weeks: 5, Series: 4, Output: "storage/outputs/weekly.json"}}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When POST /runs", func() {
			resp, err := http.Post(srv.URL+"/runs", "application/json", nil)
			So(err, ShouldBeNil)

			Convey("Then the run is described", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				var body map[string]any
				decode(resp, &body)
				So(body["id"], ShouldEqual, "run-1")
				So(body["weeks"], ShouldEqual, 5.0)
			})
		})

		Convey("When GET /runs", func() {
			resp, err := http.Get(srv.URL + "/runs")
			So(err, ShouldBeNil)
			_ = resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("When an unknown path is requested", func() {
			resp, err := http.Get(srv.URL + "/leaderboard")
			So(err, ShouldBeNil)
			_ = resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given pipeline failures", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{service.ErrBusy, http.StatusConflict, "conflict"},
			{fmt.Errorf("load frames: %w", &frame.SchemaError{Table: "health", Column: "date"}), http.StatusUnprocessableEntity, "schema_error"},
			{service.ErrNotConfigured, http.StatusServiceUnavailable, "unavailable"},
			{fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
		}
		for _, tc := range cases {
			deps := &mockDeps{processErr: tc.err}
			srv := newTestServer(deps)
			resp, err := http.Post(srv.URL+"/runs", "application/json", nil)
			So(err, ShouldBeNil)
			var body map[string]string
			decode(resp, &body)
			srv.Close()

			So(resp.StatusCode, ShouldEqual, tc.status)
			So(body["code"], ShouldEqual, tc.code)
		}
	})
}
