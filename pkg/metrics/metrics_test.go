package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "pausemap")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("ingest"),
				WithMetricPrefix("x"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithRefreshInterval(3*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(manager.namespace, ShouldEqual, "test")
				So(manager.subsystem, ShouldEqual, "ingest")
				So(manager.name("runs"), ShouldEqual, "x_runs")
				So(manager.refreshInterval, ShouldEqual, 3*time.Second)
			})

			Convey("And collectors are registered on the given registry", func() {
				manager.reconcileRuns.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_ingest_x_reconcile_runs_total"], ShouldBeTrue)
			})
		})

		Convey("When passing empty option values", func() {
			manager := NewManager(
				WithNamespace(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(0),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "pausemap")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
				So(manager.refreshInterval, ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording source fetches", func() {
			before := testutil.ToFloat64(globalManager.sourceFetches.WithLabelValues("owid", "cached"))
			RecordSourceFetch("owid", "cached")
			RecordSourceFetch("owid", "cached")

			Convey("Then the counter increases", func() {
				after := testutil.ToFloat64(globalManager.sourceFetches.WithLabelValues("owid", "cached"))
				So(after-before, ShouldEqual, 2.0)
			})
		})

		Convey("When recording a reconcile run", func() {
			RecordReconcileRun(12, 7, 3.5)

			Convey("Then the gauges reflect the last run", func() {
				So(testutil.ToFloat64(globalManager.reconcileWeeks), ShouldEqual, 12.0)
				So(testutil.ToFloat64(globalManager.reconcileSeries), ShouldEqual, 7.0)
				So(testutil.ToFloat64(globalManager.lastRunUnix), ShouldBeGreaterThan, 0.0)
			})
		})

		Convey("When recording everything else", func() {
			So(func() {
				RecordSourceFetchLatency("gdelt", 120)
				RecordSourceBytes("gdelt", 2048)
				UpdateSourceRows("gdelt", 4)
				RecordGDELTDuplicates(3)
				RecordCacheHit("file")
				RecordCacheMiss("redis")
				RecordCacheError("s3", "get")
				RecordReconcileError("schema")
				UpdateRepositoryRecords(52)
				RecordRepositoryWriteLatency(1.2)
				RecordHTTPRequest("/summaries", "GET", "200")
				RecordHTTPRequestDuration("/summaries", "GET", "200", 4)
				RecordErrorByComponent("cache", "timeout")
				RecordErrorByEndpoint("/runs", "POST", "server_error")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
			So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
