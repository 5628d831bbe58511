package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/pausemap/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StorageDir, convey.ShouldEqual, "storage")
			convey.So(cfg.Country, convey.ShouldEqual, "GBR")
			convey.So(cfg.CacheBackend, convey.ShouldEqual, "file")
			convey.So(cfg.Repository, convey.ShouldEqual, "memory")
			convey.So(cfg.Indicators["gdp"], convey.ShouldResemble, []string{"NY.GDP.MKTP.KD.ZG"})
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the date window parses", func() {
			convey.So(cfg.Start(), convey.ShouldEqual, time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC))
			convey.So(cfg.End(), convey.ShouldEqual, time.Date(2020, 4, 30, 0, 0, 0, 0, time.UTC))
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config with a bad field", t, func() {
		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"bad start", func(c *config.Config) { c.StartDate = "April" }},
			{"inverted window", func(c *config.Config) { c.StartDate, c.EndDate = "2020-05-01", "2020-04-01" }},
			{"zero parallel", func(c *config.Config) { c.FetchParallel = 0 }},
			{"unknown cache", func(c *config.Config) { c.CacheBackend = "memcached" }},
			{"s3 without bucket", func(c *config.Config) { c.CacheBackend = "s3" }},
			{"postgres no dsn", func(c *config.Config) { c.Repository = "postgres" }},
			{"unknown output fmt", func(c *config.Config) { c.OutputFormat = "parquet" }},
		}

		for _, tc := range cases {
			convey.Convey("When "+tc.name+" is validated", func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then it is rejected as invalid", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}
	})
}
