package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/pausemap/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StartDate, convey.ShouldEqual, "2020-04-01")
				convey.So(cfg.HTTPTimeout, convey.ShouldEqual, 60*time.Second)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PAUSEMAP_ADDR", ":8080")
			_ = os.Setenv("PAUSEMAP_FETCH_PARALLEL", "3")
			_ = os.Setenv("PAUSEMAP_HTTP_TIMEOUT", "5s")
			_ = os.Setenv("PAUSEMAP_HEALTH_METRICS", "new_cases,stringency_index")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.FetchParallel, convey.ShouldEqual, 3)
				convey.So(cfg.HTTPTimeout, convey.ShouldEqual, 5*time.Second)
				convey.So(cfg.HealthMetrics, convey.ShouldResemble, []string{"new_cases", "stringency_index"})
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			yamlContent := `
addr: ":9090"
storage_dir: "/tmp/pm"
start_date: "2019-01-01"
end_date: "2023-12-31"
country: "USA"
cache_backend: "redis"
redis_addr: "redis:6379"
indicators:
  inflation: ["FP.CPI.TOTL.ZG"]
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			clearConfigEnvVars()

			cfg, err := config.Load(ctx, tmpFile)

			convey.Convey("Then it should load from the YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StorageDir, convey.ShouldEqual, "/tmp/pm")
				convey.So(cfg.Country, convey.ShouldEqual, "USA")
				convey.So(cfg.CacheBackend, convey.ShouldEqual, "redis")
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "redis:6379")
				convey.So(cfg.Indicators["inflation"], convey.ShouldResemble, []string{"FP.CPI.TOTL.ZG"})
			})
		})

		convey.Convey("When the file path comes from PAUSEMAP_CONFIG and env overrides it", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\ncountry: \"USA\"\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("PAUSEMAP_CONFIG", tmpFile)
			_ = os.Setenv("PAUSEMAP_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then environment variables win over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.Country, convey.ShouldEqual, "USA")
			})
		})

		convey.Convey("When loading an invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			clearConfigEnvVars()

			cfg, err := config.Load(ctx, tmpFile)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading a non-existent file", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx, "/non/existent/file.yaml")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("PAUSEMAP_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("PAUSEMAP_FETCH_PARALLEL", "many")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, k := range []string{
		"PAUSEMAP_CONFIG", "PAUSEMAP_ADDR", "PAUSEMAP_FETCH_PARALLEL",
		"PAUSEMAP_HTTP_TIMEOUT", "PAUSEMAP_HEALTH_METRICS",
	} {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "pausemap-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = tmpFile.Close() }()

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
