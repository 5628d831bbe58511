package storage_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/pausemap/internal/storage"
	"github.com/smartystreets/goconvey/convey"
)

func TestLayout(t *testing.T) {
	convey.Convey("Given a layout under a temp root", t, func() {
		root := filepath.Join(t.TempDir(), "storage")
		l := storage.New(root)

		convey.Convey("Then deriving it creates nothing", func() {
			_, err := os.Stat(root)
			convey.So(os.IsNotExist(err), convey.ShouldBeTrue)
			convey.So(l.Raw, convey.ShouldEqual, filepath.Join(root, "raw"))
			convey.So(l.SamplePath("gdelt"), convey.ShouldEqual, filepath.Join(root, "samples", "gdelt_sample.json"))
			convey.So(l.ProcessedPath("owid", "metrics"), convey.ShouldEqual, filepath.Join(root, "processed", "owid", "metrics.json"))
			convey.So(l.OutputPath("2020-04-01", "2020-04-30", "yaml"), convey.ShouldEqual,
				filepath.Join(root, "outputs", "weekly_2020-04-01_2020-04-30.yaml"))
		})

		convey.Convey("When Init is called twice", func() {
			convey.So(l.Init(), convey.ShouldBeNil)
			convey.So(l.Init(), convey.ShouldBeNil)

			convey.Convey("Then every directory exists", func() {
				for _, dir := range []string{l.Raw, l.Processed, l.Outputs, l.Samples} {
					info, err := os.Stat(dir)
					convey.So(err, convey.ShouldBeNil)
					convey.So(info.IsDir(), convey.ShouldBeTrue)
				}
			})
		})

		convey.Convey("When the root is a regular file", func() {
			file := filepath.Join(t.TempDir(), "occupied")
			convey.So(os.WriteFile(file, []byte("x"), 0o600), convey.ShouldBeNil)
			err := storage.New(file).Init()

			convey.Convey("Then Init fails", func() {
				convey.So(errors.Is(err, storage.ErrInit), convey.ShouldBeTrue)
			})
		})
	})
}
