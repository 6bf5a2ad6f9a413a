package framestore_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/bdougie/firewatch/internal/framestore"
	"github.com/smartystreets/goconvey/convey"
)

func solid(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestStore(t *testing.T) {
	convey.Convey("Given a frame store in a temp dir", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "latest_frame.jpg")
		store, err := framestore.New(path, 0)
		convey.So(err, convey.ShouldBeNil)
		convey.So(store.Path(), convey.ShouldEqual, path)

		convey.Convey("It starts without a sample", func() {
			convey.So(store.HasSample(), convey.ShouldBeFalse)
			_, err := store.Load()
			convey.So(errors.Is(err, framestore.ErrMissingArtifact), convey.ShouldBeTrue)
		})

		convey.Convey("Storing a frame writes a decodable JPEG", func() {
			convey.So(store.Store(solid(32, 16, color.RGBA{R: 255, A: 255})), convey.ShouldBeNil)
			convey.So(store.HasSample(), convey.ShouldBeTrue)

			data, err := store.Load()
			convey.So(err, convey.ShouldBeNil)
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Width, convey.ShouldEqual, 32)
			convey.So(cfg.Height, convey.ShouldEqual, 16)
		})

		convey.Convey("Storing again replaces the previous sample", func() {
			convey.So(store.Store(solid(32, 16, color.RGBA{R: 255, A: 255})), convey.ShouldBeNil)
			convey.So(store.Store(solid(8, 8, color.RGBA{B: 255, A: 255})), convey.ShouldBeNil)

			data, err := store.Load()
			convey.So(err, convey.ShouldBeNil)
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Width, convey.ShouldEqual, 8)

			entries, err := os.ReadDir(filepath.Dir(path))
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(entries), convey.ShouldEqual, 1)
		})

		convey.Convey("Remove deletes the artifact and tolerates absence", func() {
			convey.So(store.Store(solid(4, 4, color.RGBA{G: 255, A: 255})), convey.ShouldBeNil)
			convey.So(store.Remove(), convey.ShouldBeNil)
			convey.So(store.HasSample(), convey.ShouldBeFalse)
			convey.So(store.Remove(), convey.ShouldBeNil)
		})
	})

	convey.Convey("An empty path is rejected", t, func() {
		_, err := framestore.New("", 90)
		convey.So(err, convey.ShouldNotBeNil)
	})
}
