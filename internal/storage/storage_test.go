package storage_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bdougie/firewatch/internal/models"
	"github.com/bdougie/firewatch/internal/storage"
	"github.com/google/uuid"
	"github.com/smartystreets/goconvey/convey"
)

func TestJournal(t *testing.T) {
	convey.Convey("Given a journal in a temp dir", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "history", "analysis_results.json")
		j, err := storage.NewJournal(path)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Clear records are batched until flushed", func() {
			convey.So(j.Record(ctx, models.AnalysisRecord{SampleID: "a"}), convey.ShouldBeNil)
			_, err := os.Stat(path)
			convey.So(os.IsNotExist(err), convey.ShouldBeTrue)

			convey.So(j.Flush(), convey.ShouldBeNil)
			records, err := j.Records()
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(records), convey.ShouldEqual, 1)
		})

		convey.Convey("Detections are written immediately without signatures", func() {
			convey.So(j.Record(ctx, models.AnalysisRecord{SampleID: "a"}), convey.ShouldBeNil)
			convey.So(j.Record(ctx, models.AnalysisRecord{
				SampleID:  "b",
				Detected:  true,
				Subject:   "URGENT: Fire",
				Signature: []float32{1, 2, 3},
			}), convey.ShouldBeNil)

			data, err := os.ReadFile(path)
			convey.So(err, convey.ShouldBeNil)
			convey.So(bytes.Contains(data, []byte("URGENT: Fire")), convey.ShouldBeTrue)
			convey.So(bytes.Contains(data, []byte("signature")), convey.ShouldBeFalse)
		})

		convey.Convey("A full batch flushes and appends to earlier records", func() {
			for i := 0; i < 25; i++ {
				convey.So(j.Record(ctx, models.AnalysisRecord{SampleID: uuid.NewString()}), convey.ShouldBeNil)
			}
			records, err := j.Records()
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(records), convey.ShouldEqual, 25)

			convey.So(j.Flush(), convey.ShouldBeNil)
			reopened, err := storage.NewJournal(path)
			convey.So(err, convey.ShouldBeNil)
			records, err = reopened.Records()
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(records), convey.ShouldEqual, 25)
		})
	})
}

type finder struct{ records []models.AnalysisRecord }

func (f *finder) Record(_ context.Context, r models.AnalysisRecord) error {
	f.records = append(f.records, r)
	return nil
}

func (f *finder) Flush() error { return nil }

func (f *finder) SimilarDetections(context.Context, []float32, int) ([]models.SimilarDetection, error) {
	return []models.SimilarDetection{{SampleID: "earlier", Similarity: 0.98}}, nil
}

func TestMulti(t *testing.T) {
	convey.Convey("Given a journal and a similarity-aware recorder", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "analysis_results.json")
		j, err := storage.NewJournal(path)
		convey.So(err, convey.ShouldBeNil)
		f := &finder{}
		multi := storage.Multi{j, f}

		convey.Convey("Records reach both", func() {
			convey.So(multi.Record(ctx, models.AnalysisRecord{SampleID: "a"}), convey.ShouldBeNil)
			convey.So(multi.Flush(), convey.ShouldBeNil)

			records, err := j.Records()
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(records), convey.ShouldEqual, 1)
			convey.So(len(f.records), convey.ShouldEqual, 1)
		})

		convey.Convey("Similarity lookups go to the recorder that supports them", func() {
			similar, err := multi.SimilarDetections(ctx, make([]float32, storage.SignatureDims), 3)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(similar), convey.ShouldEqual, 1)
			convey.So(similar[0].SampleID, convey.ShouldEqual, "earlier")
		})

		convey.Convey("Without such a recorder there are no results", func() {
			similar, err := storage.Multi{j}.SimilarDetections(ctx, nil, 3)
			convey.So(err, convey.ShouldBeNil)
			convey.So(similar, convey.ShouldBeEmpty)
		})
	})
}

func TestSignature(t *testing.T) {
	convey.Convey("Given a frame whose left half is red and right half blue", t, func() {
		img := image.NewRGBA(image.Rect(0, 0, 40, 20))
		for y := 0; y < 20; y++ {
			for x := 0; x < 40; x++ {
				if x < 20 {
					img.Set(x, y, color.RGBA{R: 255, A: 255})
				} else {
					img.Set(x, y, color.RGBA{B: 255, A: 255})
				}
			}
		}

		convey.Convey("The signature reflects each quadrant's colour", func() {
			sig := storage.Signature(img)
			convey.So(len(sig), convey.ShouldEqual, storage.SignatureDims)
			convey.So(sig[0], convey.ShouldAlmostEqual, 1, 0.001)  // top-left red
			convey.So(sig[5], convey.ShouldAlmostEqual, 1, 0.001)  // top-right blue
			convey.So(sig[3], convey.ShouldAlmostEqual, 0, 0.001)  // top-right red
			convey.So(sig[11], convey.ShouldAlmostEqual, 1, 0.001) // bottom-right blue
		})

		convey.Convey("Encoded frames decode to a signature", func() {
			var buf bytes.Buffer
			convey.So(jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}), convey.ShouldBeNil)
			sig, err := storage.FrameSignature(buf.Bytes())
			convey.So(err, convey.ShouldBeNil)
			convey.So(sig[0], convey.ShouldBeGreaterThan, 0.8)
		})

		convey.Convey("Garbage does not decode", func() {
			_, err := storage.FrameSignature([]byte("not a jpeg"))
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestPostgresRecorder(t *testing.T) {
	dsn := os.Getenv("FIREWATCH_TEST_DSN")
	if dsn == "" {
		t.Skip("FIREWATCH_TEST_DSN not set")
	}

	convey.Convey("Given a postgres recorder", t, func() {
		ctx := context.Background()
		rec, err := storage.NewPostgresRecorder(ctx, dsn)
		convey.So(err, convey.ShouldBeNil)
		defer rec.Close()

		sig := []float32{0.9, 0.3, 0.1, 0.9, 0.3, 0.1, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
		record := models.AnalysisRecord{
			SampleID:   uuid.NewString(),
			Source:     "test.mp4",
			Frame:      "latest_frame.jpg",
			SampledAt:  time.Now(),
			Detected:   true,
			Subject:    "URGENT: Fire in Building A",
			Dispatched: true,
			Signature:  sig,
		}

		convey.Convey("Recorded detections are found by similarity", func() {
			convey.So(rec.Record(ctx, record), convey.ShouldBeNil)
			similar, err := rec.SimilarDetections(ctx, sig, 5)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(similar), convey.ShouldBeGreaterThan, 0)
			convey.So(similar[0].Similarity, convey.ShouldBeGreaterThan, 0.99)
		})
	})
}
