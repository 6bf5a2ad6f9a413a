package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"gocv.io/x/gocv"

	"github.com/bdougie/firewatch/internal/models"
)

// Capture reads frames through OpenCV from a file, stream URL or camera index
type Capture struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	seq     uint64
	camera  bool
}

// OpenCapture opens the video identified by id
func OpenCapture(id string) (*Capture, error) {
	capture, err := gocv.OpenVideoCapture(DeviceID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to open video capture '%s': %w", id, err)
	}

	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("could not open video '%s'", id)
	}

	_, camera := DeviceID(id).(int)
	return &Capture{
		capture: capture,
		mat:     gocv.NewMat(),
		camera:  camera,
	}, nil
}

// FrameRate returns the recorded frames per second of a video file, or 0 for
// cameras and streams that report none.
func (c *Capture) FrameRate() float64 {
	if c.camera {
		return 0
	}
	fps := c.capture.Get(gocv.VideoCaptureFPS)
	if fps <= 0 || fps > 1000 {
		return 0
	}
	return fps
}

// NextFrame reads the next frame. It returns io.EOF when the video ends.
func (c *Capture) NextFrame(ctx context.Context) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}

	if ok := c.capture.Read(&c.mat); !ok || c.mat.Empty() {
		return models.Frame{}, io.EOF
	}

	img, err := c.mat.ToImage()
	if err != nil {
		return models.Frame{}, fmt.Errorf("failed to convert frame: %w", err)
	}

	c.seq++
	return models.Frame{
		Seq:        c.seq,
		CapturedAt: time.Now(),
		Image:      img,
	}, nil
}

// Release closes the capture and its frame buffer
func (c *Capture) Release() error {
	var errs []error
	if err := c.mat.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.capture.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close video capture: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during release: %v", errs)
	}
	return nil
}
