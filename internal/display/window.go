// Package display shows monitored frames to the operator.
package display

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

const keyWait = 30 // milliseconds, also paces file playback

// Window shows frames in an OpenCV HighGUI window. Pressing q stops monitoring.
type Window struct {
	window *gocv.Window
}

// NewWindow opens a window titled title
func NewWindow(title string) *Window {
	return &Window{window: gocv.NewWindow(title)}
}

// Show draws img and reports whether the operator pressed q
func (w *Window) Show(img image.Image) bool {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return false
	}
	defer mat.Close()

	w.window.IMShow(mat)
	key := w.window.WaitKey(keyWait)
	return key&0xFF == 'q'
}

// Close destroys the window
func (w *Window) Close() error {
	if err := w.window.Close(); err != nil {
		return fmt.Errorf("failed to close window: %w", err)
	}
	return nil
}

// Headless discards frames. Monitoring only stops on interrupt or end of video.
type Headless struct{}

// Show implements the display contract without drawing anything
func (Headless) Show(image.Image) bool { return false }

// Close is a no-op
func (Headless) Close() error { return nil }
