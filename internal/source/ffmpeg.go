package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/bdougie/firewatch/internal/models"
)

const maxFrameBytes = 16 << 20

// FFmpeg decodes a video with an ffmpeg subprocess streaming MJPEG frames
// over a pipe. Frames are paced at the native rate so sampling intervals
// follow video time.
type FFmpeg struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	scanner *bufio.Scanner
	stderr  *bytes.Buffer
	seq     uint64
	once    sync.Once
}

// OpenFFmpeg starts ffmpeg on path, which may be a file or a stream URL
func OpenFFmpeg(ctx context.Context, path string) (*FFmpeg, error) {
	if _, ok := DeviceID(path).(int); ok {
		return nil, fmt.Errorf("ffmpeg backend does not support camera index '%s'", path)
	}

	// Check if video file exists
	if !strings.Contains(path, "://") {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("video file does not exist at path: '%s'", path)
		}
	}

	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-re",
		"-i", path,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 256<<10), maxFrameBytes)
	scanner.Split(SplitJPEG)

	return &FFmpeg{
		cmd:     cmd,
		stdout:  stdout,
		scanner: scanner,
		stderr:  &stderr,
	}, nil
}

// NextFrame decodes the next JPEG from the pipe. It returns io.EOF when
// ffmpeg has no more frames.
func (f *FFmpeg) NextFrame(ctx context.Context) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}

	if !f.scanner.Scan() {
		if err := f.scanner.Err(); err != nil {
			return models.Frame{}, fmt.Errorf("ffmpeg stream: %w", err)
		}
		return models.Frame{}, io.EOF
	}

	img, err := jpeg.Decode(bytes.NewReader(f.scanner.Bytes()))
	if err != nil {
		return models.Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}

	f.seq++
	return models.Frame{
		Seq:        f.seq,
		CapturedAt: time.Now(),
		Image:      img,
	}, nil
}

// Release stops ffmpeg and waits for it to exit
func (f *FFmpeg) Release() error {
	var err error
	f.once.Do(func() {
		f.stdout.Close()
		if f.cmd.Process != nil {
			_ = f.cmd.Process.Kill()
		}
		werr := f.cmd.Wait()
		var exitErr *exec.ExitError
		if werr != nil && !errors.As(werr, &exitErr) {
			err = fmt.Errorf("ffmpeg failed: %v\nOutput: %s", werr, f.stderr.String())
		}
	})
	return err
}

var (
	jpegStart = []byte{0xFF, 0xD8}
	jpegEnd   = []byte{0xFF, 0xD9}
)

// SplitJPEG is a bufio.SplitFunc that yields one complete JPEG image per
// token from a concatenated MJPEG stream. Bytes before a start-of-image
// marker are skipped.
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegStart)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF in case it begins a marker
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end := bytes.Index(data[start+len(jpegStart):], jpegEnd)
	if end < 0 {
		if atEOF {
			// Truncated trailing image
			return len(data), nil, nil
		}
		// Drop leading garbage and ask for more
		return start, nil, nil
	}

	stop := start + len(jpegStart) + end + len(jpegEnd)
	return stop, data[start:stop], nil
}
