// Package source provides video frame sources for the monitor loop.
package source

import (
	"fmt"
	"strconv"
	"strings"
)

// Backends
const (
	BackendGoCV   = "gocv"
	BackendFFmpeg = "ffmpeg"
)

// DeviceID interprets id as a camera index when it is a plain integer,
// otherwise as a file path or stream URL.
func DeviceID(id string) any {
	id = strings.TrimSpace(id)
	if n, err := strconv.Atoi(id); err == nil && n >= 0 {
		return n
	}
	return id
}

// Name returns a printable name for a source identifier
func Name(id string) string {
	if n, ok := DeviceID(id).(int); ok {
		return fmt.Sprintf("camera:%d", n)
	}
	return strings.TrimSpace(id)
}
