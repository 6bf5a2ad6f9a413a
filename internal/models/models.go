package models

import (
	"image"
	"time"
)

// Frame is a single decoded picture pulled from a video source
type Frame struct {
	Seq        uint64
	CapturedAt time.Time
	Image      image.Image
}

// SampleEvent describes one analysis cycle launched by the monitor loop
type SampleEvent struct {
	ID        string
	Seq       uint64
	SampledAt time.Time
}

// Detection is the parsed verdict of the vision service.
// The zero value means nothing was detected.
type Detection struct {
	Detected bool
	Subject  string
	Body     string
	Raw      string
}

// AlertRequest carries a detection to the alert dispatcher
type AlertRequest struct {
	Subject   string
	Body      string
	FramePath string
}

// AnalysisRecord represents the outcome of one analysis cycle
type AnalysisRecord struct {
	SampleID   string    `json:"sample_id"`
	Source     string    `json:"source"`
	Frame      string    `json:"frame"`
	FrameSeq   uint64    `json:"frame_seq"`
	SampledAt  time.Time `json:"sampled_at"`
	Detected   bool      `json:"detected"`
	Subject    string    `json:"subject,omitempty"`
	Body       string    `json:"body,omitempty"`
	Raw        string    `json:"raw,omitempty"`
	Dispatched bool      `json:"dispatched"`
	Err        string    `json:"error,omitempty"`
	Signature  []float32 `json:"signature,omitempty"`
}

// SimilarDetection is a past detection whose frame looked like the current one
type SimilarDetection struct {
	SampleID   string
	SampledAt  time.Time
	Subject    string
	Similarity float64
}
