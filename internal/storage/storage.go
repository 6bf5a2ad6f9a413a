package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/firewatch/internal/models"
)

const batchSize = 10 // Number of records to batch write

// Recorder defines the interface for storing analysis records
type Recorder interface {
	// Record adds a single analysis record
	Record(ctx context.Context, record models.AnalysisRecord) error

	// Flush ensures all pending records are saved
	Flush() error
}

// SimilarFinder looks up past detections whose frames look alike
type SimilarFinder interface {
	SimilarDetections(ctx context.Context, signature []float32, limit int) ([]models.SimilarDetection, error)
}

// Nop discards records
type Nop struct{}

func (Nop) Record(context.Context, models.AnalysisRecord) error { return nil }
func (Nop) Flush() error                                        { return nil }

// Journal appends analysis records to a JSON file in batches
type Journal struct {
	records []models.AnalysisRecord
	mu      sync.Mutex
	path    string
}

// NewJournal creates a journal writing to path
func NewJournal(path string) (*Journal, error) {
	// Create directory if it doesn't exist
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for journal: %w", err)
		}
	}
	return &Journal{path: path}, nil
}

// Record adds a record to the batch and flushes if the batch is full
func (j *Journal) Record(ctx context.Context, record models.AnalysisRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	// Signatures belong in the vector store, not the journal
	record.Signature = nil
	j.records = append(j.records, record)

	// Write to disk when batch is full or the record matters
	if len(j.records) >= batchSize || record.Detected {
		return j.flush()
	}
	return nil
}

// Flush writes all pending records to disk
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flush()
}

// Records reads back every record written so far, pending ones included
func (j *Journal) Records() ([]models.AnalysisRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	existing, err := j.read()
	if err != nil {
		return nil, err
	}
	return append(existing, j.records...), nil
}

// Internal flush implementation
func (j *Journal) flush() error {
	if len(j.records) == 0 {
		return nil
	}

	existing, err := j.read()
	if err != nil {
		return err
	}
	all := append(existing, j.records...)

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	if err := os.WriteFile(j.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}

	j.records = nil // Clear the batch
	return nil
}

func (j *Journal) read() ([]models.AnalysisRecord, error) {
	var existing []models.AnalysisRecord

	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &existing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal existing records: %w", err)
	}
	return existing, nil
}

// Multi fans records out to several recorders
type Multi []Recorder

// Record writes to every recorder and returns the first error
func (m Multi) Record(ctx context.Context, record models.AnalysisRecord) error {
	var firstErr error
	for _, r := range m {
		if err := r.Record(ctx, record); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Flush flushes every recorder and returns the first error
func (m Multi) Flush() error {
	var firstErr error
	for _, r := range m {
		if err := r.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SimilarDetections asks the first recorder able to answer
func (m Multi) SimilarDetections(ctx context.Context, signature []float32, limit int) ([]models.SimilarDetection, error) {
	for _, r := range m {
		if finder, ok := r.(SimilarFinder); ok {
			return finder.SimilarDetections(ctx, signature, limit)
		}
	}
	return nil, nil
}
