package batch

import (
	"time"

	"github.com/MeKo-Tech/mosaic/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// ContinueOnError records per-file failures instead of aborting the run.
	ContinueOnError bool

	// Output settings
	Format     string
	OutputFile string
	Quiet      bool
	ShowStats  bool
}

// DefaultConfig returns the default batch configuration.
func DefaultConfig() Config {
	return Config{
		ContinueOnError: true,
		Format:          "json",
	}
}

// FileResult is the outcome of one file in a batch run.
type FileResult struct {
	Path     string
	Result   *pipeline.Result
	Err      error
	Duration time.Duration
}

// Result holds the result of batch processing.
type Result struct {
	Files    []FileResult
	Duration time.Duration
}

// Processed returns the number of files that ran through the pipeline
// successfully.
func (r *Result) Processed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of files that could not be processed.
func (r *Result) Failed() int {
	return len(r.Files) - r.Processed()
}

// Detections returns the total number of fused detections across all files.
func (r *Result) Detections() int {
	n := 0
	for _, f := range r.Files {
		if f.Err == nil {
			n += f.Result.Len()
		}
	}
	return n
}
