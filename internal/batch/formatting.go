package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/mosaic/internal/pipeline"
)

// fileResultJSON is the serializable form of one batch entry.
type fileResultJSON struct {
	File       string               `json:"file"`
	Error      string               `json:"error,omitempty"`
	DurationMs int64                `json:"duration_ms"`
	Result     *pipeline.ResultJSON `json:"result,omitempty"`
}

// FormatResults renders the batch result in the given format ("json" or
// "text").
func (r *Result) FormatResults(format string) (string, error) {
	switch format {
	case "json":
		entries := make([]fileResultJSON, 0, len(r.Files))
		for _, f := range r.Files {
			entry := fileResultJSON{File: f.Path, DurationMs: f.Duration.Milliseconds()}
			if f.Err != nil {
				entry.Error = f.Err.Error()
			} else {
				s := f.Result.ToStruct()
				entry.Result = &s
			}
			entries = append(entries, entry)
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal batch results: %w", err)
		}
		return string(data) + "\n", nil
	case "text":
		var b strings.Builder
		for _, f := range r.Files {
			if f.Err != nil {
				fmt.Fprintf(&b, "File: %s\n  error: %v\n", f.Path, f.Err)
				continue
			}
			res := f.Result
			fmt.Fprintf(&b, "File: %s (%dx%d)\nCrops: %d (failed: %d), detections: %d\n",
				f.Path, res.SourceWidth, res.SourceHeight, res.Crops, res.FailedCrops, res.Len())
			for i, box := range res.Boxes {
				fmt.Fprintf(&b, "  #%d %s conf=%.3f box=(%.1f,%.1f)-(%.1f,%.1f)\n",
					i+1, res.ClassNames[i], res.Confidences[i], box.X1, box.Y1, box.X2, box.Y2)
			}
		}
		return b.String(), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// SaveResults writes the formatted results to the configured file or stdout.
func (r *Result) SaveResults(format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(os.Stdout, "Results written to %s\n", outputFile)
		}
		return nil
	}

	_, _ = fmt.Fprint(os.Stdout, output)
	return nil
}

// PrintStats writes processing statistics for the run.
func (r *Result) PrintStats(w io.Writer) {
	processed := r.Processed()
	throughput := 0.0
	if r.Duration > 0 {
		throughput = float64(processed) / r.Duration.Seconds()
	}
	avg := time.Duration(0)
	if processed > 0 {
		avg = r.Duration / time.Duration(processed)
	}

	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", len(r.Files))
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", processed)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", r.Failed())
	_, _ = fmt.Fprintf(w, "  Detections: %d\n", r.Detections())
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", avg.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", throughput)
}
