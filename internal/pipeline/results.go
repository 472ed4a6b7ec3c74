package pipeline

import "encoding/json"

// ResultJSON is a serializable representation of a fused detection run.
type ResultJSON struct {
	SourceWidth  int             `json:"source_width"`
	SourceHeight int             `json:"source_height"`
	CanvasWidth  int             `json:"canvas_width"`
	CanvasHeight int             `json:"canvas_height"`
	Crops        int             `json:"crops"`
	SkippedTiles int             `json:"skipped_tiles,omitempty"`
	FailedCrops  int             `json:"failed_crops,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
	Detections   []DetectionJSON `json:"detections"`
}

// DetectionJSON is one fused detection.
type DetectionJSON struct {
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	Box        BoxJSON `json:"box"`
}

// BoxJSON is a corner-form bounding box.
type BoxJSON struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// ToStruct converts the result to its serializable form.
func (r *Result) ToStruct() ResultJSON {
	out := ResultJSON{
		SourceWidth:  r.SourceWidth,
		SourceHeight: r.SourceHeight,
		CanvasWidth:  r.CanvasWidth,
		CanvasHeight: r.CanvasHeight,
		Crops:        r.Crops,
		SkippedTiles: r.SkippedTiles,
		FailedCrops:  r.FailedCrops,
		DurationMs:   r.ProcessingTime.Milliseconds(),
		Detections:   make([]DetectionJSON, 0, r.Len()),
	}
	for i, b := range r.Boxes {
		out.Detections = append(out.Detections, DetectionJSON{
			ClassID:    r.ClassIDs[i],
			ClassName:  r.ClassNames[i],
			Confidence: r.Confidences[i],
			Box:        BoxJSON{X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y2},
		})
	}
	return out
}

// ToJSON serializes the result with indentation.
func (r *Result) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r.ToStruct(), "", "  ")
}
