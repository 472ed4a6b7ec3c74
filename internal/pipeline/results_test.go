package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/MeKo-Tech/mosaic/internal/fuse"
	"github.com/MeKo-Tech/mosaic/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultToJSON(t *testing.T) {
	res := &Result{
		Result: &fuse.Result{
			Confidences: []float64{0.9, 0.7},
			Boxes:       []geometry.Box{geometry.NewBox(1, 2, 3, 4), geometry.NewBox(5, 6, 7, 8)},
			ClassIDs:    []int{0, 2},
			ClassNames:  []string{"person", "car"},
		},
		SourceWidth:    1500,
		SourceHeight:   1000,
		CanvasWidth:    1750,
		CanvasHeight:   1225,
		Crops:          6,
		FailedCrops:    1,
		ProcessingTime: 1500 * time.Millisecond,
	}

	data, err := res.ToJSON()
	require.NoError(t, err)

	var decoded ResultJSON
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 1500, decoded.SourceWidth)
	assert.Equal(t, 6, decoded.Crops)
	assert.Equal(t, 1, decoded.FailedCrops)
	assert.Equal(t, int64(1500), decoded.DurationMs)
	require.Len(t, decoded.Detections, 2)
	assert.Equal(t, "person", decoded.Detections[0].ClassName)
	assert.InDelta(t, 3.0, decoded.Detections[0].Box.X2, 1e-9)
}
