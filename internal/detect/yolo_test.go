package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makePred builds a [1, 4+nc+nm, anchors] prediction tensor. set(row, col, v)
// writes one attribute of one anchor.
func makePred(anchors, nc, nm int, fill func(set func(row, col int, v float32))) rawOutput {
	attrs := 4 + nc + nm
	data := make([]float32, attrs*anchors)
	fill(func(row, col int, v float32) { data[row*anchors+col] = v })
	return rawOutput{predData: data, predShape: []int64{1, int64(attrs), int64(anchors)}}
}

// setBox writes a center-form box into an anchor's first four rows.
func setBox(set func(row, col int, v float32), col int, cx, cy, w, h float32) {
	set(0, col, cx)
	set(1, col, cy)
	set(2, col, w)
	set(3, col, h)
}

func baseParams() decodeParams {
	return decodeParams{
		Params: Params{
			ImageSize:     640,
			ConfThreshold: 0.5,
			IoUThreshold:  0.7,
		},
		CropWidth:  320,
		CropHeight: 320,
	}
}

func TestDecodeYOLOSingleBox(t *testing.T) {
	raw := makePred(1, 3, 0, func(set func(int, int, float32)) {
		setBox(set, 0, 100, 200, 40, 60)
		set(4+1, 0, 0.9) // class 1
	})

	det, err := decodeYOLO(raw, baseParams())
	require.NoError(t, err)
	require.Equal(t, 1, det.Len())
	require.NoError(t, det.Validate())

	assert.Equal(t, 1, det.Classes[0])
	assert.InDelta(t, 0.9, det.Confidences[0], 1e-6)

	// model box (80,170)-(120,230) scaled by 320/640
	b := det.Boxes[0]
	assert.InDelta(t, 40, b.X1, 1e-4)
	assert.InDelta(t, 85, b.Y1, 1e-4)
	assert.InDelta(t, 60, b.X2, 1e-4)
	assert.InDelta(t, 115, b.Y2, 1e-4)
}

func TestDecodeYOLOConfidenceThreshold(t *testing.T) {
	raw := makePred(2, 2, 0, func(set func(int, int, float32)) {
		setBox(set, 0, 100, 100, 20, 20)
		set(4, 0, 0.49)
		setBox(set, 1, 300, 300, 20, 20)
		set(4, 1, 0.51)
	})

	det, err := decodeYOLO(raw, baseParams())
	require.NoError(t, err)
	require.Equal(t, 1, det.Len())
	assert.InDelta(t, 0.51, det.Confidences[0], 1e-6)
}

func TestDecodeYOLOClassFilter(t *testing.T) {
	raw := makePred(2, 3, 0, func(set func(int, int, float32)) {
		setBox(set, 0, 100, 100, 20, 20)
		set(4+0, 0, 0.9)
		setBox(set, 1, 300, 300, 20, 20)
		set(4+2, 1, 0.9)
	})

	p := baseParams()
	p.ClassFilter = []int{2}
	det, err := decodeYOLO(raw, p)
	require.NoError(t, err)
	require.Equal(t, 1, det.Len())
	assert.Equal(t, 2, det.Classes[0])
}

func TestDecodeYOLONMSSameClass(t *testing.T) {
	// two near-identical boxes of the same class: only the stronger survives
	raw := makePred(2, 1, 0, func(set func(int, int, float32)) {
		setBox(set, 0, 100, 100, 40, 40)
		set(4, 0, 0.8)
		setBox(set, 1, 102, 100, 40, 40)
		set(4, 1, 0.9)
	})

	det, err := decodeYOLO(raw, baseParams())
	require.NoError(t, err)
	require.Equal(t, 1, det.Len())
	assert.InDelta(t, 0.9, det.Confidences[0], 1e-6)
}

func TestDecodeYOLONMSKeepsAcrossClasses(t *testing.T) {
	raw := makePred(2, 2, 0, func(set func(int, int, float32)) {
		setBox(set, 0, 100, 100, 40, 40)
		set(4+0, 0, 0.8)
		setBox(set, 1, 100, 100, 40, 40)
		set(4+1, 1, 0.9)
	})

	det, err := decodeYOLO(raw, baseParams())
	require.NoError(t, err)
	assert.Equal(t, 2, det.Len())
}

func TestDecodeYOLOClampsToInput(t *testing.T) {
	raw := makePred(1, 1, 0, func(set func(int, int, float32)) {
		setBox(set, 0, 10, 10, 100, 100)
		set(4, 0, 0.9)
	})

	det, err := decodeYOLO(raw, baseParams())
	require.NoError(t, err)
	require.Equal(t, 1, det.Len())
	assert.GreaterOrEqual(t, det.Boxes[0].X1, 0.0)
	assert.GreaterOrEqual(t, det.Boxes[0].Y1, 0.0)
}

func TestDecodeYOLOEmpty(t *testing.T) {
	raw := makePred(4, 2, 0, func(set func(int, int, float32)) {})
	det, err := decodeYOLO(raw, baseParams())
	require.NoError(t, err)
	assert.Equal(t, 0, det.Len())
	assert.False(t, det.HasMasks())
}

func TestDecodeYOLOBadShape(t *testing.T) {
	raw := rawOutput{predData: make([]float32, 10), predShape: []int64{1, 10}}
	_, err := decodeYOLO(raw, baseParams())
	require.Error(t, err)
}

func TestDecodeYOLOSegmentation(t *testing.T) {
	// one prototype plane of all ones over a 4x4 grid; the single positive
	// coefficient lights up every prototype cell inside the box
	raw := makePred(1, 1, 1, func(set func(int, int, float32)) {
		setBox(set, 0, 4, 4, 4, 4)
		set(4, 0, 0.9)   // class score
		set(4+1, 0, 1.0) // mask coefficient
	})
	raw.protoShape = []int64{1, 1, 4, 4}
	raw.protoData = make([]float32, 16)
	for i := range raw.protoData {
		raw.protoData[i] = 1.0
	}

	p := decodeParams{
		Params: Params{
			ImageSize:     8,
			ConfThreshold: 0.5,
			IoUThreshold:  0.7,
			Segment:       true,
		},
		CropWidth:  8,
		CropHeight: 8,
		Segment:    true,
	}

	det, err := decodeYOLO(raw, p)
	require.NoError(t, err)
	require.Equal(t, 1, det.Len())
	require.True(t, det.HasMasks())
	require.NoError(t, det.Validate())

	m := det.Masks[0]
	assert.Equal(t, 8, m.Width())
	assert.Equal(t, 8, m.Height())
	// box (2,2)-(6,6) maps to prototype cells (1,1)-(3,3), doubled on resize
	assert.Equal(t, 16, m.Area())
	assert.True(t, m.At(3, 3))
	assert.False(t, m.At(0, 0))
}
