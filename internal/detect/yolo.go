package detect

import (
	"fmt"
	"math"
	"sort"

	"github.com/MeKo-Tech/mosaic/internal/geometry"
	"github.com/MeKo-Tech/mosaic/internal/mask"
)

// YOLO-style prediction layout: [1, 4+nc(+nm), anchors] with box rows
// first (cx, cy, w, h in model-input pixels), then nc class probabilities,
// then nm mask coefficients for segmentation models.

type decodeParams struct {
	Params

	CropWidth  int
	CropHeight int
	Segment    bool
}

// candidate is one anchor that cleared the confidence threshold.
type candidate struct {
	box    geometry.Box // model-input pixel frame
	class  int
	score  float64
	coeffs []float32
}

// decodeYOLO turns raw model output into crop-local detections: threshold,
// class filter, per-class NMS, box rescale, and optional mask assembly.
func decodeYOLO(raw rawOutput, p decodeParams) (Detection, error) {
	if len(raw.predShape) != 3 || raw.predShape[0] != 1 {
		return Detection{}, fmt.Errorf("unexpected prediction shape %v", raw.predShape)
	}
	attrs := int(raw.predShape[1])
	anchors := int(raw.predShape[2])
	if len(raw.predData) != attrs*anchors {
		return Detection{}, fmt.Errorf("prediction data length %d != %d", len(raw.predData), attrs*anchors)
	}

	maskDims := 0
	if p.Segment {
		if len(raw.protoShape) != 4 || raw.protoShape[0] != 1 {
			return Detection{}, fmt.Errorf("unexpected prototype shape %v", raw.protoShape)
		}
		maskDims = int(raw.protoShape[1])
	}
	numClasses := attrs - 4 - maskDims
	if numClasses <= 0 {
		return Detection{}, fmt.Errorf("prediction has %d attributes for %d mask dims", attrs, maskDims)
	}

	cands := collectCandidates(raw.predData, attrs, anchors, numClasses, maskDims, p)
	kept := nmsPerClass(cands, p.IoUThreshold)

	sx := float64(p.CropWidth) / float64(p.ImageSize)
	sy := float64(p.CropHeight) / float64(p.ImageSize)

	det := Detection{
		Boxes:       make([]geometry.Box, 0, len(kept)),
		Classes:     make([]int, 0, len(kept)),
		Confidences: make([]float64, 0, len(kept)),
	}
	for _, c := range kept {
		det.Boxes = append(det.Boxes, c.box.Scale(sx, sy))
		det.Classes = append(det.Classes, c.class)
		det.Confidences = append(det.Confidences, c.score)
	}
	if p.Segment && len(kept) > 0 {
		det.Masks = assembleMasks(kept, raw, p)
	}
	return det, nil
}

func collectCandidates(pred []float32, attrs, anchors, numClasses, maskDims int, p decodeParams) []candidate {
	at := func(row, col int) float32 { return pred[row*anchors+col] }

	size := float64(p.ImageSize)
	var cands []candidate
	for j := 0; j < anchors; j++ {
		bestClass := -1
		bestScore := float32(0)
		for k := 0; k < numClasses; k++ {
			if s := at(4+k, j); s > bestScore {
				bestScore = s
				bestClass = k
			}
		}
		if bestClass < 0 || float64(bestScore) < p.ConfThreshold || !p.WantsClass(bestClass) {
			continue
		}

		cx := float64(at(0, j))
		cy := float64(at(1, j))
		w := float64(at(2, j))
		h := float64(at(3, j))
		box := geometry.NewBox(
			clamp(cx-w/2, 0, size),
			clamp(cy-h/2, 0, size),
			clamp(cx+w/2, 0, size),
			clamp(cy+h/2, 0, size),
		)
		if box.Area() <= 0 {
			continue
		}

		c := candidate{box: box, class: bestClass, score: float64(bestScore)}
		if maskDims > 0 {
			c.coeffs = make([]float32, maskDims)
			for k := 0; k < maskDims; k++ {
				c.coeffs[k] = at(4+numClasses+k, j)
			}
		}
		cands = append(cands, c)
	}
	return cands
}

// nmsPerClass greedily keeps the highest-scoring candidate per class and
// drops rivals of the same class whose IoU exceeds the threshold. This is
// the model's own duplicate removal within a single crop; cross-crop
// duplicates are left for fusion.
func nmsPerClass(cands []candidate, iouThreshold float64) []candidate {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	kept := make([]candidate, 0, len(cands))
	suppressed := make([]bool, len(cands))
	for i := range cands {
		if suppressed[i] {
			continue
		}
		kept = append(kept, cands[i])
		for j := i + 1; j < len(cands); j++ {
			if suppressed[j] || cands[j].class != cands[i].class {
				continue
			}
			if geometry.IoU(cands[i].box, cands[j].box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// assembleMasks builds one crop-resolution binary mask per kept detection
// from the prototype tensor: sigmoid of the coefficient-weighted prototype
// sum, restricted to the detection's box, thresholded at 0.5.
func assembleMasks(kept []candidate, raw rawOutput, p decodeParams) []mask.Mask {
	maskDims := int(raw.protoShape[1])
	protoH := int(raw.protoShape[2])
	protoW := int(raw.protoShape[3])
	plane := protoH * protoW

	// box scale from model-input pixels to prototype resolution
	px := float64(protoW) / float64(p.ImageSize)
	py := float64(protoH) / float64(p.ImageSize)

	masks := make([]mask.Mask, len(kept))
	for i, c := range kept {
		m := mask.New(protoW, protoH)

		x1 := int(math.Floor(c.box.X1 * px))
		y1 := int(math.Floor(c.box.Y1 * py))
		x2 := int(math.Ceil(c.box.X2 * px))
		y2 := int(math.Ceil(c.box.Y2 * py))
		x1, y1 = max(x1, 0), max(y1, 0)
		x2, y2 = min(x2, protoW), min(y2, protoH)

		for y := y1; y < y2; y++ {
			for x := x1; x < x2; x++ {
				var sum float32
				for k := 0; k < maskDims; k++ {
					sum += c.coeffs[k] * raw.protoData[k*plane+y*protoW+x]
				}
				// sigmoid(sum) > 0.5 iff sum > 0
				if sum > 0 {
					m.Set(x, y, true)
				}
			}
		}
		masks[i] = m.Resize(p.CropWidth, p.CropHeight)
	}
	return masks
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
