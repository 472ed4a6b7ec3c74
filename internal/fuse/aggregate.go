package fuse

import (
	"github.com/MeKo-Tech/mosaic/internal/geometry"
	"github.com/MeKo-Tech/mosaic/internal/mask"
	"github.com/MeKo-Tech/mosaic/internal/tiler"
)

// Aggregate flattens every crop's remapped detection lists into four
// parallel global lists, iterating crops in tile order and preserving each
// crop's internal order.
//
// The mask list is nil when no crop carries masks. When at least one crop
// does, the list stays co-indexed with the boxes by inserting empty
// placeholder masks for crops whose masks were dropped; empty masks never
// overlap anything, so they can only survive mask-level adjudication.
func Aggregate(crops []*tiler.Crop) ([]float64, []geometry.Box, []mask.Mask, []int) {
	var (
		confidences []float64
		boxes       []geometry.Box
		masks       []mask.Mask
		classIDs    []int
	)

	hasMasks := false
	for _, c := range crops {
		if c.Remapped.HasMasks() {
			hasMasks = true
			break
		}
	}

	for _, c := range crops {
		det := c.Remapped
		confidences = append(confidences, det.Confidences...)
		boxes = append(boxes, det.Boxes...)
		classIDs = append(classIDs, det.Classes...)
		if !hasMasks {
			continue
		}
		if det.HasMasks() {
			masks = append(masks, det.Masks...)
		} else {
			for range det.Boxes {
				masks = append(masks, mask.Mask{})
			}
		}
	}

	return confidences, boxes, masks, classIDs
}
