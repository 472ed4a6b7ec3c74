package fuse

import (
	"fmt"
	"math"
	"sort"

	"github.com/MeKo-Tech/mosaic/internal/geometry"
	"github.com/MeKo-Tech/mosaic/internal/mask"
)

// Suppress runs greedy non-maximum suppression over the aggregated
// detections and returns the indices of the survivors, in acceptance order
// (highest priority first).
//
// The pending set is sorted ascending and consumed from the back, so the
// highest-priority candidate is adjudicated each round. With the intelligent
// sorter the priority key is (confidence rounded to one decimal, box area):
// within a coarse confidence bucket the larger box wins, which stops many
// small high-confidence fragments from out-competing one larger, slightly
// less confident detection.
//
// When masks are provided and at least one remaining box overlaps the
// current candidate, the conflict is re-adjudicated at the pixel level:
// only candidates whose mask-level metric exceeds the threshold are
// suppressed. Candidates without box overlap are never evaluated at mask
// level and survive the round unconditionally.
//
// The boundary convention is strict in both branches: a candidate whose
// metric value equals the threshold exactly is kept.
func Suppress(
	confidences []float64,
	boxes []geometry.Box,
	metric Metric,
	threshold float64,
	masks []mask.Mask,
	intelligentSorter bool,
) ([]int, error) {
	if !metric.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, string(metric))
	}
	if len(confidences) != len(boxes) {
		return nil, fmt.Errorf("confidences and boxes not co-indexed: %d vs %d",
			len(confidences), len(boxes))
	}
	if masks != nil && len(masks) != len(boxes) {
		return nil, fmt.Errorf("masks and boxes not co-indexed: %d vs %d",
			len(masks), len(boxes))
	}
	if len(boxes) == 0 {
		return []int{}, nil
	}

	order := sortOrder(confidences, boxes, intelligentSorter)
	keep := make([]int, 0, len(order))
	values := make([]float64, len(order))

	for len(order) > 0 {
		idx := order[len(order)-1]
		order = order[:len(order)-1]
		keep = append(keep, idx)
		if len(order) == 0 {
			break
		}

		anyOverlap := false
		for i, j := range order {
			values[i] = metric.boxValue(boxes[idx], boxes[j])
			if geometry.Intersection(boxes[idx], boxes[j]) > 0 {
				anyOverlap = true
			}
		}

		if masks != nil && anyOverlap {
			order = suppressByMasks(order, values, masks, idx, metric, threshold)
		} else {
			order = suppressByBoxes(order, values, threshold)
		}
	}

	return keep, nil
}

// suppressByBoxes drops every pending index whose box metric exceeds the
// threshold. Filtering is done through an explicit survivor list over the
// pending set.
func suppressByBoxes(order []int, values []float64, threshold float64) []int {
	survivors := order[:0]
	for i, j := range order {
		if values[i] <= threshold {
			survivors = append(survivors, j)
		}
	}
	return survivors
}

// suppressByMasks re-adjudicates box conflicts at the pixel level. Only
// indices with positive box overlap are compared by mask; the rest survive
// this round unconditionally.
func suppressByMasks(
	order []int,
	values []float64,
	masks []mask.Mask,
	idx int,
	metric Metric,
	threshold float64,
) []int {
	survivors := order[:0]
	for i, j := range order {
		if values[i] <= 0 {
			survivors = append(survivors, j)
			continue
		}
		if metric.maskValue(masks[idx], masks[j]) <= threshold {
			survivors = append(survivors, j)
		}
	}
	return survivors
}

// sortOrder returns detection indices in ascending priority so the last
// element is processed first.
func sortOrder(confidences []float64, boxes []geometry.Box, intelligent bool) []int {
	order := make([]int, len(confidences))
	for i := range order {
		order[i] = i
	}
	if intelligent {
		sort.SliceStable(order, func(a, b int) bool {
			i, j := order[a], order[b]
			bi := math.Round(confidences[i]*10) / 10
			bj := math.Round(confidences[j]*10) / 10
			if bi != bj {
				return bi < bj
			}
			return boxes[i].Area() < boxes[j].Area()
		})
	} else {
		sort.SliceStable(order, func(a, b int) bool {
			return confidences[order[a]] < confidences[order[b]]
		})
	}
	return order
}
