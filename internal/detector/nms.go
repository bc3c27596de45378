package detector

import "sort"

// NMS applies greedy non-maximum suppression. Detections are ranked by
// confidence, ties keeping their input order; the best remaining detection
// is kept and every remaining one overlapping it with IoU > iouThreshold is
// dropped. The input slice is not modified.
func NMS(dets []Detection, iouThreshold float32) []Detection {
	if len(dets) == 0 {
		return []Detection{}
	}

	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]Detection, 0, len(sorted))
	suppressed := make([]bool, len(sorted))

	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])

		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] {
				continue
			}
			if IoU(sorted[i].Box, sorted[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}

	return kept
}
