package detect

import "sort"

// DefaultIoUThreshold is the overlap above which two similar-label detections are duplicates
const DefaultIoUThreshold = 0.5

// DetectedObject is one detection in canonical form
type DetectedObject struct {
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"` // 0..1
	BBox        Box     `json:"bbox"`
	SourceModel string  `json:"source_model"`
}

// Deduplicate runs greedy non-maximum suppression across detectors and label synonyms.
// Detections are visited by descending confidence; one is dropped if it overlaps
// (IoU > threshold) an already kept detection with a similar label.
func Deduplicate(objects []DetectedObject, iouThreshold float64) []DetectedObject {
	if len(objects) == 0 {
		return nil
	}
	if iouThreshold <= 0 {
		iouThreshold = DefaultIoUThreshold
	}

	sorted := make([]DetectedObject, len(objects))
	copy(sorted, objects)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]DetectedObject, 0, len(sorted))
	for _, cand := range sorted {
		duplicate := false
		for _, k := range kept {
			if AreSimilarLabels(cand.Label, k.Label) && IoU(cand.BBox, k.BBox) > iouThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, cand)
		}
	}
	return kept
}

// PrimaryClass returns the label of the most confident detection, or "" if there are none
func PrimaryClass(objects []DetectedObject) string {
	best := -1
	for i, o := range objects {
		if best < 0 || o.Confidence > objects[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return objects[best].Label
}

// Labels returns the distinct normalized labels of the detections
func Labels(objects []DetectedObject) []string {
	seen := make(map[string]struct{}, len(objects))
	labels := make([]string, 0, len(objects))
	for _, o := range objects {
		l := NormalizeLabel(o.Label)
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		labels = append(labels, l)
	}
	return labels
}
