package ai

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// classOffset separates boxes of different classes so that a single NMS pass
// only suppresses overlaps within the same class.
const classOffset = 4096

type candidate struct {
	box     image.Rectangle
	classID int
	score   float32
}

// decodeYOLO reads a YOLOv8 head output shaped [1, 4+classes, anchors]. Each anchor
// column is (cx, cy, w, h, class scores...) in network input pixels; boxes are scaled
// by scaleX/scaleY into frame pixels.
func decodeYOLO(data []float32, shape []int, threshold, scaleX, scaleY float32) ([]candidate, error) {
	if len(shape) != 3 || shape[0] != 1 || shape[1] <= 4 {
		return nil, fmt.Errorf("unexpected model output shape %v", shape)
	}
	channels, anchors := shape[1], shape[2]
	if len(data) < channels*anchors {
		return nil, fmt.Errorf("model output has %d values, expected %d", len(data), channels*anchors)
	}

	var out []candidate
	for i := 0; i < anchors; i++ {
		bestClass, bestScore := -1, float32(0)
		for c := 4; c < channels; c++ {
			if score := data[c*anchors+i]; score > bestScore {
				bestClass, bestScore = c-4, score
			}
		}
		if bestClass < 0 || bestScore <= threshold {
			continue
		}

		cx, cy := data[i], data[anchors+i]
		w, h := data[2*anchors+i], data[3*anchors+i]
		out = append(out, candidate{
			box: image.Rect(
				int((cx-w/2)*scaleX),
				int((cy-h/2)*scaleY),
				int((cx+w/2)*scaleX),
				int((cy+h/2)*scaleY),
			),
			classID: bestClass,
			score:   bestScore,
		})
	}
	return out, nil
}

// suppress runs per-class non-maximum suppression and returns the survivors in
// descending score order.
func suppress(candidates []candidate, scoreThreshold, nmsThreshold float32) []candidate {
	if len(candidates) == 0 {
		return nil
	}

	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		offset := image.Pt(c.classID*classOffset, c.classID*classOffset)
		boxes[i] = c.box.Add(offset)
		scores[i] = c.score
	}

	indices := gocv.NMSBoxes(boxes, scores, scoreThreshold, nmsThreshold)
	kept := make([]candidate, 0, len(indices))
	for _, idx := range indices {
		kept = append(kept, candidates[idx])
	}
	return kept
}
