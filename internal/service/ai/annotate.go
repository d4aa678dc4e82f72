package ai

import (
	"fmt"
	"image"
	"image/color"

	"proctor/internal/dto"

	"gocv.io/x/gocv"
)

var (
	personColor = color.RGBA{R: 255, G: 165, B: 0, A: 0}
	objectColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	fpsColor    = color.RGBA{R: 200, G: 200, B: 200, A: 0}
)

// Annotate draws detections and the current FPS onto frame. Detection boxes are in the
// resized frame's pixels and are scaled back to frame's own size.
func (s *DetectorService) Annotate(frame *gocv.Mat, detections []dto.Detection, fps float64) error {
	scale := float64(frame.Cols()) / float64(s.width)

	for _, detection := range detections {
		c := objectColor
		if detection.Label == "person" {
			c = personColor
		}

		rect := image.Rect(
			int(float64(detection.Box.Min.X)*scale),
			int(float64(detection.Box.Min.Y)*scale),
			int(float64(detection.Box.Max.X)*scale),
			int(float64(detection.Box.Max.Y)*scale),
		)
		if err := gocv.Rectangle(frame, rect, c, 2); err != nil {
			return fmt.Errorf("failed to draw rectangle: %v", err)
		}

		label := fmt.Sprintf("%s %.2f", detection.Label, detection.Confidence)
		pt := image.Pt(rect.Min.X, max(20, rect.Min.Y-6))
		if err := gocv.PutText(frame, label, pt, gocv.FontHersheySimplex, 0.6, c, 2); err != nil {
			return fmt.Errorf("failed to draw text: %v", err)
		}
	}

	if err := gocv.PutText(frame, fmt.Sprintf("FPS: %d", int(fps)), image.Pt(10, 30), gocv.FontHersheySimplex, 0.6, fpsColor, 2); err != nil {
		return fmt.Errorf("failed to draw text: %v", err)
	}
	return nil
}

// EncodeJPEG re-encodes frame for live viewers.
func EncodeJPEG(frame gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(".jpg", frame)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	finalImage := make([]byte, len(buf.GetBytes()))
	copy(finalImage, buf.GetBytes())
	return finalImage, nil
}
