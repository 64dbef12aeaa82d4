package vision

import (
	"fmt"
	"image"
	"image/color"

	"weapondetection/internal/model"

	"gocv.io/x/gocv"
)

// Annotator draws detection boxes onto JPEG frames.
type Annotator struct {
	color     color.RGBA
	thickness int
}

func NewAnnotator() *Annotator {
	return &Annotator{
		color:     color.RGBA{R: 255, G: 0, B: 0, A: 0},
		thickness: 2,
	}
}

// Annotate draws a labelled rectangle per detection and returns the re-encoded JPEG.
func (a *Annotator) Annotate(img []byte, detections []model.Detection) ([]byte, error) {
	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	for _, detection := range detections {
		box := detection.BBox
		x, y := int(box.X), int(box.Y)
		rect := image.Rect(x, y, int(box.X+box.Width), int(box.Y+box.Height))
		if err := gocv.Rectangle(&mat, rect, a.color, a.thickness); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}

		label := fmt.Sprintf("%s (%.2f)", detection.Class, detection.Score)
		if err := gocv.PutText(&mat, label, image.Pt(x, y-5), gocv.FontHersheySimplex, 0.5, a.color, 1); err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
