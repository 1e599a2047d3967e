package yolo

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"pickup-service/internal/classify"
	"pickup-service/internal/detect"
	"pickup-service/internal/models"
)

// Detector decodes uploaded photos, runs the detection model over them and
// classifies every detected item into a disposal category. It holds no state
// beyond the model handle and performs no storage writes.
type Detector struct {
	model      Model
	labels     []string
	classifier *classify.Classifier
}

// NewDetector creates a Detector around a loaded model. labels maps the
// model's class ids to label strings.
func NewDetector(model Model, labels []string, classifier *classify.Classifier) *Detector {
	return &Detector{
		model:      model,
		labels:     labels,
		classifier: classifier,
	}
}

// Detect decodes imageBytes, runs the model and returns the detection list
// together with an annotated copy of the image. Returns detect.ErrDecode when
// the bytes are not a readable image.
func (d *Detector) Detect(ctx context.Context, imageBytes []byte) (*detect.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(imageBytes) == 0 {
		return nil, detect.ErrDecode
	}

	img, err := gocv.IMDecode(imageBytes, gocv.IMReadColor)
	if err != nil {
		return nil, errors.Wrap(detect.ErrDecode, err.Error())
	}
	defer img.Close()
	if img.Empty() {
		return nil, detect.ErrDecode
	}

	raw, err := d.model.Predict(img)
	if err != nil {
		return nil, errors.Wrap(err, "detection model failed")
	}

	annotated := img.Clone()
	defer annotated.Close()

	green := color.RGBA{G: 255}
	white := color.RGBA{R: 255, G: 255, B: 255}

	detections := make([]models.Detection, 0, len(raw))
	for _, r := range raw {
		box := clampBox(r.Box, img.Cols(), img.Rows())
		label := d.labelFor(r.ClassID)
		category := d.classifier.Classify(label)

		detections = append(detections, models.Detection{
			Label:      label,
			Category:   category,
			Confidence: roundConfidence(float64(r.Confidence)),
			BBox:       [4]int{box.Min.X, box.Min.Y, box.Max.X, box.Max.Y},
		})

		gocv.Rectangle(&annotated, box, green, 2)
		caption := fmt.Sprintf("%s (%s)", label, category)
		gocv.PutText(&annotated, caption, image.Pt(box.Min.X, box.Min.Y-10),
			gocv.FontHersheySimplex, 0.5, white, 2)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, annotated)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode annotated image")
	}
	defer buf.Close()

	encoded := make([]byte, len(buf.GetBytes()))
	copy(encoded, buf.GetBytes())

	return &detect.Result{
		Annotated:  encoded,
		Detections: detections,
	}, nil
}

func (d *Detector) labelFor(classID int) string {
	if classID >= 0 && classID < len(d.labels) {
		return d.labels[classID]
	}
	return fmt.Sprintf("class_%d", classID)
}

// clampBox truncates a box to the image bounds, keeping x1<x2 and y1<y2.
func clampBox(box image.Rectangle, width, height int) image.Rectangle {
	clamped := box.Canon().Intersect(image.Rect(0, 0, width, height))
	if clamped.Empty() {
		// Degenerate box fully outside the image; pin it to the nearest edge.
		x := clampInt(box.Min.X, 0, width-1)
		y := clampInt(box.Min.Y, 0, height-1)
		return image.Rect(x, y, x+1, y+1)
	}
	return clamped
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundConfidence rounds to two decimals for the response contract.
func roundConfidence(conf float64) float64 {
	return math.Round(conf*100) / 100
}
