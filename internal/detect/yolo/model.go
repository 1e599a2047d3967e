package yolo

import (
	"bufio"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

const inputSize = 640

// RawDetection is one box emitted by the detection model, in pixel
// coordinates of the input image.
type RawDetection struct {
	ClassID    int
	Confidence float32
	Box        image.Rectangle
}

// Model is the capability boundary around the external detection network.
// Tests inject a deterministic stub.
type Model interface {
	Predict(img gocv.Mat) ([]RawDetection, error)
	Close() error
}

// Net runs a YOLO network exported to ONNX through the OpenCV DNN module.
type Net struct {
	net         gocv.Net
	scoreThresh float32
	nmsThresh   float32
	numClasses  int
}

// NewNet loads the ONNX weights. numClasses must match the label table the
// model was trained on.
func NewNet(weightsPath string, numClasses int) (*Net, error) {
	net := gocv.ReadNetFromONNX(weightsPath)
	if net.Empty() {
		return nil, fmt.Errorf("could not load detection model from %s", weightsPath)
	}
	return &Net{
		net:         net,
		scoreThresh: 0.25,
		nmsThresh:   0.45,
		numClasses:  numClasses,
	}, nil
}

// Predict runs one forward pass and returns non-maximum-suppressed boxes
// scaled back to the input image size.
func (n *Net) Predict(img gocv.Mat) ([]RawDetection, error) {
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(inputSize, inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	n.net.SetInput(blob, "")
	output := n.net.Forward("")
	defer output.Close()

	// YOLO ONNX output is [1, 4+numClasses, anchors]: cx, cy, w, h followed
	// by one score per class, one column per anchor box.
	sizes := output.Size()
	if len(sizes) != 3 || sizes[1] != 4+n.numClasses {
		return nil, fmt.Errorf("unexpected model output shape %v", sizes)
	}
	anchors := sizes[2]

	scaleX := float32(img.Cols()) / float32(inputSize)
	scaleY := float32(img.Rows()) / float32(inputSize)

	var boxes []image.Rectangle
	var scores []float32
	var classIDs []int

	for a := 0; a < anchors; a++ {
		bestScore := float32(0)
		bestClass := 0
		for c := 0; c < n.numClasses; c++ {
			score := output.GetFloatAt3(0, 4+c, a)
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestScore < n.scoreThresh {
			continue
		}

		cx := output.GetFloatAt3(0, 0, a)
		cy := output.GetFloatAt3(0, 1, a)
		w := output.GetFloatAt3(0, 2, a)
		h := output.GetFloatAt3(0, 3, a)

		x1 := int((cx - w/2) * scaleX)
		y1 := int((cy - h/2) * scaleY)
		x2 := int((cx + w/2) * scaleX)
		y2 := int((cy + h/2) * scaleY)

		boxes = append(boxes, image.Rect(x1, y1, x2, y2))
		scores = append(scores, bestScore)
		classIDs = append(classIDs, bestClass)
	}

	indices := gocv.NMSBoxes(boxes, scores, n.scoreThresh, n.nmsThresh)

	results := make([]RawDetection, 0, len(indices))
	for _, i := range indices {
		results = append(results, RawDetection{
			ClassID:    classIDs[i],
			Confidence: scores[i],
			Box:        boxes[i],
		})
	}
	return results, nil
}

// Close releases the network.
func (n *Net) Close() error {
	return n.net.Close()
}

// LoadLabels reads the model's class names, one per line.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels found in %s", path)
	}
	return labels, nil
}
