package visionworker

// Detection is one localized object: a label with its score and pixel bounding
// box as left, top, right, bottom.
type Detection struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Box   [4]int  `json:"box"`
}

// ObjectDetector localizes arbitrary text labels in an image. The zero-shot
// model behind it is an external collaborator; implementations own its
// lifecycle and must be safe for concurrent Detect calls.
type ObjectDetector interface {
	Detect(image []byte, labels []string) ([]Detection, error)
}

// MockDetector reports one full-frame detection per requested label.
type MockDetector struct {
}

func (MockDetector) Detect(image []byte, labels []string) ([]Detection, error) {
	detections := make([]Detection, 0, len(labels))
	for _, label := range labels {
		detections = append(detections, Detection{Label: label, Score: 0.5, Box: [4]int{0, 0, 1, 1}})
	}
	return detections, nil
}
