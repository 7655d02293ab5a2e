package visionworker

const MockEngineText = "mock engine decoder response"

// MockEngine returns a single fixed high-confidence span. Useful for wiring
// tests and environments without a tesseract installation.
type MockEngine struct {
}

func (m *MockEngine) Recognize(image []byte) ([]TextSpan, error) {
	return []TextSpan{{Text: MockEngineText, Confidence: 0.99}}, nil
}
