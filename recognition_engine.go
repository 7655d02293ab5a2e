package visionworker

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
)

// TextSpan is one recognized region of text. Confidence is normalized to
// [0, 1] regardless of what the underlying engine reports.
type TextSpan struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	// Box is the pixel bounding box as left, top, right, bottom.
	Box [4]int `json:"box"`
}

type RecognitionEngineType int

const (
	EngineTesseract = RecognitionEngineType(iota)
	EngineMock
)

// RecognitionEngine turns image bytes into recognized text spans.
// Implementations must be safe to call from concurrent page workers;
// reconfiguration (a language change) has to be serialized against in-flight
// Recognize calls by the implementation itself.
type RecognitionEngine interface {
	Recognize(image []byte) ([]TextSpan, error)
}

func NewRecognitionEngine(engineType RecognitionEngineType, languages []string) RecognitionEngine {
	switch engineType {
	case EngineMock:
		return &MockEngine{}
	case EngineTesseract:
		return NewTesseractEngine(languages)
	}
	return nil
}

func (e RecognitionEngineType) String() string {
	switch e {
	case EngineTesseract:
		return "ENGINE_TESSERACT"
	case EngineMock:
		return "ENGINE_MOCK"
	}
	return ""
}

func (e *RecognitionEngineType) UnmarshalJSON(b []byte) (err error) {

	var engineTypeStr string

	if err := json.Unmarshal(b, &engineTypeStr); err == nil {
		engineString := strings.ToUpper(engineTypeStr)
		switch engineString {
		case "TESSERACT":
			*e = EngineTesseract
		case "MOCK":
			*e = EngineMock
		default:
			log.Warn().Str("engineString", engineString).Msg("Unexpected RecognitionEngineType json")
			*e = EngineMock
		}
		return nil
	}

	// not a string .. maybe it's an int

	var engineTypeInt int
	if err := json.Unmarshal(b, &engineTypeInt); err == nil {
		*e = RecognitionEngineType(engineTypeInt)
		return nil
	} else {
		return err
	}

}
