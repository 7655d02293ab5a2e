package visionworker

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"
)

// TesseractEngine drives a single shared gosseract client. The client moves
// between two states, unloaded and loaded(languages): it is loaded lazily on
// the first Recognize call and torn down and reloaded when the language
// selection changes. One tesseract client is not safe for concurrent use, so
// Recognize holds the engine lock for the whole call; the same lock gates the
// reload transition, a language swap can never race an in-flight recognition.
type TesseractEngine struct {
	mu        sync.Mutex
	client    *gosseract.Client
	languages []string
}

func NewTesseractEngine(languages []string) *TesseractEngine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractEngine{languages: languages}
}

func (t *TesseractEngine) Recognize(image []byte) ([]TextSpan, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureLoadedLocked(); err != nil {
		return nil, err
	}

	if err := t.client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("could not set image: %v", err)
	}

	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognition failed: %v", err)
	}

	spans := make([]TextSpan, 0, len(boxes))
	for _, box := range boxes {
		spans = append(spans, TextSpan{
			Text: box.Word,
			// tesseract reports confidence as 0..100
			Confidence: box.Confidence / 100.0,
			Box:        [4]int{box.Box.Min.X, box.Box.Min.Y, box.Box.Max.X, box.Box.Max.Y},
		})
	}
	return spans, nil
}

// SetLanguages switches the language selection. If it differs from the loaded
// set, the client is unloaded; the next Recognize call reloads it with the new
// languages.
func (t *TesseractEngine) SetLanguages(languages []string) error {
	if len(languages) == 0 {
		return fmt.Errorf("at least one language is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if strings.Join(languages, "+") == strings.Join(t.languages, "+") {
		return nil
	}

	log.Info().Str("component", "OCR_TESSERACT").
		Strs("languages", languages).
		Msg("language selection changed, engine will reload")

	t.languages = languages
	return t.unloadLocked()
}

func (t *TesseractEngine) ensureLoadedLocked() error {
	if t.client != nil {
		return nil
	}

	start := time.Now()
	client := gosseract.NewClient()
	if err := client.SetLanguage(t.languages...); err != nil {
		_ = client.Close()
		return fmt.Errorf("could not set languages %v: %v", t.languages, err)
	}
	t.client = client

	log.Info().Str("component", "OCR_TESSERACT").
		Strs("languages", t.languages).
		Dur("load_time", time.Since(start)).
		Msg("tesseract client loaded")
	return nil
}

func (t *TesseractEngine) unloadLocked() error {
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

// Close releases the underlying tesseract client.
func (t *TesseractEngine) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unloadLocked()
}
