package visionworker

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Pipeline bundles the long-lived handles every tool call needs: the
// recognition engine, the object detector, the result cache and the page
// renderer. It replaces process-wide singletons; construct one in main and
// pass it down to the handlers.
type Pipeline struct {
	Engine   RecognitionEngine
	Detector ObjectDetector
	Store    *ResultStore
	Renderer DocumentRenderer
	Config   PipelineConfig
}

func NewPipeline(engine RecognitionEngine, detector ObjectDetector, store *ResultStore, config PipelineConfig) *Pipeline {
	return &Pipeline{
		Engine:   engine,
		Detector: detector,
		Store:    store,
		Renderer: GhostscriptRenderer{},
		Config:   config,
	}
}

// languageSwitcher is implemented by engines that can reload with a new
// language selection.
type languageSwitcher interface {
	SetLanguages(languages []string) error
}

// SetLanguages switches the recognition languages if the engine supports
// reloading; engines without language state ignore the request.
func (p *Pipeline) SetLanguages(languages []string) error {
	if switcher, ok := p.Engine.(languageSwitcher); ok {
		return switcher.SetLanguages(languages)
	}
	return nil
}

// ReadTextFromImage extracts text from a single image, a local path or a URL.
// Failures are rendered into the returned string rather than raised, so a
// caller batching many images keeps its partial results. The cache is
// consulted first and fed on success only.
func (p *Pipeline) ReadTextFromImage(source string, minConfidence float64) string {
	start := time.Now()

	if p.Config.UseCache {
		if text, ok := p.Store.Get(source, minConfidence); ok {
			return text
		}
	}

	image, err := loadImageBytes(source)
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_PIPELINE").Str("source", source).
			Msg("error while extracting text from image")
		return fmt.Sprintf("Error occurred while extracting text: %v", err)
	}

	text, err := p.recognizeImageBytes(image, minConfidence)
	if err != nil {
		return fmt.Sprintf("Error occurred while extracting text: %v", err)
	}

	if p.Config.UseCache {
		p.Store.Put(source, text, minConfidence)
	}
	timeTrack(start, "read_text_from_image", "image processed", source)
	return text
}

// ReadTextFromImageBytes extracts text from raw image bytes, as uploaded
// through the multipart endpoint. Byte uploads carry no stable source
// identity, so they bypass the cache.
func (p *Pipeline) ReadTextFromImageBytes(image []byte, minConfidence float64) string {
	text, err := p.recognizeImageBytes(image, minConfidence)
	if err != nil {
		return fmt.Sprintf("Error occurred while extracting text: %v", err)
	}
	return text
}

func (p *Pipeline) recognizeImageBytes(image []byte, minConfidence float64) (string, error) {
	spans, err := p.Engine.Recognize(image)
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_PIPELINE").
			Msg("recognition engine failed")
		return "", err
	}
	return FilterSpans(spans, minConfidence), nil
}

// ReadTextFromDocument extracts text from a multi-page document by rendering
// each page and recognizing it, numPages <= 0 meaning all pages. Pages run on
// a pool bounded to concurrency workers (the configured default when <= 0) and
// the output keeps ascending page order whatever the completion order was. A
// failing page contributes an inline error marker and never aborts its
// siblings. useCache false bypasses the result store for this call only, both
// lookup and write; the process-wide cache switch still wins when it is off.
func (p *Pipeline) ReadTextFromDocument(source string, numPages int, minConfidence float64, concurrency int, useCache bool) string {
	start := time.Now()

	localPath, cleanup, err := resolveSource(source)
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_PIPELINE").Str("source", source).
			Msg("error while extracting text from document")
		return fmt.Sprintf("Error occurred while extracting text from document: %v", err)
	}
	defer cleanup()

	totalPages, err := p.Renderer.PageCount(localPath)
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_PIPELINE").Str("source", source).
			Msg("error while extracting text from document")
		return fmt.Sprintf("Error occurred while extracting text from document: %v", err)
	}
	if numPages <= 0 || numPages > totalPages {
		numPages = totalPages
	}

	// The whole-document result is cached under a synthetic key so different
	// page counts and thresholds stay distinct.
	useCache = useCache && p.Config.UseCache
	cacheKey := DocumentCacheKey(source, numPages, minConfidence)
	if useCache {
		if text, ok := p.Store.Get(cacheKey, minConfidence); ok {
			return text
		}
	}

	if concurrency <= 0 {
		concurrency = p.Config.DefaultConcurrency
	}

	tasks := make([]PageTask, numPages)
	for i := range tasks {
		tasks[i] = PageTask{Index: i, Zoom: defaultZoom, MinConfidence: minConfidence}
	}

	results := ProcessPages(tasks, func(task PageTask) (string, error) {
		image, err := p.Renderer.RenderPage(localPath, task.Index, task.Zoom)
		if err != nil {
			return "", err
		}
		spans, err := p.Engine.Recognize(image)
		if err != nil {
			return "", err
		}
		return FilterSpans(spans, task.MinConfidence), nil
	}, concurrency)

	text := assembleDocumentText(results)

	if useCache {
		p.Store.Put(cacheKey, text, minConfidence)
	}
	timeTrack(start, "read_text_from_document", "document processed", source)
	return text
}

// assembleDocumentText concatenates page results in ascending index order with
// per-page section markers.
func assembleDocumentText(results []PageResult) string {
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })

	sections := make([]string, 0, 2*len(results))
	for _, result := range results {
		pageNum := result.Index + 1
		switch result.Outcome {
		case PageFailed:
			sections = append(sections, fmt.Sprintf("\n--- Error processing page %d: %s ---\n", pageNum, result.Text))
		case PageEmpty:
			sections = append(sections, fmt.Sprintf("\n--- Page %d (No text detected) ---\n", pageNum))
		case PageLowConfidence:
			sections = append(sections, fmt.Sprintf("\n--- Page %d (Low confidence text) ---\n", pageNum), result.Text)
		default:
			sections = append(sections, fmt.Sprintf("\n--- Page %d ---\n", pageNum), result.Text)
		}
	}
	return strings.Join(sections, "\n")
}

// LocateObjects runs zero-shot detection for the given labels and drops
// detections scoring below minScore.
func (p *Pipeline) LocateObjects(source string, labels []string, minScore float64) ([]Detection, error) {
	if p.Detector == nil {
		return nil, fmt.Errorf("no object detector configured")
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("at least one label is required")
	}

	image, err := loadImageBytes(source)
	if err != nil {
		return nil, err
	}

	detections, err := p.Detector.Detect(image, labels)
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_DETECT").Str("source", source).
			Msg("object detection failed")
		return nil, err
	}

	kept := make([]Detection, 0, len(detections))
	for _, detection := range detections {
		if detection.Score >= minScore {
			kept = append(kept, detection)
		}
	}
	return kept, nil
}
