package visionworker

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// ToolRequest is the wire shape shared by the tool endpoints. Fields not used
// by a given tool are ignored by it.
type ToolRequest struct {
	Source        string   `json:"source"`
	MinConfidence float64  `json:"min_confidence"`
	NumPages      int      `json:"num_pages,omitempty"`
	Concurrency   int      `json:"concurrency,omitempty"`
	// UseCache defaults to true when absent, so it is a pointer.
	UseCache *bool `json:"use_cache,omitempty"`
	Languages     []string `json:"languages,omitempty"`
	Labels        []string `json:"labels,omitempty"`
	MinScore      float64  `json:"min_score,omitempty"`
}

// ToolResponse carries the result of a tool call. Tool-level failures are
// embedded as text with IsError set; the HTTP status stays 200 so partial
// results survive.
type ToolResponse struct {
	Text       string      `json:"text,omitempty"`
	Detections []Detection `json:"detections,omitempty"`
	IsError    bool        `json:"is_error,omitempty"`
}

func writeToolResponse(w http.ResponseWriter, response ToolResponse) {
	w.Header().Set("Content-Type", "application/json")
	js, err := json.Marshal(response)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(js); err != nil {
		log.Error().Err(err).Str("component", "OCR_HTTP").Msg("http write() failed")
	}
}

func decodeToolRequest(w http.ResponseWriter, req *http.Request) (ToolRequest, bool) {
	toolRequest := ToolRequest{}
	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(&toolRequest); err != nil {
		log.Warn().Str("component", "OCR_HTTP").Err(err).
			Msg("did the client send a valid json?")
		http.Error(w, "Unable to unmarshal json", 400)
		return toolRequest, false
	}
	if toolRequest.Source == "" {
		http.Error(w, "source is required", 400)
		return toolRequest, false
	}
	return toolRequest, true
}

// ReadTextHandler serves the read-text tool: extract text from a single image.
type ReadTextHandler struct {
	Pipeline *Pipeline
}

func NewReadTextHandler(p *Pipeline) *ReadTextHandler {
	return &ReadTextHandler{Pipeline: p}
}

func (s *ReadTextHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	log.Info().Str("component", "OCR_HTTP").Msg("read-text called")
	defer req.Body.Close()

	toolRequest, ok := decodeToolRequest(w, req)
	if !ok {
		return
	}

	if !applyLanguages(w, s.Pipeline, toolRequest.Languages) {
		return
	}

	text := s.Pipeline.ReadTextFromImage(toolRequest.Source, toolRequest.MinConfidence)
	writeToolResponse(w, ToolResponse{Text: text, IsError: isErrorText(text)})
}

// applyLanguages switches the engine languages for requests that ask for a
// non-default selection. A failed switch is a client error: the requested
// languages are not installed.
func applyLanguages(w http.ResponseWriter, p *Pipeline, languages []string) bool {
	if len(languages) == 0 {
		return true
	}
	if err := p.SetLanguages(languages); err != nil {
		log.Warn().Str("component", "OCR_HTTP").Err(err).
			Strs("languages", languages).Msg("language switch failed")
		http.Error(w, fmt.Sprintf("unsupported languages: %v", err), 400)
		return false
	}
	return true
}

// ReadDocumentHandler serves the read-document tool: extract text from a
// multi-page document with per-page section markers.
type ReadDocumentHandler struct {
	Pipeline *Pipeline
}

func NewReadDocumentHandler(p *Pipeline) *ReadDocumentHandler {
	return &ReadDocumentHandler{Pipeline: p}
}

func (s *ReadDocumentHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	log.Info().Str("component", "OCR_HTTP").Msg("read-document called")
	defer req.Body.Close()

	toolRequest, ok := decodeToolRequest(w, req)
	if !ok {
		return
	}

	if !applyLanguages(w, s.Pipeline, toolRequest.Languages) {
		return
	}

	useCache := true
	if toolRequest.UseCache != nil {
		useCache = *toolRequest.UseCache
	}

	text := s.Pipeline.ReadTextFromDocument(
		toolRequest.Source,
		toolRequest.NumPages,
		toolRequest.MinConfidence,
		toolRequest.Concurrency,
		useCache,
	)
	writeToolResponse(w, ToolResponse{Text: text, IsError: isErrorText(text)})
}

// LocateObjectsHandler serves the locate-objects tool: zero-shot object
// localization for caller-provided labels.
type LocateObjectsHandler struct {
	Pipeline *Pipeline
}

func NewLocateObjectsHandler(p *Pipeline) *LocateObjectsHandler {
	return &LocateObjectsHandler{Pipeline: p}
}

func (s *LocateObjectsHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	log.Info().Str("component", "OCR_HTTP").Msg("locate-objects called")
	defer req.Body.Close()

	toolRequest, ok := decodeToolRequest(w, req)
	if !ok {
		return
	}

	detections, err := s.Pipeline.LocateObjects(toolRequest.Source, toolRequest.Labels, toolRequest.MinScore)
	if err != nil {
		writeToolResponse(w, ToolResponse{Text: fmt.Sprintf("Error occurred while locating objects: %v", err), IsError: true})
		return
	}
	writeToolResponse(w, ToolResponse{Detections: detections})
}

// CacheHandler exposes the result store: GET returns entry count and size,
// DELETE clears all entries.
type CacheHandler struct {
	Store *ResultStore
}

func NewCacheHandler(store *ResultStore) *CacheHandler {
	return &CacheHandler{Store: store}
}

func (s *CacheHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		entries, sizeMB := s.Store.Stats()
		w.Header().Set("Content-Type", "application/json")
		js, err := json.Marshal(map[string]interface{}{
			"entries": entries,
			"size_mb": sizeMB,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if _, err := w.Write(js); err != nil {
			log.Error().Err(err).Str("component", "OCR_HTTP").Msg("http write() failed")
		}
	case http.MethodDelete:
		s.Store.Clear()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "this endpoint only accepts GET and DELETE requests", http.StatusMethodNotAllowed)
	}
}

// HealthHandler reports liveness for orchestration probes.
type HealthHandler struct {
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (s *HealthHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(`{"status":"healthy","service":"vision-worker"}`)); err != nil {
		log.Error().Err(err).Str("component", "OCR_HTTP").Msg("http write() failed")
	}
}

// isErrorText reports whether a pipeline result string is one of the rendered
// error forms rather than recognized text.
func isErrorText(text string) bool {
	return strings.HasPrefix(text, "Error occurred")
}
