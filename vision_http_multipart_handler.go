package visionworker

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// ReadTextMultipartHandler accepts a multipart/related upload of a JSON
// parameter part followed by an image part and runs recognition on the raw
// bytes. Uploaded bytes carry no stable source identity, so results from this
// endpoint are never cached.
type ReadTextMultipartHandler struct {
	Pipeline *Pipeline
}

func NewReadTextMultipartHandler(p *Pipeline) *ReadTextMultipartHandler {
	return &ReadTextMultipartHandler{Pipeline: p}
}

func (*ReadTextMultipartHandler) extractParts(req *http.Request) (ToolRequest, []byte, error) {

	log.Info().Str("component", "OCR_HTTP").Msg("request to read-text-upload")
	toolRequest := ToolRequest{}

	if req.Method != http.MethodPost {
		return toolRequest, nil, fmt.Errorf("this endpoint only accepts POST requests")
	}

	contentTypeHeader := req.Header.Get("Content-Type")
	_, attrs, _ := mime.ParseMediaType(contentTypeHeader)
	if !strings.HasPrefix(contentTypeHeader, "multipart/related") {
		return toolRequest, nil, fmt.Errorf("expected multipart related")
	}

	reader := multipart.NewReader(req.Body, attrs["boundary"])

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return toolRequest, nil, fmt.Errorf("failed to read mime part: %v", err)
		}

		contentType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))

		switch contentType {
		case "application/json":
			decoder := json.NewDecoder(part)
			if err := decoder.Decode(&toolRequest); err != nil {
				return toolRequest, nil, fmt.Errorf("unable to unmarshal json: %s", err)
			}
			part.Close()
		default:
			if !strings.HasPrefix(contentType, "image") {
				return toolRequest, nil, fmt.Errorf("expected content-type: image/*")
			}

			partContents, err := io.ReadAll(part)
			if err != nil {
				return toolRequest, nil, fmt.Errorf("failed to read mime part: %v", err)
			}

			return toolRequest, partContents, nil
		}
	}

	return toolRequest, nil, fmt.Errorf("no image part in upload")
}

func (s *ReadTextMultipartHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {

	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			log.Warn().Err(err).Str("component", "OCR_HTTP").
				Msg(req.RequestURI + " request Body could not be closed")
		}
	}(req.Body)

	toolRequest, image, err := s.extractParts(req)
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_HTTP").Msg("error extracting multipart parts")
		errStr := fmt.Sprintf("Error extracting multipart/related parts: %v", err)
		http.Error(w, errStr, 400)
		return
	}

	text := s.Pipeline.ReadTextFromImageBytes(image, toolRequest.MinConfidence)
	writeToolResponse(w, ToolResponse{Text: text, IsError: isErrorText(text)})
}
