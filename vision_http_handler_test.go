package visionworker

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/couchbaselabs/go.assert"
)

func TestReadTextHandler(t *testing.T) {

	pipeline, source := pipelineForTests(t, &MockEngine{}, nil)
	handler := NewReadTextHandler(pipeline)

	body, err := json.Marshal(ToolRequest{Source: source, MinConfidence: 0.5})
	assert.True(t, err == nil)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("POST", "/tools/read-text", bytes.NewReader(body)))

	assert.Equals(t, recorder.Code, 200)
	response := ToolResponse{}
	err = json.Unmarshal(recorder.Body.Bytes(), &response)
	assert.True(t, err == nil)
	assert.Equals(t, response.Text, MockEngineText)
	assert.True(t, !response.IsError)
}

func TestReadTextHandlerBadJson(t *testing.T) {

	pipeline, _ := pipelineForTests(t, &MockEngine{}, nil)
	handler := NewReadTextHandler(pipeline)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("POST", "/tools/read-text", strings.NewReader("{not json")))

	assert.Equals(t, recorder.Code, 400)
}

func TestReadTextHandlerMissingSource(t *testing.T) {

	pipeline, _ := pipelineForTests(t, &MockEngine{}, nil)
	handler := NewReadTextHandler(pipeline)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("POST", "/tools/read-text", strings.NewReader("{}")))

	assert.Equals(t, recorder.Code, 400)
}

func TestReadTextHandlerEmbedsResolutionError(t *testing.T) {

	pipeline, _ := pipelineForTests(t, &MockEngine{}, nil)
	handler := NewReadTextHandler(pipeline)

	body, err := json.Marshal(ToolRequest{Source: "/no/such/image.png"})
	assert.True(t, err == nil)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("POST", "/tools/read-text", bytes.NewReader(body)))

	// per-image failures come back as a 200 with the error in the text
	assert.Equals(t, recorder.Code, 200)
	response := ToolResponse{}
	err = json.Unmarshal(recorder.Body.Bytes(), &response)
	assert.True(t, err == nil)
	assert.True(t, response.IsError)
	assert.True(t, strings.HasPrefix(response.Text, "Error occurred while extracting text:"))
}

func TestReadDocumentHandler(t *testing.T) {

	pipeline, source := pipelineForTests(t, &countingEngine{}, stubRenderer{pages: 2})
	handler := NewReadDocumentHandler(pipeline)

	body, err := json.Marshal(ToolRequest{Source: source, Concurrency: 2})
	assert.True(t, err == nil)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("POST", "/tools/read-document", bytes.NewReader(body)))

	assert.Equals(t, recorder.Code, 200)
	response := ToolResponse{}
	err = json.Unmarshal(recorder.Body.Bytes(), &response)
	assert.True(t, err == nil)
	assert.True(t, strings.Contains(response.Text, "--- Page 1 ---"))
	assert.True(t, strings.Contains(response.Text, "--- Page 2 ---"))
}

func TestLocateObjectsHandler(t *testing.T) {

	pipeline, source := pipelineForTests(t, &MockEngine{}, nil)
	handler := NewLocateObjectsHandler(pipeline)

	body, err := json.Marshal(ToolRequest{Source: source, Labels: []string{"cat"}})
	assert.True(t, err == nil)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("POST", "/tools/locate-objects", bytes.NewReader(body)))

	assert.Equals(t, recorder.Code, 200)
	response := ToolResponse{}
	err = json.Unmarshal(recorder.Body.Bytes(), &response)
	assert.True(t, err == nil)
	assert.Equals(t, len(response.Detections), 1)
	assert.Equals(t, response.Detections[0].Label, "cat")
}

func TestCacheHandler(t *testing.T) {

	pipeline, source := pipelineForTests(t, &MockEngine{}, nil)
	handler := NewCacheHandler(pipeline.Store)

	_ = pipeline.ReadTextFromImage(source, 0.0)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("GET", "/tools/cache", nil))
	assert.Equals(t, recorder.Code, 200)

	stats := map[string]interface{}{}
	err := json.Unmarshal(recorder.Body.Bytes(), &stats)
	assert.True(t, err == nil)
	assert.Equals(t, stats["entries"], float64(1))

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("DELETE", "/tools/cache", nil))
	assert.Equals(t, recorder.Code, 204)

	entries, _ := pipeline.Store.Stats()
	assert.Equals(t, entries, 0)
}

func TestHealthHandler(t *testing.T) {

	recorder := httptest.NewRecorder()
	NewHealthHandler().ServeHTTP(recorder, httptest.NewRequest("GET", "/health", nil))

	assert.Equals(t, recorder.Code, 200)
	assert.True(t, strings.Contains(recorder.Body.String(), "healthy"))
}

func TestReadTextMultipartHandler(t *testing.T) {

	pipeline, _ := pipelineForTests(t, &MockEngine{}, nil)
	handler := NewReadTextMultipartHandler(pipeline)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	jsonHeader := textproto.MIMEHeader{}
	jsonHeader.Set("Content-Type", "application/json")
	jsonPart, err := writer.CreatePart(jsonHeader)
	assert.True(t, err == nil)
	_, err = jsonPart.Write([]byte(`{"min_confidence":0.5}`))
	assert.True(t, err == nil)

	imageHeader := textproto.MIMEHeader{}
	imageHeader.Set("Content-Type", "image/png")
	imagePart, err := writer.CreatePart(imageHeader)
	assert.True(t, err == nil)
	_, err = imagePart.Write([]byte("fake image bytes"))
	assert.True(t, err == nil)
	err = writer.Close()
	assert.True(t, err == nil)

	req := httptest.NewRequest("POST", "/tools/read-text-upload", &buf)
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equals(t, recorder.Code, 200)
	response := ToolResponse{}
	err = json.Unmarshal(recorder.Body.Bytes(), &response)
	assert.True(t, err == nil)
	assert.Equals(t, response.Text, MockEngineText)
}

func TestReadTextMultipartHandlerRejectsWrongContentType(t *testing.T) {

	pipeline, _ := pipelineForTests(t, &MockEngine{}, nil)
	handler := NewReadTextMultipartHandler(pipeline)

	req := httptest.NewRequest("POST", "/tools/read-text-upload", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equals(t, recorder.Code, 400)
}

func TestReadDocumentHandlerCacheBypass(t *testing.T) {

	engine := &countingEngine{}
	pipeline, source := pipelineForTests(t, engine, stubRenderer{pages: 2})
	handler := NewReadDocumentHandler(pipeline)

	readDocument := func(payload string) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest("POST", "/tools/read-document", strings.NewReader(payload)))
		assert.Equals(t, recorder.Code, 200)
	}

	payload := `{"source":"` + source + `","use_cache":false}`
	readDocument(payload)
	readDocument(payload)
	assert.Equals(t, engine.callCount(), 4)

	// absent use_cache defaults to cached
	cached := `{"source":"` + source + `"}`
	readDocument(cached)
	readDocument(cached)
	assert.Equals(t, engine.callCount(), 6)
}
