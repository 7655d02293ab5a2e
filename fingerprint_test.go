package visionworker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/couchbaselabs/go.assert"
)

func TestFingerprintLocalFileDeterministic(t *testing.T) {

	tmpFile := filepath.Join(t.TempDir(), "sample.png")
	err := os.WriteFile(tmpFile, []byte("not really a png"), 0600)
	assert.True(t, err == nil)

	first, ok := Fingerprint(tmpFile)
	assert.True(t, ok)
	assert.Equals(t, len(first), 64)

	second, ok := Fingerprint(tmpFile)
	assert.True(t, ok)
	assert.Equals(t, first, second)
}

func TestFingerprintLocalFileContentIdentity(t *testing.T) {

	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.png")
	fileB := filepath.Join(dir, "b.png")
	err := os.WriteFile(fileA, []byte("same content"), 0600)
	assert.True(t, err == nil)
	err = os.WriteFile(fileB, []byte("same content"), 0600)
	assert.True(t, err == nil)

	fpA, ok := Fingerprint(fileA)
	assert.True(t, ok)
	fpB, ok := Fingerprint(fileB)
	assert.True(t, ok)

	// identity is by content, not by path
	assert.Equals(t, fpA, fpB)
}

func TestFingerprintURLIsHashedByIdentity(t *testing.T) {

	// no server is running on this address, a fetch would fail; the URL
	// string itself is the identity
	fp, ok := Fingerprint("http://localhost:1/never/fetched.png")
	assert.True(t, ok)
	assert.Equals(t, len(fp), 64)

	other, ok := Fingerprint("http://localhost:1/never/fetched2.png")
	assert.True(t, ok)
	assert.True(t, fp != other)
}

func TestFingerprintDocumentKey(t *testing.T) {

	key := DocumentCacheKey("/docs/report.pdf", 3, 0.5)
	assert.Equals(t, key, "/docs/report.pdf_pages_3_conf_0.5")

	fp, ok := Fingerprint(key)
	assert.True(t, ok)
	assert.Equals(t, len(fp), 64)

	otherPages := DocumentCacheKey("/docs/report.pdf", 4, 0.5)
	otherFp, ok := Fingerprint(otherPages)
	assert.True(t, ok)
	assert.True(t, fp != otherFp)
}

func TestFingerprintMissingSource(t *testing.T) {

	_, ok := Fingerprint("/no/such/file/anywhere.png")
	assert.True(t, !ok)

	_, ok = Fingerprint("")
	assert.True(t, !ok)
}

func TestFingerprintChunkedReadOfLargeFile(t *testing.T) {

	// bigger than one read chunk
	payload := make([]byte, 3*fingerprintChunkSize+17)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	tmpFile := filepath.Join(t.TempDir(), "large.bin")
	err := os.WriteFile(tmpFile, payload, 0600)
	assert.True(t, err == nil)

	first, ok := Fingerprint(tmpFile)
	assert.True(t, ok)
	second, ok := Fingerprint(tmpFile)
	assert.True(t, ok)
	assert.Equals(t, first, second)
}
