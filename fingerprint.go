package visionworker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// fingerprintChunkSize bounds memory use while hashing local files of any size.
const fingerprintChunkSize = 4096

// DocumentCacheKey builds the synthetic cache key for a whole-document run. The
// page count and threshold are part of the key so that partial reads of the
// same document get their own cache entries.
func DocumentCacheKey(source string, numPages int, minConfidence float64) string {
	return fmt.Sprintf("%s_pages_%d_conf_%s", source, numPages, formatConfidence(minConfidence))
}

func formatConfidence(minConfidence float64) string {
	return strconv.FormatFloat(minConfidence, 'g', -1, 64)
}

// Fingerprint derives the cache key for a source identifier.
//
// Remote URLs are hashed by their URL string, never by fetched content, so a
// changed remote resource under an unchanged URL keeps returning the cached
// result. Synthetic document keys (see DocumentCacheKey) are hashed directly.
// Local files are hashed by content, read in fixed-size chunks.
//
// Returns ok=false when the source resolves to none of the above; such a
// source must not be cached.
func Fingerprint(source string) (fingerprint string, ok bool) {
	if isURL(source) {
		return hashString(source), true
	}
	if strings.Contains(source, "_pages_") && strings.Contains(source, "_conf_") {
		return hashString(source), true
	}

	info, err := os.Stat(source)
	if err != nil || info.IsDir() {
		log.Warn().Str("component", "OCR_CACHE").Str("source", source).
			Msg("no fingerprint, source is not a file, URL or document key")
		return "", false
	}

	file, err := os.Open(source)
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_CACHE").Str("source", source).
			Msg("could not open source for fingerprinting")
		return "", false
	}
	defer file.Close()

	hash := sha256.New()
	buf := make([]byte, fingerprintChunkSize)
	if _, err := io.CopyBuffer(hash, file, buf); err != nil {
		log.Error().Err(err).Str("component", "OCR_CACHE").Str("source", source).
			Msg("could not read source for fingerprinting")
		return "", false
	}
	return hex.EncodeToString(hash.Sum(nil)), true
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
