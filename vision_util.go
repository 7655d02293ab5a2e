package visionworker

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
)

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func saveURLContentToFileName(url, tmpFileName string) error {

	outFile, err := os.Create(tmpFileName)
	if err != nil {
		return err
	}

	var client = &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		outFile.Close()
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		outFile.Close()
		return fmt.Errorf("unexpected status %s fetching %s", resp.Status, url)
	}

	_, err = io.Copy(outFile, resp.Body)
	if err != nil {
		outFile.Close()
		return err
	}
	return outFile.Close()
}

func url2bytes(url string) ([]byte, error) {

	var client = &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s fetching %s", resp.Status, url)
	}

	return io.ReadAll(resp.Body)
}

// createTempFileName generates a file name within the temp directory. If the
// argument is an empty string the name will be generated in ksuid format.
func createTempFileName(fileName string) (string, error) {
	tempDir := os.TempDir()

	if fileName == "" {
		ksuidRaw := ksuid.New()
		fileName = ksuidRaw.String()
	}

	return filepath.Join(tempDir, fileName), nil
}

// loadImageBytes fetches the raw bytes for an image source, either a local
// path or a remote URL.
func loadImageBytes(source string) ([]byte, error) {
	if isURL(source) {
		return url2bytes(source)
	}
	if info, err := os.Stat(source); err != nil || info.IsDir() {
		return nil, fmt.Errorf("invalid image path or URL: %s", source)
	}
	return os.ReadFile(source)
}

// resolveSource materializes a document source as a local file. Remote URLs
// are downloaded once to a temp file which the returned cleanup removes; for
// local paths cleanup is a no-op.
func resolveSource(source string) (string, func(), error) {
	if isURL(source) {
		tmpFileName, err := createTempFileName("")
		if err != nil {
			return "", nil, err
		}
		if err := saveURLContentToFileName(source, tmpFileName); err != nil {
			return "", nil, fmt.Errorf("could not retrieve %s: %v", source, err)
		}
		cleanup := func() {
			if err := os.Remove(tmpFileName); err != nil {
				log.Warn().Err(err).Str("component", "OCR_PIPELINE").
					Msg(tmpFileName + " could not be removed")
			}
		}
		return tmpFileName, cleanup, nil
	}

	if info, err := os.Stat(source); err != nil || info.IsDir() {
		return "", nil, fmt.Errorf("document file not found at %s", source)
	}
	return source, func() {}, nil
}

func readFirstBytes(filePath string, nBytesToRead uint) ([]byte, error) {

	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buffer := make([]byte, nBytesToRead)
	_, err = file.Read(buffer)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}

// detectFileType sniffs the magic bytes of a document source.
func detectFileType(buffer []byte) string {
	fileType := ""
	if len(buffer) > 3 &&
		buffer[0] == 0x25 && buffer[1] == 0x50 &&
		buffer[2] == 0x44 && buffer[3] == 0x46 {
		fileType = "PDF"
	} else if len(buffer) > 3 &&
		((buffer[0] == 0x49 && buffer[1] == 0x49 && buffer[2] == 0x2A && buffer[3] == 0x0) ||
			(buffer[0] == 0x4D && buffer[1] == 0x4D && buffer[2] == 0x0 && buffer[3] == 0x2A)) {
		fileType = "TIFF"
	} else {
		fileType = "UNKNOWN"
	}
	return fileType
}

// timeTrack used to measure time of selected operations
func timeTrack(start time.Time, operation string, message string, source string) {
	elapsed := time.Since(start)
	log.Info().Str("component", "OCR_PIPELINE").Dur(operation, elapsed).
		Str("source", source).Msg(message)
}
