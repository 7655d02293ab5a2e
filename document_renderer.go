package visionworker

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

const (
	// defaultZoom doubles the render resolution; recognition quality drops
	// fast below ~144 dpi.
	defaultZoom   = 2.0
	baseRenderDPI = 72
)

// DocumentRenderer rasterizes single pages of a document so the recognition
// engine can consume them.
type DocumentRenderer interface {
	PageCount(path string) (int, error)
	RenderPage(path string, pageIndex int, zoom float64) ([]byte, error)
}

// GhostscriptRenderer shells out to ghostscript, one invocation per page, so
// page tasks stay independent of each other. gs must be installed on the
// system.
type GhostscriptRenderer struct {
}

func (GhostscriptRenderer) PageCount(path string) (int, error) {
	header, err := readFirstBytes(path, 4)
	if err != nil {
		return 0, err
	}
	if fileType := detectFileType(header); fileType != "PDF" {
		return 0, fmt.Errorf("unsupported document type %s, expected a PDF", fileType)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return 0, fmt.Errorf("could not read document: %v", err)
	}
	return reader.NumPage(), nil
}

func (GhostscriptRenderer) RenderPage(path string, pageIndex int, zoom float64) ([]byte, error) {
	if zoom <= 0 {
		zoom = defaultZoom
	}

	tmpFileNameOutput, err := createTempFileName("")
	if err != nil {
		return nil, err
	}
	tmpFileNameOutput = fmt.Sprintf("%s.png", tmpFileNameOutput)
	defer func(name string) {
		err := os.Remove(name)
		if err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("component", "OCR_RENDERER").Msg(name + " could not be removed")
		}
	}(tmpFileNameOutput)

	page := strconv.Itoa(pageIndex + 1)
	var gsArgs []string
	gsArgs = append(gsArgs,
		"-dQUIET",
		"-dNOPAUSE",
		"-dBATCH",
		"-sDEVICE=png16m",
		fmt.Sprintf("-r%d", int(baseRenderDPI*zoom)),
		"-dFirstPage="+page,
		"-dLastPage="+page,
		"-sOutputFile="+tmpFileNameOutput,
		path,
	)
	log.Debug().Str("component", "OCR_RENDERER").Interface("gsArgs", gsArgs).Msg("rendering page")

	out, err := exec.Command("gs", gsArgs...).CombinedOutput()
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_RENDERER").Msg(string(out))
		return nil, fmt.Errorf("could not render page %d: %v", pageIndex+1, err)
	}

	return os.ReadFile(tmpFileNameOutput)
}
