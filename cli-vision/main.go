package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	visionworker "github.com/mpx0/vision-worker"
)

// One-shot command line runner: recognizes a single image or a multi-page
// document and prints the result to stdout.
//
//	cli-vision -source scan.pdf -document -pages 3 -min_confidence 0.5

func init() {
	zerolog.TimeFieldFormat = time.StampMilli
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
}

func main() {
	var (
		source        string
		document      bool
		numPages      int
		minConfidence float64
	)
	flagFunc := func() {
		flag.StringVar(
			&source,
			"source",
			"",
			"The image or document to recognize, a local path or URL",
		)
		flag.BoolVar(
			&document,
			"document",
			false,
			"treat the source as a multi-page document",
		)
		flag.IntVar(
			&numPages,
			"pages",
			0,
			"number of document pages to process, 0 means all",
		)
		flag.Float64Var(
			&minConfidence,
			"min_confidence",
			0.0,
			"minimum confidence threshold for recognized text",
		)
	}

	pipelineConfig := visionworker.DefaultConfigFlagsOverride(flagFunc)
	if pipelineConfig.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if source == "" {
		flag.Usage()
		os.Exit(2)
	}

	store, err := visionworker.NewResultStore(pipelineConfig.CacheDBPath)
	if err != nil {
		log.Fatal().Err(err).Str("component", "CLI_VISION").
			Msg("could not initialize the result cache")
	}
	defer store.Close()

	engine := visionworker.NewRecognitionEngine(pipelineConfig.EngineType, pipelineConfig.Languages)
	pipeline := visionworker.NewPipeline(engine, visionworker.MockDetector{}, store, pipelineConfig)

	var text string
	if document {
		text = pipeline.ReadTextFromDocument(source, numPages, minConfidence, pipelineConfig.DefaultConcurrency, true)
	} else {
		text = pipeline.ReadTextFromImage(source, minConfidence)
	}

	fmt.Println(text)
}
