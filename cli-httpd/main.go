package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	visionworker "github.com/mpx0/vision-worker"
)

// To test it:
// curl -X POST -H "Content-Type: application/json" -d '{"source":"docs/testimage.png","min_confidence":0.3}' http://localhost:8080/tools/read-text

func init() {
	zerolog.TimeFieldFormat = time.StampMilli
	// Default level is info, unless debug flag is present
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	var httpPort uint
	flagFunc := func() {
		flag.UintVar(
			&httpPort,
			"http_port",
			8080,
			"The http port to listen on, eg, 8081",
		)
	}

	pipelineConfig := visionworker.DefaultConfigFlagsOverride(flagFunc)
	if pipelineConfig.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	store, err := visionworker.NewResultStore(pipelineConfig.CacheDBPath)
	if err != nil {
		log.Fatal().Err(err).Str("component", "OCR_HTTP").Caller().
			Msg("could not initialize the result cache")
	}

	engine := visionworker.NewRecognitionEngine(pipelineConfig.EngineType, pipelineConfig.Languages)
	if engine == nil {
		log.Fatal().Str("component", "OCR_HTTP").
			Str("engineType", pipelineConfig.EngineType.String()).
			Msg("unknown recognition engine type")
	}

	pipeline := visionworker.NewPipeline(engine, visionworker.MockDetector{}, store, pipelineConfig)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-signals
		log.Info().Str("component", "OCR_HTTP").Str("signal", sig.String()).
			Msg("Caught signal to terminate, closing the result cache and exiting.")
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Str("component", "OCR_HTTP").Msg("error closing the result cache")
		}
		os.Exit(0)
	}()

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<title>vision-worker</title></head><body><h1>vision-worker</h1>`+
			`<p>Status: RUNNING</p><p>Tools: /tools/read-text /tools/read-document `+
			`/tools/locate-objects /tools/read-text-upload /tools/cache</p></body></html>`)
	})

	http.Handle("/tools/read-text",
		visionworker.InstrumentToolHandler("read-text", visionworker.NewReadTextHandler(pipeline)))
	http.Handle("/tools/read-document",
		visionworker.InstrumentToolHandler("read-document", visionworker.NewReadDocumentHandler(pipeline)))
	http.Handle("/tools/locate-objects",
		visionworker.InstrumentToolHandler("locate-objects", visionworker.NewLocateObjectsHandler(pipeline)))
	http.Handle("/tools/read-text-upload",
		visionworker.InstrumentToolHandler("read-text-upload", visionworker.NewReadTextMultipartHandler(pipeline)))

	http.Handle("/tools/cache", visionworker.NewCacheHandler(store))
	http.Handle("/health", visionworker.NewHealthHandler())
	// expose metrics for prometheus
	http.Handle("/metrics", promhttp.Handler())

	listenAddr := fmt.Sprintf(":%d", httpPort)

	log.Info().Str("component", "OCR_HTTP").Str("listenAddr", listenAddr).Msg("Starting listener...")

	if err := http.ListenAndServe(listenAddr, nil); err != nil {
		log.Fatal().Err(err).Str("component", "OCR_HTTP").Caller().Msg("vision-worker httpd has failed to start")
	}

}
