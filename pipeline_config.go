package visionworker

import (
	"flag"
	"path/filepath"
	"strings"
)

type PipelineConfig struct {
	CacheDBPath        string
	DefaultConcurrency int
	Languages          []string
	EngineType         RecognitionEngineType
	UseCache           bool
	Debug              bool
}

func DefaultPipelineConfig() PipelineConfig {

	pipelineConfig := PipelineConfig{
		CacheDBPath:        filepath.Join("data", "ocr_cache.db"),
		DefaultConcurrency: 4,
		Languages:          []string{"eng", "tha"},
		EngineType:         EngineTesseract,
		UseCache:           true,
		Debug:              false,
	}
	return pipelineConfig

}

type FlagFunction func()

func NoOpFlagFunction() FlagFunction {
	return func() {}
}

func DefaultConfigFlagsOverride(flagFunction FlagFunction) PipelineConfig {
	pipelineConfig := DefaultPipelineConfig()

	flagFunction()
	var (
		cacheDBPath string
		concurrency int
		languages   string
		mockEngine  bool
		noCache     bool
		debug       bool
	)
	flag.StringVar(
		&cacheDBPath,
		"cache_db",
		"",
		"Path to the sqlite result cache, eg: data/ocr_cache.db",
	)
	flag.IntVar(
		&concurrency,
		"concurrency",
		0,
		"default number of parallel page workers for document requests",
	)
	flag.StringVar(
		&languages,
		"languages",
		"",
		"comma separated recognition languages, eg: eng,tha",
	)
	flag.BoolVar(
		&mockEngine,
		"mock_engine",
		false,
		"use the mock recognition engine instead of tesseract",
	)
	flag.BoolVar(
		&noCache,
		"no_cache",
		false,
		"disable the persistent result cache",
	)
	flag.BoolVar(
		&debug,
		"debug",
		false,
		"sets debug flag, program will print more messages",
	)

	flag.Parse()
	if len(cacheDBPath) > 0 {
		pipelineConfig.CacheDBPath = cacheDBPath
	}
	if concurrency > 0 {
		pipelineConfig.DefaultConcurrency = concurrency
	}
	if len(languages) > 0 {
		pipelineConfig.Languages = strings.Split(languages, ",")
	}
	if mockEngine {
		pipelineConfig.EngineType = EngineMock
	}
	pipelineConfig.UseCache = !noCache
	pipelineConfig.Debug = debug
	return pipelineConfig
}
