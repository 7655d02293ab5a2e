package visionworker

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PageOutcome tags what a page task produced.
type PageOutcome int

const (
	PageText = PageOutcome(iota)
	PageEmpty
	PageLowConfidence
	PageFailed
)

func (o PageOutcome) String() string {
	switch o {
	case PageText:
		return "text"
	case PageEmpty:
		return "empty"
	case PageLowConfidence:
		return "low_confidence"
	case PageFailed:
		return "failed"
	}
	return ""
}

// PageTask is the unit of work for one document page. Immutable once
// submitted.
type PageTask struct {
	Index         int
	Zoom          float64
	MinConfidence float64
}

// PageResult is produced exactly once per submitted task. For PageFailed the
// Text field holds the error message instead of recognized text.
type PageResult struct {
	Index   int
	Text    string
	Outcome PageOutcome
}

// PageFunc renders and recognizes one page, returning the filtered text block.
// The scheduler turns an error into a failed PageResult without touching
// sibling pages.
type PageFunc func(task PageTask) (string, error)

// ProcessPages runs every task against run and returns one result per
// submitted index, ordered by index regardless of completion order. width <= 1
// degrades to strict sequential processing in ascending index order; any
// larger width bounds the number of simultaneously active page tasks. Results
// are only assembled after all tasks finish, partial output is never exposed.
func ProcessPages(tasks []PageTask, run PageFunc, width int) []PageResult {
	results := make([]PageResult, len(tasks))

	if width <= 1 {
		for i, task := range tasks {
			results[i] = runPageTask(task, run)
		}
		return results
	}

	if width > len(tasks) {
		width = len(tasks)
	}

	log.Debug().Str("component", "OCR_SCHEDULER").
		Int("pages", len(tasks)).Int("width", width).
		Msg("fanning out page tasks")

	// Workers write each result into its own slot; the index-keyed slice is
	// the reassembly arena, so out-of-order completion cannot reorder output.
	taskChan := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < width; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskChan {
				results[i] = runPageTask(tasks[i], run)
			}
		}()
	}
	for i := range tasks {
		taskChan <- i
	}
	close(taskChan)
	wg.Wait()

	return results
}

// runPageTask isolates one page: errors and panics become a failed result and
// never propagate to sibling tasks.
func runPageTask(task PageTask, run PageFunc) (result PageResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("component", "OCR_SCHEDULER").Int("page", task.Index+1).
				Interface("panic", r).Msg("page task panicked")
			result = PageResult{Index: task.Index, Text: fmt.Sprintf("%v", r), Outcome: PageFailed}
		}
		pageDuration.Observe(time.Since(start).Seconds())
		pagesProcessed.WithLabelValues(result.Outcome.String()).Inc()
	}()

	text, err := run(task)
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_SCHEDULER").Int("page", task.Index+1).
			Msg("error processing page")
		return PageResult{Index: task.Index, Text: err.Error(), Outcome: PageFailed}
	}
	return PageResult{Index: task.Index, Text: text, Outcome: classifyPageText(text)}
}

func classifyPageText(text string) PageOutcome {
	switch {
	case text == "":
		return PageEmpty
	case strings.HasPrefix(text, lowConfidenceMarker):
		return PageLowConfidence
	default:
		return PageText
	}
}
