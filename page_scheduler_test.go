package visionworker

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/couchbaselabs/go.assert"
)

func makeTasks(n int, minConfidence float64) []PageTask {
	tasks := make([]PageTask, n)
	for i := range tasks {
		tasks[i] = PageTask{Index: i, Zoom: defaultZoom, MinConfidence: minConfidence}
	}
	return tasks
}

func TestProcessPagesSequential(t *testing.T) {

	var order []int
	results := ProcessPages(makeTasks(4, 0.0), func(task PageTask) (string, error) {
		order = append(order, task.Index)
		return fmt.Sprintf("page %d", task.Index+1), nil
	}, 1)

	// width 1 runs strictly in ascending index order
	assert.Equals(t, len(order), 4)
	for i, idx := range order {
		assert.Equals(t, idx, i)
	}
	for i, result := range results {
		assert.Equals(t, result.Index, i)
		assert.Equals(t, result.Text, fmt.Sprintf("page %d", i+1))
		assert.Equals(t, result.Outcome, PageText)
	}
}

func TestProcessPagesOrderedUnderConcurrency(t *testing.T) {

	rng := rand.New(rand.NewSource(42))
	delays := make([]time.Duration, 5)
	for i := range delays {
		delays[i] = time.Duration(rng.Intn(30)) * time.Millisecond
	}

	results := ProcessPages(makeTasks(5, 0.0), func(task PageTask) (string, error) {
		time.Sleep(delays[task.Index])
		return fmt.Sprintf("page %d", task.Index+1), nil
	}, 4)

	assert.Equals(t, len(results), 5)
	for i, result := range results {
		assert.Equals(t, result.Index, i)
		assert.Equals(t, result.Text, fmt.Sprintf("page %d", i+1))
	}
}

func TestProcessPagesFailureIsolation(t *testing.T) {

	results := ProcessPages(makeTasks(5, 0.0), func(task PageTask) (string, error) {
		if task.Index == 2 {
			return "", fmt.Errorf("render blew up")
		}
		return fmt.Sprintf("page %d", task.Index+1), nil
	}, 4)

	assert.Equals(t, len(results), 5)
	assert.Equals(t, results[2].Outcome, PageFailed)
	assert.Equals(t, results[2].Text, "render blew up")
	for _, i := range []int{0, 1, 3, 4} {
		assert.Equals(t, results[i].Outcome, PageText)
		assert.Equals(t, results[i].Text, fmt.Sprintf("page %d", i+1))
	}
}

func TestProcessPagesPanicIsolation(t *testing.T) {

	results := ProcessPages(makeTasks(3, 0.0), func(task PageTask) (string, error) {
		if task.Index == 1 {
			panic("worker panic")
		}
		return "ok", nil
	}, 2)

	assert.Equals(t, len(results), 3)
	assert.Equals(t, results[1].Outcome, PageFailed)
	assert.True(t, strings.Contains(results[1].Text, "worker panic"))
	assert.Equals(t, results[0].Outcome, PageText)
	assert.Equals(t, results[2].Outcome, PageText)
}

func TestProcessPagesOutcomeClassification(t *testing.T) {

	texts := []string{
		"recognized text",
		"",
		lowConfidenceMarker + "\nfaint (confidence: 0.10)",
	}
	results := ProcessPages(makeTasks(3, 0.0), func(task PageTask) (string, error) {
		return texts[task.Index], nil
	}, 1)

	assert.Equals(t, results[0].Outcome, PageText)
	assert.Equals(t, results[1].Outcome, PageEmpty)
	assert.Equals(t, results[2].Outcome, PageLowConfidence)
}

func TestProcessPagesNoTasks(t *testing.T) {

	results := ProcessPages(nil, func(task PageTask) (string, error) {
		t.Fatal("should not be called")
		return "", nil
	}, 4)

	assert.Equals(t, len(results), 0)
}
