package visionworker

import (
	"fmt"
	"strings"
)

// lowConfidenceMarker prefixes the diagnostic rendering produced when no span
// clears the threshold. Callers recognize low-confidence page output by this
// prefix.
const lowConfidenceMarker = "Low confidence text detected:"

// FilterSpans reduces raw recognition output for one image to a single text
// block. Spans at or above minConfidence are joined with newlines; if none
// qualify but lower-scoring spans exist, those are returned annotated with
// their scores so a caller probing with a high threshold still sees what the
// engine found. Pure function: threshold 0 accepts every non-blank span.
func FilterSpans(spans []TextSpan, minConfidence float64) string {
	var accepted []string
	var belowThreshold []string

	for _, span := range spans {
		if strings.TrimSpace(span.Text) == "" {
			continue
		}
		if span.Confidence >= minConfidence {
			accepted = append(accepted, span.Text)
		} else {
			belowThreshold = append(belowThreshold,
				fmt.Sprintf("%s (confidence: %.2f)", span.Text, span.Confidence))
		}
	}

	if len(accepted) > 0 {
		return strings.Join(accepted, "\n")
	}
	if len(belowThreshold) > 0 {
		return lowConfidenceMarker + "\n" + strings.Join(belowThreshold, "\n")
	}
	return ""
}
