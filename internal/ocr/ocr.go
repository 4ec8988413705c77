// Package ocr turns image bytes into text. An Engine produces ordered
// fragments with confidences; Assemble filters and joins them into a Result.
package ocr

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"
)

// NoText replaces the text of a result in which no fragment survived the
// confidence filter.
const NoText = "No legible text could be extracted from the image. Make sure the image contains readable text."

const (
	ProcessingDocument = "document_text_detection"
	ProcessingTest     = "test_mode"
)

// Fragment is one piece of recognized text. Confidence is in [0, 1].
type Fragment struct {
	Text       string
	Confidence float64
}

// Engine recognizes text in an image.
type Engine interface {
	// Name is the configuration name of the engine.
	Name() string
	// Method is the processing_method label reported to callers.
	Method() string
	// NeedsNormalization reports whether the image should be binarized
	// before Detect sees it.
	NeedsNormalization() bool
	// Threshold is the default confidence a fragment must exceed.
	Threshold() float64
	// Separator joins surviving fragments.
	Separator() string
	// Detect returns the fragments in detection order.
	Detect(ctx context.Context, image []byte) ([]Fragment, error)
}

// Metadata is the summary reported alongside the extracted text.
type Metadata struct {
	ProcessingMethod string  `json:"processing_method"`
	Confidence       float64 `json:"confidence"`
	CharacterCount   int     `json:"character_count"`
	LineCount        int     `json:"line_count"`
	ProcessingType   string  `json:"processing_type"`
}

// Result is the outcome of one extraction.
type Result struct {
	Text        string
	Fragments   []string
	Confidences []float64
	// Average is the mean confidence of the kept fragments, 0 when none.
	Average  float64
	NoText   bool
	Metadata Metadata
}

// Count is the number of fragments that survived the filter.
func (r *Result) Count() int {
	return len(r.Fragments)
}

// WordCount counts whitespace separated words in the text, 0 for NoText.
func (r *Result) WordCount() int {
	if r.NoText {
		return 0
	}
	return len(strings.Fields(r.Text))
}

// Assemble keeps fragments whose confidence is strictly greater than
// threshold, in order, and joins them with sep. A threshold of zero or less
// keeps every non-empty fragment.
func Assemble(fragments []Fragment, threshold float64, sep, method string) *Result {
	res := &Result{}
	var sum float64
	for _, f := range fragments {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		if threshold > 0 && f.Confidence <= threshold {
			continue
		}
		res.Fragments = append(res.Fragments, text)
		res.Confidences = append(res.Confidences, f.Confidence)
		sum += f.Confidence
	}

	if len(res.Fragments) == 0 {
		res.Text = NoText
		res.NoText = true
	} else {
		res.Text = strings.Join(res.Fragments, sep)
		res.Average = sum / float64(len(res.Fragments))
	}

	res.Metadata = Metadata{
		ProcessingMethod: method,
		Confidence:       round2(res.Average * 100),
		CharacterCount:   utf8.RuneCountInString(strings.TrimSpace(res.Text)),
		LineCount:        len(strings.Split(strings.TrimSpace(res.Text), "\n")),
		ProcessingType:   ProcessingDocument,
	}
	return res
}

// TestResult is the canned result returned for test-mode requests. No
// engine is invoked.
func TestResult() *Result {
	const text = "OCR test text extracted successfully"
	return &Result{
		Text:        text,
		Fragments:   []string{text},
		Confidences: []float64{0.955},
		Average:     0.955,
		Metadata: Metadata{
			ProcessingMethod: "Test Mode",
			Confidence:       95.5,
			CharacterCount:   utf8.RuneCountInString(text),
			LineCount:        1,
			ProcessingType:   ProcessingTest,
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
