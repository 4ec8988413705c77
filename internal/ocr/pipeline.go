package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/picklr-io/ocrstack/internal/logging"
)

// Pipeline runs one engine over request images. It holds no per-request
// state and is safe for concurrent use.
type Pipeline struct {
	engine    Engine
	threshold float64
}

// NewPipeline uses the engine's own threshold unless threshold is
// non-negative.
func NewPipeline(engine Engine, threshold float64) *Pipeline {
	if threshold < 0 {
		threshold = engine.Threshold()
	}
	return &Pipeline{engine: engine, threshold: threshold}
}

func (p *Pipeline) Engine() Engine {
	return p.engine
}

// Extract recognizes the text in image. Zero surviving fragments is not an
// error; the result carries NoText instead.
func (p *Pipeline) Extract(ctx context.Context, image []byte) (*Result, error) {
	const op = "Extract"
	log := logging.WithComponent("ocr")

	if len(image) == 0 {
		return nil, NewError(op, ErrInvalidInput, "no image provided")
	}

	start := time.Now()
	input := image
	if p.engine.NeedsNormalization() {
		var err error
		if input, err = Normalize(image); err != nil {
			return nil, err
		}
	}

	fragments, err := p.engine.Detect(ctx, input)
	if err != nil {
		if !errors.Is(err, ErrEngineFailed) {
			err = NewError(op, ErrEngineFailed, err.Error())
		}
		return nil, err
	}

	res := Assemble(fragments, p.threshold, p.engine.Separator(), p.engine.Method())
	log.Info().
		Str("engine", p.engine.Name()).
		Int("fragments", len(fragments)).
		Int("kept", res.Count()).
		Float64("confidence", res.Metadata.Confidence).
		Dur("duration", time.Since(start)).
		Msg("text extracted")
	return res, nil
}

// DecodeImage decodes a base64 image field, dropping a leading data URL
// header such as "data:image/png;base64,".
func DecodeImage(field string) ([]byte, error) {
	const op = "DecodeImage"

	s := strings.TrimSpace(field)
	if strings.HasPrefix(s, "data:") {
		if idx := strings.IndexByte(s, ','); idx >= 0 {
			s = s[idx+1:]
		}
	}
	if s == "" {
		return nil, NewError(op, ErrInvalidInput, "no image provided")
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); err != nil {
			return nil, NewError(op, ErrInvalidInput, fmt.Sprintf("invalid base64 image: %v", err))
		}
	}
	if len(data) == 0 {
		return nil, NewError(op, ErrInvalidInput, "no image provided")
	}
	return data, nil
}
