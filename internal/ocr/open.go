package ocr

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/picklr-io/ocrstack/internal/config"
)

// Open builds the engine selected by cfg.Engine.
func Open(ctx context.Context, cfg *config.Config) (Engine, error) {
	const op = "Open"

	switch cfg.Engine {
	case "tesseract":
		t := NewTesseract(cfg.TesseractPath, cfg.TesseractLangs)
		if !t.IsAvailable() {
			return nil, NewError(op, ErrEngineUnavailable, fmt.Sprintf("%s not found in PATH", cfg.TesseractPath))
		}
		return t, nil
	case "textract":
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
		if cfg.Profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, NewError(op, ErrEngineUnavailable, fmt.Sprintf("failed to load AWS config: %v", err))
		}
		return NewTextract(textract.NewFromConfig(awsCfg)), nil
	case "vision":
		return NewVision(ctx, languageHints(cfg.TesseractLangs)...)
	}
	return nil, NewError(op, ErrEngineUnavailable, fmt.Sprintf("unknown engine %q", cfg.Engine))
}

// languageHints maps tesseract language codes to the BCP-47 hints Vision
// accepts. Unknown codes are dropped.
func languageHints(langs string) []string {
	codes := map[string]string{"spa": "es", "eng": "en", "por": "pt", "fra": "fr", "deu": "de", "ita": "it"}
	var hints []string
	for _, l := range strings.Split(langs, "+") {
		if h, ok := codes[strings.TrimSpace(l)]; ok {
			hints = append(hints, h)
		}
	}
	return hints
}
