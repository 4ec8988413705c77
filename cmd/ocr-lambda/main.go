// Command ocr-lambda is the function deployed by "ocrstack provision". Build
// it as "bootstrap" for the provided.al2023 runtime.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/picklr-io/ocrstack/internal/config"
	"github.com/picklr-io/ocrstack/internal/logging"
	"github.com/picklr-io/ocrstack/internal/ocr"
	"github.com/picklr-io/ocrstack/internal/server"
	"github.com/picklr-io/ocrstack/internal/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logging.Error(err, "invalid configuration")
		os.Exit(1)
	}
	if os.Getenv("OCR_ENGINE") == "" {
		cfg.Engine = "textract"
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.ValidateExtraction(); err != nil {
		logging.Error(err, "invalid configuration")
		os.Exit(1)
	}

	eng, err := ocr.Open(ctx, cfg)
	if err != nil {
		logging.Error(err, "failed to open OCR engine")
		os.Exit(1)
	}
	docs, err := store.New(ctx, cfg)
	if err != nil {
		logging.Error(err, "failed to open document store")
		os.Exit(1)
	}

	srv := server.New(ocr.NewPipeline(eng, cfg.ConfidenceThreshold), docs)
	lambda.Start(srv.HandleLambda)
}
