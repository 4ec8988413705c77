package cli

import (
	"fmt"
	"io"

	"github.com/picklr-io/ocrstack/internal/ocr"
	"github.com/picklr-io/ocrstack/internal/server"
	"github.com/picklr-io/ocrstack/internal/store"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	ocrEngine    string
	ocrThreshold float64
	ocrOutputDir string
	ocrOutputBkt string
	ocrLanguages string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extraction HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default $OCR_LISTEN_ADDR or :8000)")
	addExtractionFlags(serveCmd)
}

// addExtractionFlags registers the flags shared by serve and extract.
func addExtractionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&ocrEngine, "engine", "", "OCR engine: tesseract, textract or vision")
	f.Float64Var(&ocrThreshold, "threshold", -1, "Minimum fragment confidence (default: engine specific)")
	f.StringVar(&ocrOutputDir, "output-dir", "", "Directory for generated documents")
	f.StringVar(&ocrOutputBkt, "output-bucket", "", "S3 bucket for generated documents")
	f.StringVar(&ocrLanguages, "lang", "", "Tesseract language codes, e.g. spa+eng")
}

func applyExtractionFlags(cmd *cobra.Command) error {
	setIfChanged(&cfg.Engine, ocrEngine)
	setIfChanged(&cfg.OutputDir, ocrOutputDir)
	setIfChanged(&cfg.OutputBucket, ocrOutputBkt)
	setIfChanged(&cfg.TesseractLangs, ocrLanguages)
	if cmd.Flags().Changed("threshold") {
		cfg.ConfidenceThreshold = ocrThreshold
	}
	if err := cfg.ValidateExtraction(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := applyExtractionFlags(cmd); err != nil {
		return err
	}
	setIfChanged(&cfg.ListenAddr, serveAddr)
	ctx := cmd.Context()

	eng, err := ocr.Open(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := eng.(io.Closer); ok {
		defer c.Close()
	}

	docs, err := store.New(ctx, cfg)
	if err != nil {
		return err
	}

	srv := server.New(ocr.NewPipeline(eng, cfg.ConfidenceThreshold), docs)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s OCR on %s (documents in %s)\n", eng.Name(), cfg.ListenAddr, docs)
	return srv.ListenAndServe(ctx, cfg.ListenAddr)
}
