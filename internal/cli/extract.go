package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/picklr-io/ocrstack/internal/document"
	"github.com/picklr-io/ocrstack/internal/ocr"
	"github.com/picklr-io/ocrstack/internal/store"
	"github.com/spf13/cobra"
)

var (
	extractTitle string
	extractDocx  bool
	extractJSON  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <image>",
	Short: "Extract text from an image file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractTitle, "title", "", "Document title used with --docx")
	extractCmd.Flags().BoolVar(&extractDocx, "docx", false, "Also write a Word document to the output store")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Print the result as JSON")
	addExtractionFlags(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	if err := applyExtractionFlags(cmd); err != nil {
		return err
	}
	ctx := cmd.Context()

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	eng, err := ocr.Open(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := eng.(io.Closer); ok {
		defer c.Close()
	}

	res, err := ocr.NewPipeline(eng, cfg.ConfidenceThreshold).Extract(ctx, image)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := printResult(out, res, extractJSON); err != nil {
		return err
	}

	if !extractDocx {
		return nil
	}
	if res.NoText {
		return fmt.Errorf("no text found, document not written")
	}
	docs, err := store.New(ctx, cfg)
	if err != nil {
		return err
	}
	data, err := document.Render(document.Document{
		Title:     extractTitle,
		Text:      res.Text,
		WordCount: res.WordCount(),
		Engine:    res.Metadata.ProcessingMethod,
	})
	if err != nil {
		return err
	}
	name := document.NewFilename()
	if err := docs.Put(ctx, name, data, document.ContentType); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s to %s\n", name, docs)
	return nil
}

func printResult(w io.Writer, res *ocr.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"text":              res.Text,
			"individual_texts":  res.Fragments,
			"confidence_scores": res.Confidences,
			"total_words":       res.Count(),
			"metadata":          res.Metadata,
			"status":            "success",
		})
	}
	fmt.Fprintln(w, res.Text)
	fmt.Fprintf(w, "\n(%s, %d fragments, confidence %.2f%%)\n",
		res.Metadata.ProcessingMethod, res.Count(), res.Metadata.Confidence)
	return nil
}
