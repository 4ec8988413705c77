package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// Annotator sends an image annotation request to Cloud Vision.
type Annotator interface {
	Annotate(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)
}

type clientAnnotator struct {
	client *vision.ImageAnnotatorClient
}

func (c clientAnnotator) Annotate(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
	return c.client.BatchAnnotateImages(ctx, req)
}

// Vision uses Google Cloud Vision document text detection and reports one
// fragment per paragraph.
type Vision struct {
	annotator Annotator
	hints     []string
	close     func() error
}

// NewVision creates a client from GOOGLE_CREDENTIALS (inline JSON),
// GOOGLE_APPLICATION_CREDENTIALS (file) or the default credentials.
func NewVision(ctx context.Context, hints ...string) (*Vision, error) {
	const op = "NewVision"

	var opts []option.ClientOption
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, NewError(op, ErrEngineUnavailable, fmt.Sprintf("failed to create Vision client: %v", err))
	}
	v := NewVisionWithAnnotator(clientAnnotator{client: client}, hints...)
	v.close = client.Close
	return v, nil
}

// NewVisionWithAnnotator wraps an explicit annotator.
func NewVisionWithAnnotator(a Annotator, hints ...string) *Vision {
	return &Vision{annotator: a, hints: hints}
}

func (v *Vision) Name() string             { return "vision" }
func (v *Vision) Method() string           { return "Google Cloud Vision" }
func (v *Vision) NeedsNormalization() bool { return false }
func (v *Vision) Threshold() float64       { return 0 }
func (v *Vision) Separator() string        { return "\n" }

// Close releases the underlying client connection.
func (v *Vision) Close() error {
	if v.close == nil {
		return nil
	}
	return v.close()
}

func (v *Vision) Detect(ctx context.Context, image []byte) ([]Fragment, error) {
	const op = "Vision.Detect"

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: image},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}
	if len(v.hints) > 0 {
		req.Requests[0].ImageContext = &visionpb.ImageContext{LanguageHints: v.hints}
	}

	resp, err := v.annotator.Annotate(ctx, req)
	if err != nil {
		return nil, NewError(op, ErrEngineFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.GetResponses()) == 0 {
		return nil, NewError(op, ErrEngineFailed, "no response from Vision API")
	}
	r := resp.GetResponses()[0]
	if r.GetError() != nil {
		return nil, NewError(op, ErrEngineFailed, fmt.Sprintf("Vision API error: %s", r.GetError().GetMessage()))
	}

	var fragments []Fragment
	for _, page := range r.GetFullTextAnnotation().GetPages() {
		for _, block := range page.GetBlocks() {
			for _, para := range block.GetParagraphs() {
				fragments = append(fragments, Fragment{
					Text:       paragraphText(para),
					Confidence: float64(para.GetConfidence()),
				})
			}
		}
	}
	return fragments, nil
}

// paragraphText rebuilds a paragraph from its symbols and detected breaks.
func paragraphText(p *visionpb.Paragraph) string {
	var sb strings.Builder
	for _, w := range p.GetWords() {
		for _, s := range w.GetSymbols() {
			sb.WriteString(s.GetText())
			switch s.GetProperty().GetDetectedBreak().GetType() {
			case visionpb.TextAnnotation_DetectedBreak_SPACE, visionpb.TextAnnotation_DetectedBreak_SURE_SPACE:
				sb.WriteByte(' ')
			case visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE, visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
				sb.WriteByte('\n')
			case visionpb.TextAnnotation_DetectedBreak_HYPHEN:
				sb.WriteString("-\n")
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
