package ocr

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
)

// TextractAPI is the subset of the Textract client the engine uses.
type TextractAPI interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

// Textract sends raw image bytes to AWS Textract and returns LINE blocks.
type Textract struct {
	client TextractAPI
}

func NewTextract(client TextractAPI) *Textract {
	return &Textract{client: client}
}

func (t *Textract) Name() string             { return "textract" }
func (t *Textract) Method() string           { return "AWS Textract" }
func (t *Textract) NeedsNormalization() bool { return false }
func (t *Textract) Threshold() float64       { return 0 }
func (t *Textract) Separator() string        { return "\n" }

func (t *Textract) Detect(ctx context.Context, image []byte) ([]Fragment, error) {
	const op = "Textract.Detect"

	out, err := t.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: image},
	})
	if err != nil {
		return nil, NewError(op, ErrEngineFailed, fmt.Sprintf("Textract call failed: %v", err))
	}

	var fragments []Fragment
	for _, b := range out.Blocks {
		if b.BlockType != types.BlockTypeLine {
			continue
		}
		fragments = append(fragments, Fragment{
			Text:       aws.ToString(b.Text),
			Confidence: float64(aws.ToFloat32(b.Confidence)) / 100,
		})
	}
	return fragments, nil
}
