// Package document renders extracted text as a Word (.docx) file.
package document

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/google/uuid"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	DefaultTitle = "Extracted document"
	subheading   = "OCR extracted text"
)

// Document is the content of one generated file.
type Document struct {
	Title     string
	Text      string
	WordCount int
	Engine    string
}

// NewFilename returns a fresh name of the form documento_<8 hex>.docx.
func NewFilename() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "documento_" + id[:8] + ".docx"
}

// Render returns the .docx bytes for d.
func Render(d Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the .docx package for d to w: a title, the sub-heading, one
// paragraph per text line and a word count and engine footer.
func Write(w io.Writer, d Document) error {
	if d.Title == "" {
		d.Title = DefaultTitle
	}

	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	if _, err := doc.AddHeading(d.Title, 0); err != nil {
		return fmt.Errorf("failed to add title: %w", err)
	}
	if _, err := doc.AddHeading(subheading, 1); err != nil {
		return fmt.Errorf("failed to add heading: %w", err)
	}
	for _, line := range strings.Split(d.Text, "\n") {
		doc.AddParagraph(line)
	}

	doc.AddParagraph("")
	doc.AddParagraph(fmt.Sprintf("Word count: %d", d.WordCount))
	if d.Engine != "" {
		doc.AddParagraph("Processed with " + d.Engine)
	}

	if err := doc.Write(w); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}
