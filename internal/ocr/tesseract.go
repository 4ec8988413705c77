package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/picklr-io/ocrstack/internal/logging"
)

const tesseractThreshold = 0.30

// commandRunner runs an external program with stdin and returns stdout.
type commandRunner func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

// Tesseract runs the local tesseract CLI and reads its TSV output.
type Tesseract struct {
	path  string
	langs string
	run   commandRunner
}

func NewTesseract(path, langs string) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	return &Tesseract{path: path, langs: langs, run: execCommand}
}

// IsAvailable reports whether the tesseract binary can be found.
func (t *Tesseract) IsAvailable() bool {
	_, err := exec.LookPath(t.path)
	return err == nil
}

func (t *Tesseract) Name() string             { return "tesseract" }
func (t *Tesseract) Method() string           { return "Tesseract OCR" }
func (t *Tesseract) NeedsNormalization() bool { return true }
func (t *Tesseract) Threshold() float64       { return tesseractThreshold }
func (t *Tesseract) Separator() string        { return " " }

func (t *Tesseract) Detect(ctx context.Context, image []byte) ([]Fragment, error) {
	const op = "Tesseract.Detect"

	args := []string{"stdin", "stdout"}
	if t.langs != "" {
		args = append(args, "-l", t.langs)
	}
	args = append(args, "tsv")

	out, err := t.run(ctx, t.path, args, image)
	if err != nil {
		return nil, NewError(op, ErrEngineFailed, err.Error())
	}
	fragments, err := parseTSV(out)
	if err != nil {
		return nil, NewError(op, ErrEngineFailed, err.Error())
	}
	return fragments, nil
}

func execCommand(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log := logging.WithComponent("tesseract")
	log.Debug().Str("cmd", cmd.String()).Msg("running OCR command")

	out, err := cmd.Output()
	if err != nil {
		log.Error().Err(err).Str("stderr", stderr.String()).Msg("OCR command failed")
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// TSV columns written by tesseract.
const (
	colLevel = iota
	colPage
	colBlock
	colPar
	colLine
	colWord
	colLeft
	colTop
	colWidth
	colHeight
	colConf
	colText
	tsvColumns
)

const wordLevel = "5"

// parseTSV groups word rows into one fragment per text line. A line's
// confidence is the mean of its word confidences scaled to [0, 1].
func parseTSV(out []byte) ([]Fragment, error) {
	type line struct {
		words []string
		sum   float64
	}
	var (
		order []string
		lines = make(map[string]*line)
	)

	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		cols := strings.Split(strings.TrimRight(sc.Text(), "\r"), "\t")
		if len(cols) < tsvColumns || cols[colLevel] != wordLevel {
			continue
		}
		text := strings.TrimSpace(cols[colText])
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[colConf], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid confidence %q: %w", cols[colConf], err)
		}
		if conf < 0 {
			continue
		}

		key := strings.Join(cols[colPage:colWord], ".")
		l, ok := lines[key]
		if !ok {
			l = &line{}
			lines[key] = l
			order = append(order, key)
		}
		l.words = append(l.words, text)
		l.sum += conf
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read TSV output: %w", err)
	}

	fragments := make([]Fragment, 0, len(order))
	for _, key := range order {
		l := lines[key]
		fragments = append(fragments, Fragment{
			Text:       strings.Join(l.words, " "),
			Confidence: l.sum / float64(len(l.words)) / 100,
		})
	}
	return fragments, nil
}
