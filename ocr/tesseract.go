package ocr

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

const (
	DefaultBinary   = "tesseract"
	DefaultLanguage = "vie+eng"
	DefaultTimeout  = 30 * time.Second
)

type Word struct {
	Text       string
	Confidence float64
	Block      int
	Paragraph  int
	Line       int
}

type Recognition struct {
	Text  string
	Words []Word
}

// Engine turns image bytes into text.
type Engine interface {
	Recognize(ctx context.Context, image []byte, language string) (*Recognition, error)
	Available() error
}

// Tesseract runs the tesseract CLI, feeding the image on stdin and reading
// TSV from stdout so text and word confidences come from one pass.
type Tesseract struct {
	binary  string
	timeout time.Duration
}

func NewTesseract(config *types.OCRConfig) *Tesseract {
	t := &Tesseract{binary: DefaultBinary, timeout: DefaultTimeout}

	if config != nil {
		if config.Binary != "" {
			t.binary = config.Binary
		}
		if config.Timeout > 0 {
			t.timeout = config.Timeout
		}
	}

	return t
}

func (t *Tesseract) Available() error {
	if _, err := exec.LookPath(t.binary); err != nil {
		return types.Errorf(types.ErrOCRNotInstalled, "%s: %v", t.binary, err)
	}
	return nil
}

func (t *Tesseract) Recognize(ctx context.Context, image []byte, language string) (*Recognition, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, t.binary, "stdin", "stdout", "-l", language, "tsv")
	cmd.Stdin = bytes.NewReader(image)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, types.Errorf(types.ErrOCRNotInstalled, "install tesseract-ocr and tesseract-ocr-vie")
		}
		if ctx.Err() != nil {
			return nil, types.Errorf(types.ErrOCRFailed, "timed out after %s", t.timeout)
		}
		return nil, types.Errorf(types.ErrOCRFailed, "%v: %s", err, utils.Truncate(strings.TrimSpace(stderr.String()), 300))
	}

	return ParseTSV(stdout.Bytes())
}

// ParseTSV reads tesseract TSV output. Only word rows (level 5) are kept;
// lines are joined with newlines and paragraphs with a blank line.
func ParseTSV(data []byte) (*Recognition, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	recognition := &Recognition{}
	var text strings.Builder
	var lastBlock, lastParagraph, lastLine = -1, -1, -1

	header := true
	for scanner.Scan() {
		if header {
			header = false
			continue
		}

		columns := strings.Split(scanner.Text(), "\t")
		if len(columns) < 12 || columns[0] != "5" {
			continue
		}

		word := strings.TrimSpace(columns[11])
		confidence, err := strconv.ParseFloat(columns[10], 64)
		if err != nil || confidence < 0 || word == "" {
			continue
		}

		block, _ := strconv.Atoi(columns[2])
		paragraph, _ := strconv.Atoi(columns[3])
		line, _ := strconv.Atoi(columns[4])

		switch {
		case lastBlock == -1:
		case block != lastBlock || paragraph != lastParagraph:
			text.WriteString("\n\n")
		case line != lastLine:
			text.WriteString("\n")
		default:
			text.WriteString(" ")
		}
		text.WriteString(word)

		lastBlock, lastParagraph, lastLine = block, paragraph, line

		recognition.Words = append(recognition.Words, Word{
			Text:       word,
			Confidence: confidence,
			Block:      block,
			Paragraph:  paragraph,
			Line:       line,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, types.Errorf(types.ErrOCRFailed, "read tsv: %v", err)
	}

	recognition.Text = text.String()

	return recognition, nil
}

// AverageConfidence is the mean word confidence, 0 when there are no words.
func (r *Recognition) AverageConfidence() float64 {
	if len(r.Words) == 0 {
		return 0
	}

	var sum float64
	for _, word := range r.Words {
		sum += word.Confidence
	}
	return sum / float64(len(r.Words))
}
