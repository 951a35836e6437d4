package ocr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t800\t600\t-1\t\n" +
	"2\t1\t1\t0\t0\t0\t10\t10\t300\t40\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t80\t20\t96.5\tCHUYEN\n" +
	"5\t1\t1\t1\t1\t2\t95\t10\t60\t20\t93.5\tTIEN\n" +
	"5\t1\t1\t1\t2\t1\t10\t35\t90\t20\t88\t500,000\n" +
	"5\t1\t1\t1\t2\t2\t105\t35\t40\t20\t-1\t \n" +
	"5\t1\t2\t1\t1\t1\t10\t80\t120\t20\t90\tVND\n"

func TestParseTSV(t *testing.T) {
	recognition, err := ParseTSV([]byte(sampleTSV))

	require.NoError(t, err)
	assert.Equal(t, "CHUYEN TIEN\n500,000\n\nVND", recognition.Text)
	require.Len(t, recognition.Words, 4)
	assert.Equal(t, Word{Text: "VND", Confidence: 90, Block: 2, Paragraph: 1, Line: 1}, recognition.Words[3])
	assert.InDelta(t, 92.0, recognition.AverageConfidence(), 1e-9)
}

func TestParseTSVEmpty(t *testing.T) {
	recognition, err := ParseTSV(nil)

	require.NoError(t, err)
	assert.Empty(t, recognition.Text)
	assert.Zero(t, recognition.AverageConfidence())
}

func TestTesseract_MissingBinary(t *testing.T) {
	engine := NewTesseract(&types.OCRConfig{Binary: "tesseract-binary-that-does-not-exist", Timeout: time.Second})

	assert.ErrorIs(t, engine.Available(), types.ErrOCRNotInstalled)

	_, err := engine.Recognize(testContext(t), []byte("image"), DefaultLanguage)
	assert.ErrorIs(t, err, types.ErrOCRNotInstalled)
}

func TestNewTesseractDefaults(t *testing.T) {
	engine := NewTesseract(nil)

	assert.Equal(t, DefaultBinary, engine.binary)
	assert.Equal(t, DefaultTimeout, engine.timeout)
}
