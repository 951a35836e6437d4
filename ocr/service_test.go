package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/logger"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

type fakeEngine struct {
	recognition *Recognition
	err         error
	language    string
	calls       int
}

func (f *fakeEngine) Recognize(_ context.Context, _ []byte, language string) (*Recognition, error) {
	f.calls++
	f.language = language
	return f.recognition, f.err
}

func (f *fakeEngine) Available() error {
	return f.err
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	img.Set(0, 0, color.White)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestService_Extract(t *testing.T) {
	engine := &fakeEngine{recognition: &Recognition{
		Text: "  CHUYEN TIEN\nThành công  ",
		Words: []Word{
			{Text: "CHUYEN", Confidence: 90},
			{Text: "TIEN", Confidence: 80},
			{Text: "Thành", Confidence: 71.333},
			{Text: "công", Confidence: 70},
		},
	}}
	service := NewService(engine, nil, logger.NewNop())

	result, err := service.Extract(testContext(t), pngBytes(t, 40, 20), "")

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "CHUYEN TIEN\nThành công", result.Text)
	assert.Equal(t, DefaultLanguage, result.Language)
	assert.Equal(t, DefaultLanguage, engine.language)
	assert.InDelta(t, 77.83, result.Confidence, 1e-9)
	assert.Equal(t, 4, result.WordCount)
	assert.Equal(t, 22, result.CharCount)
	assert.Equal(t, ImageSize{Width: 40, Height: 20}, result.ImageSize)
	assert.GreaterOrEqual(t, result.ProcessingTime, 0.0)
}

func TestService_ExtractLanguageOverride(t *testing.T) {
	engine := &fakeEngine{recognition: &Recognition{}}
	service := NewService(engine, &types.OCRConfig{DefaultLanguage: "eng"}, logger.NewNop())
	assert.Equal(t, "eng", service.DefaultLanguage())

	result, err := service.Extract(testContext(t), []byte("not an image"), "vie")

	require.NoError(t, err)
	assert.Equal(t, "vie", engine.language)
	assert.Equal(t, "", result.Text)
	assert.Equal(t, 0, result.WordCount)
	assert.Zero(t, result.Confidence)
	assert.Equal(t, ImageSize{}, result.ImageSize)
}

func TestService_ExtractErrors(t *testing.T) {
	engine := &fakeEngine{err: types.Errorf(types.ErrOCRFailed, "bad input")}
	service := NewService(engine, nil, logger.NewNop())

	_, err := service.Extract(testContext(t), nil, "")
	assert.ErrorIs(t, err, types.ErrImageInvalid)
	assert.Equal(t, 0, engine.calls)

	_, err = service.Extract(testContext(t), pngBytes(t, 1, 1), "")
	assert.ErrorIs(t, err, types.ErrOCRFailed)
	assert.EqualError(t, err, "OCR extraction failed: bad input")
}

func TestValidateFilename(t *testing.T) {
	assert.NoError(t, ValidateFilename("receipt.PNG"))
	assert.NoError(t, ValidateFilename("scan.webp"))

	err := ValidateFilename("")
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.EqualError(t, err, "No file selected")

	err = ValidateFilename("notes.pdf")
	assert.EqualError(t, err, "Invalid file type. Allowed: png, jpg, jpeg, gif, bmp, tiff, webp")

	assert.Error(t, ValidateFilename("noextension"))
}

func TestDecodeBase64Image(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G', 1, 2}
	encoded := base64.StdEncoding.EncodeToString(raw)

	data, err := DecodeBase64Image(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, data)

	data, err = DecodeBase64Image("data:image/png;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, data)

	data, err = DecodeBase64Image(base64.RawStdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, data)

	_, err = DecodeBase64Image("!!!not base64!!!")
	assert.EqualError(t, err, "Invalid base64 image data")

	_, err = DecodeBase64Image("data:image/png;base64,")
	assert.ErrorIs(t, err, types.ErrValidation)
}
