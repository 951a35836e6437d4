package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

// AllowedExtensions lists the accepted upload types in the order reported
// to clients.
var AllowedExtensions = []string{"png", "jpg", "jpeg", "gif", "bmp", "tiff", "webp"}

type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Result struct {
	Success        bool      `json:"success"`
	Text           string    `json:"text"`
	Confidence     float64   `json:"confidence"`
	Language       string    `json:"language"`
	ProcessingTime float64   `json:"processing_time"`
	WordCount      int       `json:"word_count"`
	CharCount      int       `json:"char_count"`
	ImageSize      ImageSize `json:"image_size"`
}

type Service struct {
	engine          Engine
	defaultLanguage string
	logger          types.Logger
}

func NewService(engine Engine, config *types.OCRConfig, logger types.Logger) *Service {
	language := DefaultLanguage
	if config != nil && config.DefaultLanguage != "" {
		language = config.DefaultLanguage
	}

	return &Service{
		engine:          engine,
		defaultLanguage: language,
		logger:          logger,
	}
}

func (s *Service) DefaultLanguage() string {
	return s.defaultLanguage
}

func (s *Service) Available() error {
	return s.engine.Available()
}

// Extract runs OCR over an encoded image. An empty language selects the
// configured default.
func (s *Service) Extract(ctx context.Context, data []byte, language string) (*Result, error) {
	start := time.Now()

	if len(data) == 0 {
		return nil, types.Errorf(types.ErrImageInvalid, "empty image")
	}
	if language == "" {
		language = s.defaultLanguage
	}

	var size ImageSize
	if config, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		size = ImageSize{Width: config.Width, Height: config.Height}
		s.logger.Debug("Image decoded", zap.String("format", format), zap.Int("width", size.Width), zap.Int("height", size.Height))
	}

	recognition, err := s.engine.Recognize(ctx, data, language)
	if err != nil {
		s.logger.Error("OCR extraction failed", zap.String("language", language), zap.Error(err))
		return nil, err
	}

	text := strings.TrimSpace(recognition.Text)

	return &Result{
		Success:        true,
		Text:           text,
		Confidence:     utils.Round(recognition.AverageConfidence(), 2),
		Language:       language,
		ProcessingTime: utils.Round(time.Since(start).Seconds(), 2),
		WordCount:      len(strings.Fields(text)),
		CharCount:      utf8.RuneCountInString(text),
		ImageSize:      size,
	}, nil
}

// ValidateFilename checks an upload name against AllowedExtensions. The
// returned error message is meant for API clients.
func ValidateFilename(filename string) error {
	if filename == "" {
		return types.NewValidationError("No file selected")
	}

	extension := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	for _, allowed := range AllowedExtensions {
		if extension == allowed {
			return nil
		}
	}

	return types.NewValidationError("Invalid file type. Allowed: %s", strings.Join(AllowedExtensions, ", "))
}

// DecodeBase64Image accepts raw base64 or a data URL such as
// "data:image/png;base64,....".
func DecodeBase64Image(encoded string) ([]byte, error) {
	if _, payload, found := strings.Cut(encoded, ","); found {
		encoded = payload
	}

	encoded = strings.Join(strings.Fields(encoded), "")
	if encoded == "" {
		return nil, types.NewValidationError("Invalid base64 image data")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
	}
	if err != nil {
		return nil, types.NewValidationError("Invalid base64 image data")
	}

	return data, nil
}
