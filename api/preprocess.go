package api

import (
	"bytes"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/ocr"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

const missingImageMessage = `No image provided. Send "file" in form-data or "image" (base64) in JSON body`

type imageUpload struct {
	data     []byte
	language string
}

func (h *Handlers) ExtractText(ctx *fasthttp.RequestCtx) {
	upload, err := h.readImage(ctx)
	if err != nil {
		utils.WriteError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	requestCtx, cancel := requestContext(ctx)
	defer cancel()

	result, err := h.ocr.Extract(requestCtx, upload.data, upload.language)
	if err != nil {
		h.writeOCRError(ctx, err, "An error occurred during text extraction", fasthttp.StatusInternalServerError)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, result)
}

// ExtractAndParse runs OCR and then the AI parser. An AI failure still
// answers 200 with the raw OCR text so the client can fall back to manual
// entry.
func (h *Handlers) ExtractAndParse(ctx *fasthttp.RequestCtx) {
	start := time.Now()

	upload, err := h.readImage(ctx)
	if err != nil {
		utils.WriteError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	requestCtx, cancel := requestContext(ctx)
	defer cancel()

	result, err := h.ocr.Extract(requestCtx, upload.data, upload.language)
	if err != nil {
		h.writeOCRError(ctx, err, "OCR extraction failed", fasthttp.StatusBadRequest)
		return
	}

	if strings.TrimSpace(result.Text) == "" {
		utils.WriteError(ctx, fasthttp.StatusBadRequest, "No text extracted from image")
		return
	}

	parsed := h.ai.ParseTransaction(requestCtx, result.Text)
	elapsed := utils.Round(time.Since(start).Seconds(), 2)

	if !parsed.Success {
		aiError := parsed.Error
		if aiError == "" {
			aiError = "AI parsing failed"
		}

		utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
			"success":            true,
			"ai_parsing_success": false,
			"ai_error":           aiError,
			"ocr_text":           result.Text,
			"ocr_confidence":     result.Confidence,
			"processing_time":    elapsed,
			"language":           result.Language,
		})
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"success":            true,
		"ai_parsing_success": true,
		"transaction":        parsed.Data,
		"ocr_confidence":     result.Confidence,
		"processing_time":    elapsed,
		"language":           result.Language,
	})
}

// readImage accepts a multipart "file" or a JSON body with a base64
// "image". The returned error is a client message.
func (h *Handlers) readImage(ctx *fasthttp.RequestCtx) (*imageUpload, error) {
	if bytes.HasPrefix(ctx.Request.Header.ContentType(), []byte("multipart/form-data")) {
		form, err := ctx.MultipartForm()
		if err != nil {
			return nil, types.NewValidationError("Invalid multipart form: %v", err)
		}

		files := form.File["file"]
		if len(files) == 0 {
			return nil, types.NewValidationError(missingImageMessage)
		}

		data, err := readFormFile(files[0])
		if err != nil {
			return nil, err
		}

		return &imageUpload{data: data, language: formValue(form, "language")}, nil
	}

	body := ctx.PostBody()
	field, ok := jsonField(body, "image")
	if !ok {
		return nil, types.NewValidationError(missingImageMessage)
	}

	data, err := ocr.DecodeBase64Image(field.String())
	if err != nil {
		return nil, err
	}

	upload := &imageUpload{data: data}
	if language, ok := jsonField(body, "language"); ok {
		upload.language = language.String()
	}

	return upload, nil
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	if err := ocr.ValidateFilename(header.Filename); err != nil {
		return nil, err
	}

	file, err := header.Open()
	if err != nil {
		return nil, types.NewValidationError("Cannot read uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, types.NewValidationError("Cannot read uploaded file")
	}

	return data, nil
}

func formValue(form *multipart.Form, name string) string {
	if values := form.Value[name]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

// writeOCRError maps a missing binary and unreadable images to 400 with
// the error text. Anything else gets the route's generic message.
func (h *Handlers) writeOCRError(ctx *fasthttp.RequestCtx, err error, generic string, status int) {
	h.logger.Error("OCR request failed", zap.Error(err))

	switch {
	case types.IsError(err, types.ErrOCRNotInstalled), types.IsError(err, types.ErrImageInvalid):
		utils.WriteError(ctx, fasthttp.StatusBadRequest, err.Error())
	default:
		utils.WriteError(ctx, status, generic)
	}
}
