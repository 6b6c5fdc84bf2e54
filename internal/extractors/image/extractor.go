// Package image records metadata for image uploads. No OCR is
// performed; the extracted text is a placeholder describing the file.
package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"

	"github.com/shokudev/kura/internal/core/domain"
	"github.com/shokudev/kura/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles image uploads (.png, .jpg, .jpeg, .gif, .bmp).
type Extractor struct{}

// New creates an image extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{"png", "jpg", "jpeg", "gif", "bmp"}
}

// Extract decodes the image header and returns a placeholder line with
// the format and dimensions.
func (e *Extractor) Extract(
	_ context.Context, content []byte, _ string,
) (string, *domain.StructuredData, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return "", nil, fmt.Errorf("%w: decode image: %v", domain.ErrInvalidInput, err)
	}

	data := &domain.ImageData{
		Format: strings.ToUpper(format),
		Width:  cfg.Width,
		Height: cfg.Height,
		Mode:   colorMode(cfg.ColorModel),
	}

	text := fmt.Sprintf("[画像ファイル: %s, サイズ: %dx%d]",
		data.Format, data.Width, data.Height)
	return text, &domain.StructuredData{Image: data}, nil
}

// colorMode names the image's color model.
func colorMode(model color.Model) string {
	switch model {
	case color.RGBAModel:
		return "RGBA"
	case color.NRGBAModel:
		return "NRGBA"
	case color.YCbCrModel:
		return "YCbCr"
	case color.GrayModel, color.Gray16Model:
		return "Gray"
	case color.CMYKModel:
		return "CMYK"
	}
	if _, ok := model.(color.Palette); ok {
		return "P"
	}
	return "unknown"
}
