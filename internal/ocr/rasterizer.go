package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
)

const jpegQuality = 90

// Rasterizer converts an uploaded PDF into per-page JPEG images with go-fitz.
type Rasterizer struct{}

// NewRasterizer creates a Rasterizer.
func NewRasterizer() *Rasterizer {
	return &Rasterizer{}
}

// Rasterize renders every page of the PDF to a JPEG. The returned slice is
// page-ordered; index i holds page i.
func (r *Rasterizer) Rasterize(ctx context.Context, pdf []byte) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	images := make([][]byte, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.Image(pageNum)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", pageNum, err)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", pageNum, err)
		}
		images = append(images, buf.Bytes())
	}

	return images, nil
}
