package raster

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

const jpegQuality = 80

// Preview renders a JPEG preview of a saved PNG chip, downscaling to
// maxWidth when the chip is wider. The preview is written next to the
// chip as <stem>_preview.jpg and its path returned. Purely local
// post-processing; publishing never depends on it.
func Preview(pngPath string, maxWidth int) (string, error) {
	f, err := os.Open(pngPath)
	if err != nil {
		return "", fmt.Errorf("open chip: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, err := png.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decode chip: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if maxWidth > 0 && w > maxWidth {
		newH := h * maxWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	previewPath := strings.TrimSuffix(pngPath, filepath.Ext(pngPath)) + "_preview.jpg"
	out, err := os.Create(previewPath)
	if err != nil {
		return "", fmt.Errorf("create preview: %w", err)
	}
	defer func() { _ = out.Close() }()

	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}

	return previewPath, nil
}
