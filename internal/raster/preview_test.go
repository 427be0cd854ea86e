package raster

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestPreview_DownscalesWideChip(t *testing.T) {
	chip := filepath.Join(t.TempDir(), "sentinel_20230601_37.500000_47.100000.png")
	writeTestPNG(t, chip, 512, 512)

	previewPath, err := Preview(chip, 256)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !strings.HasSuffix(previewPath, "_preview.jpg") {
		t.Errorf("preview path = %s", previewPath)
	}

	f, err := os.Open(previewPath)
	if err != nil {
		t.Fatalf("open preview: %v", err)
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if got := img.Bounds().Dx(); got != 256 {
		t.Errorf("preview width = %d, want 256", got)
	}
	// Aspect preserved
	if got := img.Bounds().Dy(); got != 256 {
		t.Errorf("preview height = %d, want 256", got)
	}
}

func TestPreview_NarrowChipKeptAsIs(t *testing.T) {
	chip := filepath.Join(t.TempDir(), "chip.png")
	writeTestPNG(t, chip, 100, 80)

	previewPath, err := Preview(chip, 256)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	f, err := os.Open(previewPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 80 {
		t.Errorf("preview resized to %v, want original 100x80", img.Bounds())
	}
}

func TestPreview_MissingFile(t *testing.T) {
	if _, err := Preview(filepath.Join(t.TempDir(), "nope.png"), 256); err == nil {
		t.Error("expected error for missing chip")
	}
}
