package debug

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/glbview/internal/logger"
)

// ScreenshotCapture writes frames to timestamped PNG files.
type ScreenshotCapture struct {
	outputDir string
	prefix    string
	now       func() time.Time
}

// NewScreenshotCapture creates a new screenshot capture handler.
func NewScreenshotCapture(outputDir, prefix string) *ScreenshotCapture {
	return &ScreenshotCapture{
		outputDir: outputDir,
		prefix:    prefix,
		now:       time.Now,
	}
}

// SetOutputDir sets the output directory for screenshots.
func (sc *ScreenshotCapture) SetOutputDir(dir string) {
	sc.outputDir = dir
}

// OutputDir returns the directory screenshots are written to.
func (sc *ScreenshotCapture) OutputDir() string {
	return sc.outputDir
}

// CaptureFromPixels saves raw RGBA pixel data read back from OpenGL.
// pixels must hold width*height*4 bytes. Rows are flipped since OpenGL
// has its origin at the bottom-left.
func (sc *ScreenshotCapture) CaptureFromPixels(pixels []byte, width, height int) (string, error) {
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("invalid screenshot size %dx%d", width, height)
	}
	if len(pixels) != width*height*4 {
		return "", fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}
	return sc.CaptureFromImage(FlipRGBA(pixels, width, height))
}

// CaptureFromImage saves an existing image.
func (sc *ScreenshotCapture) CaptureFromImage(img image.Image) (string, error) {
	if sc.outputDir != "" {
		if err := os.MkdirAll(sc.outputDir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	filename := sc.GenerateFilename()
	if err := writePNG(filename, img); err != nil {
		return "", err
	}

	b := img.Bounds()
	logger.Info("screenshot saved", zap.String("path", filename), zap.Int("width", b.Dx()), zap.Int("height", b.Dy()))
	return filename, nil
}

// GenerateFilename returns a path that does not exist yet. Captures within
// the same second get a numeric suffix.
func (sc *ScreenshotCapture) GenerateFilename() string {
	base := fmt.Sprintf("%s_%s", sc.prefix, sc.now().Format("2006-01-02_15-04-05"))
	name := base + ".png"
	for i := 1; ; i++ {
		path := name
		if sc.outputDir != "" {
			path = filepath.Join(sc.outputDir, name)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		name = fmt.Sprintf("%s_%d.png", base, i)
	}
}

// FlipRGBA copies bottom-up RGBA rows into a top-down image.
func FlipRGBA(pixels []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * rowSize
		dst := y * img.Stride
		copy(img.Pix[dst:dst+rowSize], pixels[src:src+rowSize])
	}
	return img
}

func writePNG(filename string, img image.Image) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer func() { err = multierr.Append(err, file.Close()) }()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return nil
}
