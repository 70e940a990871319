package source

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageExtensions lists the file extensions accepted for raster images.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp"}

// IsImageFile reports whether the name carries one of ImageExtensions.
func IsImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ImageSource is a single raster file on disk, decoded lazily.
type ImageSource struct {
	path      string
	maxPixels int64
}

func NewImageSource(path string, maxPixels int64) (*ImageSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, NewDecodeError("%s is a directory", path)
	}
	return &ImageSource{path: path, maxPixels: maxPixels}, nil
}

func (s *ImageSource) Name() string {
	return filepath.Base(s.path)
}

func (s *ImageSource) PageCount() int {
	return 1
}

func (s *ImageSource) GetPageDimensions(index int) (float64, float64, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, wrapDecode(err, "reading %s header", s.path)
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}

func (s *ImageSource) RenderPage(index int, dpi int) (image.Image, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, wrapDecode(err, "reading %s header", s.path)
	}
	if err := checkPixels(s.Name(), cfg.Width, cfg.Height, s.maxPixels); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, wrapDecode(err, "decoding %s", s.path)
	}
	return img, nil
}

func (s *ImageSource) Close() error {
	return nil
}

// MemorySource is an uploaded raster, decoded once up front.
type MemorySource struct {
	name   string
	format string
	img    image.Image
}

// NewMemorySource decodes data, refusing headers that declare more than maxPixels.
func NewMemorySource(name string, data []byte, maxPixels int64) (*MemorySource, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, wrapDecode(err, "decoding %s", name)
	}
	if err := checkPixels(name, cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, wrapDecode(err, "decoding %s", name)
	}
	return &MemorySource{name: name, format: format, img: img}, nil
}

func (s *MemorySource) Name() string {
	return s.name
}

// Format is the decoder name reported by image.Decode (png, jpeg, ...).
func (s *MemorySource) Format() string {
	return s.format
}

func (s *MemorySource) PageCount() int {
	return 1
}

func (s *MemorySource) GetPageDimensions(index int) (float64, float64, error) {
	b := s.img.Bounds()
	return float64(b.Dx()), float64(b.Dy()), nil
}

func (s *MemorySource) RenderPage(index int, dpi int) (image.Image, error) {
	return s.img, nil
}

func (s *MemorySource) Close() error {
	return nil
}
