package source

import (
	"bytes"
	"image"
	"math"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Source is anything that can be rendered into one or more rasters.
// Only page 0 is analysed; further pages are ignored.
type Source interface {
	Name() string
	PageCount() int
	GetPageDimensions(index int) (width, height float64, err error)
	RenderPage(index int, dpi int) (image.Image, error)
	Close() error
}

var pdfMagic = []byte("%PDF-")

// NewSource opens a file on disk, picking the PDF or image implementation by extension.
// Rasters above maxPixels are refused before they are decoded; zero means no limit.
func NewSource(path string, maxPixels int64) (Source, error) {
	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		src, err := NewFitzPDFSource(path, maxPixels)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	src, err := NewImageSource(path, maxPixels)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// FromBytes decodes an uploaded file. PDFs are recognised by their magic bytes,
// everything else goes through the registered image decoders.
func FromBytes(name string, data []byte, maxPixels int64) (Source, error) {
	if len(data) == 0 {
		return nil, NewDecodeError("%s: empty upload", name)
	}
	if bytes.HasPrefix(data, pdfMagic) {
		src, err := NewFitzPDFSourceFromMemory(name, data, maxPixels)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	src, err := NewMemorySource(name, data, maxPixels)
	if err != nil {
		return nil, err
	}
	return src, nil
}

type FitzPDFSource struct {
	doc       *fitz.Document
	name      string
	maxPixels int64
}

func NewFitzPDFSource(path string, maxPixels int64) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, wrapDecode(err, "opening PDF %s", path)
	}
	return &FitzPDFSource{doc: doc, name: filepath.Base(path), maxPixels: maxPixels}, nil
}

func NewFitzPDFSourceFromMemory(name string, data []byte, maxPixels int64) (*FitzPDFSource, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, wrapDecode(err, "reading PDF %s", name)
	}
	return &FitzPDFSource{doc: doc, name: name, maxPixels: maxPixels}, nil
}

func (f *FitzPDFSource) Name() string {
	return f.name
}

func (f *FitzPDFSource) PageCount() int {
	return f.doc.NumPage()
}

func (f *FitzPDFSource) GetPageDimensions(index int) (float64, float64, error) {
	rect, err := f.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	return float64(rect.Dx()), float64(rect.Dy()), nil
}

// RenderPage rasterises a page. Page bounds are in points (1/72 inch).
func (f *FitzPDFSource) RenderPage(index int, dpi int) (image.Image, error) {
	rect, err := f.doc.Bound(index)
	if err != nil {
		return nil, wrapDecode(err, "reading page %d of %s", index, f.name)
	}
	scale := float64(dpi) / 72
	w := int(math.Ceil(float64(rect.Dx()) * scale))
	h := int(math.Ceil(float64(rect.Dy()) * scale))
	if err := checkPixels(f.name, w, h, f.maxPixels); err != nil {
		return nil, err
	}

	img, err := f.doc.ImageDPI(index, float64(dpi))
	if err != nil {
		return nil, wrapDecode(err, "rendering page %d of %s", index, f.name)
	}
	return img, nil
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}
