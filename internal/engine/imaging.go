package engine

import (
	"bytes"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
	"github.com/esimov/caire"
	"github.com/fogleman/gg"

	"github.com/aliskhannn/pixor/pkg/imagespec"
)

// DefaultMaxDimension bounds requested widths and heights. The wire format
// imposes no range constraints, so the engine rejects anything a well-behaved
// client would never ask for.
const DefaultMaxDimension = 8192

// Imaging is an Engine backed by an in-memory pixel buffer. Operations are
// interpreted with disintegration/imaging, bild and caire primitives.
type Imaging struct {
	img        image.Image
	transforms map[imagespec.Kind]Transform
	maxDim     int
	watermark  image.Image
	consumed   bool
}

// Option configures an Imaging engine at construction time.
type Option func(*Imaging)

// WithMaxDimension overrides the maximum accepted width/height.
func WithMaxDimension(max int) Option {
	return func(e *Imaging) { e.maxDim = max }
}

// WithWatermark sets the overlay image composited by watermark operations.
// Without it, watermark operations are no-ops.
func WithWatermark(img image.Image) Option {
	return func(e *Imaging) { e.watermark = img }
}

// WithTransform registers or replaces the transform for an operation kind.
func WithTransform(kind imagespec.Kind, t Transform) Option {
	return func(e *Imaging) { e.transforms[kind] = t }
}

// NewImaging decodes the source bytes into a pixel buffer and returns an
// engine ready to apply one pipeline.
func NewImaging(src []byte, opts ...Option) (*Imaging, error) {
	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSourceFormat, err)
	}

	e := &Imaging{
		img:    img,
		maxDim: DefaultMaxDimension,
	}
	e.transforms = map[imagespec.Kind]Transform{
		imagespec.KindResize:    e.resize,
		imagespec.KindCrop:      e.crop,
		imagespec.KindFlipV:     e.flipV,
		imagespec.KindFlipH:     e.flipH,
		imagespec.KindContrast:  e.contrast,
		imagespec.KindFilter:    e.filter,
		imagespec.KindWatermark: e.compose,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Apply executes the pipeline in order. Nil payloads and kinds without a
// registered transform are skipped.
func (e *Imaging) Apply(specs []imagespec.Spec) error {
	if e.consumed {
		return ErrEngineConsumed
	}

	for _, s := range specs {
		if s.Data == nil {
			continue
		}

		t, ok := e.transforms[s.Data.Kind()]
		if !ok {
			continue
		}

		img, err := t(e.img, s.Data)
		if err != nil {
			return fmt.Errorf("apply %T: %w", s.Data, err)
		}

		e.img = img
	}

	return nil
}

// Generate encodes the image into the requested format and consumes the
// engine.
func (e *Imaging) Generate(format imaging.Format) ([]byte, error) {
	if e.consumed {
		return nil, ErrEngineConsumed
	}
	e.consumed = true

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, e.img, format); err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}

	e.img = nil

	return buf.Bytes(), nil
}

// Bounds reports the current pixel dimensions.
func (e *Imaging) Bounds() image.Rectangle {
	if e.img == nil {
		return image.Rectangle{}
	}
	return e.img.Bounds()
}

func (e *Imaging) checkDimensions(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrOutOfRangeDimensions, width, height)
	}
	if int(width) > e.maxDim || int(height) > e.maxDim {
		return fmt.Errorf("%w: %dx%d exceeds maximum %d", ErrOutOfRangeDimensions, width, height, e.maxDim)
	}

	return nil
}

func (e *Imaging) resize(img image.Image, data imagespec.Data) (image.Image, error) {
	op := data.(imagespec.Resize)

	if err := e.checkDimensions(op.Width, op.Height); err != nil {
		return nil, err
	}

	if op.Rtype == imagespec.ResizeSeamCarve {
		// The sampling filter field is never read for content-aware resize.
		p := &caire.Processor{
			NewWidth:       int(op.Width),
			NewHeight:      int(op.Height),
			BlurRadius:     4,
			SobelThreshold: 2,
		}

		out, err := p.Resize(imaging.Clone(img))
		if err != nil {
			return nil, fmt.Errorf("seam carve: %w", err)
		}

		return out, nil
	}

	return imaging.Resize(img, int(op.Width), int(op.Height), resampleFilter(op.Filter)), nil
}

// resampleFilter maps the wire sampling filter onto imaging's kernels.
// Undefined falls back to nearest neighbour.
func resampleFilter(f imagespec.SampleFilter) imaging.ResampleFilter {
	switch f {
	case imagespec.SampleFilterTriangle:
		return imaging.Linear
	case imagespec.SampleFilterCatmullRom:
		return imaging.CatmullRom
	case imagespec.SampleFilterGaussian:
		return imaging.Gaussian
	case imagespec.SampleFilterLanczos3:
		return imaging.Lanczos
	default:
		return imaging.NearestNeighbor
	}
}

func (e *Imaging) crop(img image.Image, data imagespec.Data) (image.Image, error) {
	op := data.(imagespec.Crop)

	if op.X2 <= op.X1 || op.Y2 <= op.Y1 {
		return nil, fmt.Errorf("%w: empty crop rectangle (%d,%d)-(%d,%d)", ErrOutOfRangeDimensions, op.X1, op.Y1, op.X2, op.Y2)
	}
	if err := e.checkDimensions(op.X2-op.X1, op.Y2-op.Y1); err != nil {
		return nil, err
	}

	rect := image.Rect(int(op.X1), int(op.Y1), int(op.X2), int(op.Y2))

	return transform.Crop(img, rect), nil
}

func (e *Imaging) flipV(img image.Image, _ imagespec.Data) (image.Image, error) {
	return transform.FlipV(img), nil
}

func (e *Imaging) flipH(img image.Image, _ imagespec.Data) (image.Image, error) {
	return transform.FlipH(img), nil
}

func (e *Imaging) contrast(img image.Image, data imagespec.Data) (image.Image, error) {
	op := data.(imagespec.Contrast)

	return imaging.AdjustContrast(img, float64(op.Contrast)), nil
}

func (e *Imaging) filter(img image.Image, data imagespec.Data) (image.Image, error) {
	op := data.(imagespec.Filter)

	fn, ok := filterFuncs[op.Filter.Key()]
	if !ok {
		// Unspecified or unknown name: leave the buffer untouched.
		return img, nil
	}

	return fn(img), nil
}

func (e *Imaging) compose(img image.Image, data imagespec.Data) (image.Image, error) {
	op := data.(imagespec.Watermark)

	if e.watermark == nil {
		return img, nil
	}

	dc := gg.NewContextForImage(img)
	dc.DrawImage(e.watermark, int(op.X), int(op.Y))

	return dc.Image(), nil
}
