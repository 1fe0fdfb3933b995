// Package imagespec defines the image-transformation request protocol:
// an ordered pipeline of operations (ImageSpec) and its canonical,
// URL-safe token encoding.
package imagespec

// Kind discriminates operation payloads on the wire. The values are the
// protobuf field numbers of the Spec oneof and must never be renumbered.
type Kind int32

const (
	KindResize    Kind = 1
	KindCrop      Kind = 2
	KindFlipV     Kind = 3
	KindFlipH     Kind = 4
	KindContrast  Kind = 5
	KindFilter    Kind = 6
	KindWatermark Kind = 7
)

// ResizeType selects between uniform resampling and content-aware resize.
type ResizeType int32

const (
	ResizeNormal    ResizeType = 0
	ResizeSeamCarve ResizeType = 1
)

// SampleFilter is the interpolation kernel used during a normal resize.
// Undefined is the safe default and maps to the engine's default kernel.
type SampleFilter int32

const (
	SampleFilterUndefined  SampleFilter = 0
	SampleFilterNearest    SampleFilter = 1
	SampleFilterTriangle   SampleFilter = 2
	SampleFilterCatmullRom SampleFilter = 3
	SampleFilterGaussian   SampleFilter = 4
	SampleFilterLanczos3   SampleFilter = 5
)

// FilterName names a preset color filter. Unspecified is the no-op sentinel;
// engines must skip names they do not recognize.
type FilterName int32

const (
	FilterUnspecified FilterName = 0
	FilterOceanic     FilterName = 1
	FilterIslands     FilterName = 2
	FilterMarine      FilterName = 3
)

// Key returns the lookup key engines use to resolve the filter function.
// Unspecified has no key.
func (f FilterName) Key() string {
	switch f {
	case FilterOceanic:
		return "oceanic"
	case FilterIslands:
		return "islands"
	case FilterMarine:
		return "marine"
	default:
		return ""
	}
}

// Data is one operation payload. Exactly one concrete type is carried per
// Spec; a nil Data marks an operation kind unknown to this decoder.
type Data interface {
	Kind() Kind
}

// Resize scales the image to Width x Height. When Rtype is ResizeSeamCarve
// the Filter field is ignored entirely.
type Resize struct {
	Width  uint32
	Height uint32
	Rtype  ResizeType
	Filter SampleFilter
}

// Crop cuts the rectangle spanned by (X1, Y1) and (X2, Y2).
type Crop struct {
	X1 uint32
	Y1 uint32
	X2 uint32
	Y2 uint32
}

// FlipV mirrors the image vertically.
type FlipV struct{}

// FlipH mirrors the image horizontally.
type FlipH struct{}

// Contrast adjusts contrast by a relative amount in [-100, 100].
type Contrast struct {
	Contrast float32
}

// Filter applies a named preset color filter.
type Filter struct {
	Filter FilterName
}

// Watermark overlays the engine's configured watermark image at (X, Y).
type Watermark struct {
	X uint32
	Y uint32
}

func (Resize) Kind() Kind    { return KindResize }
func (Crop) Kind() Kind      { return KindCrop }
func (FlipV) Kind() Kind     { return KindFlipV }
func (FlipH) Kind() Kind     { return KindFlipH }
func (Contrast) Kind() Kind  { return KindContrast }
func (Filter) Kind() Kind    { return KindFilter }
func (Watermark) Kind() Kind { return KindWatermark }

// Spec is a single pipeline step. Data is nil when the encoded operation kind
// is not known to this decoder; engines treat such steps as no-ops.
type Spec struct {
	Data Data
}

// ImageSpec is an ordered pipeline of operations. Order is the execution
// order: later operations observe the pixel state left by earlier ones.
type ImageSpec struct {
	Specs []Spec
}

// New wraps the given operations into a pipeline. The list is taken as-is;
// validation happens at apply time in the engine.
func New(specs ...Spec) ImageSpec {
	return ImageSpec{Specs: specs}
}

// NewResize builds a normal (uniform resampling) resize step.
func NewResize(width, height uint32, filter SampleFilter) Spec {
	return Spec{Data: Resize{
		Width:  width,
		Height: height,
		Rtype:  ResizeNormal,
		Filter: filter,
	}}
}

// NewResizeSeamCarve builds a content-aware resize step. The sampling filter
// has no effect for this resize type and is pinned to Undefined.
func NewResizeSeamCarve(width, height uint32) Spec {
	return Spec{Data: Resize{
		Width:  width,
		Height: height,
		Rtype:  ResizeSeamCarve,
		Filter: SampleFilterUndefined,
	}}
}

// NewCrop builds a crop step for the rectangle (x1, y1)-(x2, y2).
func NewCrop(x1, y1, x2, y2 uint32) Spec {
	return Spec{Data: Crop{X1: x1, Y1: y1, X2: x2, Y2: y2}}
}

// NewFlipV builds a vertical mirror step.
func NewFlipV() Spec {
	return Spec{Data: FlipV{}}
}

// NewFlipH builds a horizontal mirror step.
func NewFlipH() Spec {
	return Spec{Data: FlipH{}}
}

// NewContrast builds a contrast adjustment step.
func NewContrast(contrast float32) Spec {
	return Spec{Data: Contrast{Contrast: contrast}}
}

// NewFilter builds a named color filter step.
func NewFilter(name FilterName) Spec {
	return Spec{Data: Filter{Filter: name}}
}

// NewWatermark builds a watermark overlay step anchored at (x, y).
func NewWatermark(x, y uint32) Spec {
	return Spec{Data: Watermark{X: x, Y: y}}
}
