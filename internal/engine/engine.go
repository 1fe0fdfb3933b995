// Package engine renders decoded image pipelines. An engine is a single-use
// object: it is loaded with source pixels, applies operations strictly in
// pipeline order, and finalizes output bytes exactly once.
package engine

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"

	"github.com/aliskhannn/pixor/pkg/imagespec"
)

var (
	// ErrUnsupportedSourceFormat is returned when source bytes cannot be
	// decoded into a pixel buffer.
	ErrUnsupportedSourceFormat = errors.New("unsupported source image format")

	// ErrOutOfRangeDimensions is returned when an operation requests zero or
	// excessive width or height.
	ErrOutOfRangeDimensions = errors.New("dimensions out of range")

	// ErrEngineConsumed is returned when Apply or Generate is called after
	// Generate has already finalized the engine.
	ErrEngineConsumed = errors.New("engine already consumed")
)

// Engine applies a decoded pipeline to an in-memory image and finalizes it
// into encoded output bytes. Implementations are not safe for concurrent use;
// a server runs one engine per request.
type Engine interface {
	// Apply executes each spec strictly in order, mutating the image state.
	// Specs with an unrecognized or unspecified operation are skipped, never
	// rejected: older engines must survive tokens from newer encoders.
	Apply(specs []imagespec.Spec) error

	// Generate encodes the current image state into the requested container
	// format and consumes the engine. Any call after Generate fails with
	// ErrEngineConsumed.
	Generate(format imaging.Format) ([]byte, error)
}

// Transform applies a single operation payload to an image and returns the
// resulting image. Registering a Transform for a new operation kind extends
// an engine without touching its dispatch loop.
type Transform func(img image.Image, op imagespec.Data) (image.Image, error)
