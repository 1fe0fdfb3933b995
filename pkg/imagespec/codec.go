package imagespec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrInvalidBase64 is returned when a token is not valid URL-safe base64.
	ErrInvalidBase64 = errors.New("token is not valid url-safe base64")

	// ErrMalformedWireBytes is returned when decoded token bytes do not parse
	// as a well-formed ImageSpec.
	ErrMalformedWireBytes = errors.New("malformed wire bytes")
)

// Field numbers of the wire format. ImageSpec carries repeated Spec records
// under fieldSpecs; each Spec record carries exactly one payload under the
// field number equal to its Kind.
const fieldSpecs = 1

// Encode serializes the pipeline to its canonical wire form and wraps it in
// an unpadded URL-safe base64 token. Identical pipelines always produce
// identical tokens: fields are emitted in field-number order and zero-valued
// scalars are omitted.
func Encode(spec ImageSpec) string {
	return base64.RawURLEncoding.EncodeToString(Marshal(spec))
}

// Decode parses a token produced by Encode (possibly by a newer encoder).
// Operation kinds unknown to this decoder yield a Spec with nil Data rather
// than an error; interpreting such steps is the engine's concern.
func Decode(token string) (ImageSpec, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ImageSpec{}, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}

	spec, err := Unmarshal(data)
	if err != nil {
		return ImageSpec{}, err
	}

	return spec, nil
}

// Marshal serializes the pipeline to protobuf wire bytes.
func Marshal(spec ImageSpec) []byte {
	var b []byte
	for _, s := range spec.Specs {
		b = protowire.AppendTag(b, fieldSpecs, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalSpec(s))
	}

	return b
}

func marshalSpec(s Spec) []byte {
	if s.Data == nil {
		return nil
	}

	var b []byte
	b = protowire.AppendTag(b, protowire.Number(s.Data.Kind()), protowire.BytesType)
	b = protowire.AppendBytes(b, marshalData(s.Data))

	return b
}

func marshalData(d Data) []byte {
	var b []byte

	switch op := d.(type) {
	case Resize:
		b = appendUint32(b, 1, op.Width)
		b = appendUint32(b, 2, op.Height)
		b = appendUint32(b, 3, uint32(op.Rtype))
		b = appendUint32(b, 4, uint32(op.Filter))
	case Crop:
		b = appendUint32(b, 1, op.X1)
		b = appendUint32(b, 2, op.Y1)
		b = appendUint32(b, 3, op.X2)
		b = appendUint32(b, 4, op.Y2)
	case FlipV, FlipH:
		// No fields.
	case Contrast:
		if op.Contrast != 0 {
			b = protowire.AppendTag(b, 1, protowire.Fixed32Type)
			b = protowire.AppendFixed32(b, math.Float32bits(op.Contrast))
		}
	case Filter:
		b = appendUint32(b, 1, uint32(op.Filter))
	case Watermark:
		b = appendUint32(b, 1, op.X)
		b = appendUint32(b, 2, op.Y)
	}

	return b
}

// appendUint32 emits a varint field, omitting it when zero.
func appendUint32(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}

	b = protowire.AppendTag(b, num, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v))

	return b
}

// Unmarshal parses protobuf wire bytes into a pipeline.
func Unmarshal(data []byte) (ImageSpec, error) {
	var spec ImageSpec

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ImageSpec{}, fmt.Errorf("%w: %v", ErrMalformedWireBytes, protowire.ParseError(n))
		}
		data = data[n:]

		if num == fieldSpecs && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return ImageSpec{}, fmt.Errorf("%w: %v", ErrMalformedWireBytes, protowire.ParseError(n))
			}
			data = data[n:]

			s, err := unmarshalSpec(v)
			if err != nil {
				return ImageSpec{}, err
			}
			spec.Specs = append(spec.Specs, s)

			continue
		}

		// Unknown top-level field: skip, stay decodable.
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return ImageSpec{}, fmt.Errorf("%w: %v", ErrMalformedWireBytes, protowire.ParseError(n))
		}
		data = data[n:]
	}

	return spec, nil
}

func unmarshalSpec(data []byte) (Spec, error) {
	var s Spec

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Spec{}, fmt.Errorf("%w: %v", ErrMalformedWireBytes, protowire.ParseError(n))
		}
		data = data[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Spec{}, fmt.Errorf("%w: %v", ErrMalformedWireBytes, protowire.ParseError(n))
			}
			data = data[n:]

			continue
		}

		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return Spec{}, fmt.Errorf("%w: %v", ErrMalformedWireBytes, protowire.ParseError(n))
		}
		data = data[n:]

		d, err := unmarshalData(Kind(num), v)
		if err != nil {
			return Spec{}, err
		}

		// A kind introduced by a newer encoder parses as nil Data; the spec
		// entry survives decode and the engine skips it.
		s.Data = d
	}

	return s, nil
}

func unmarshalData(kind Kind, data []byte) (Data, error) {
	switch kind {
	case KindResize:
		var op Resize
		err := parseFields(data, func(num protowire.Number, v uint64) {
			switch num {
			case 1:
				op.Width = uint32(v)
			case 2:
				op.Height = uint32(v)
			case 3:
				op.Rtype = ResizeType(v)
			case 4:
				op.Filter = SampleFilter(v)
			}
		})
		return op, err
	case KindCrop:
		var op Crop
		err := parseFields(data, func(num protowire.Number, v uint64) {
			switch num {
			case 1:
				op.X1 = uint32(v)
			case 2:
				op.Y1 = uint32(v)
			case 3:
				op.X2 = uint32(v)
			case 4:
				op.Y2 = uint32(v)
			}
		})
		return op, err
	case KindFlipV:
		return FlipV{}, checkEmpty(data)
	case KindFlipH:
		return FlipH{}, checkEmpty(data)
	case KindContrast:
		var op Contrast
		err := parseFields(data, func(num protowire.Number, v uint64) {
			if num == 1 {
				op.Contrast = math.Float32frombits(uint32(v))
			}
		})
		return op, err
	case KindFilter:
		var op Filter
		err := parseFields(data, func(num protowire.Number, v uint64) {
			if num == 1 {
				op.Filter = FilterName(v)
			}
		})
		return op, err
	case KindWatermark:
		var op Watermark
		err := parseFields(data, func(num protowire.Number, v uint64) {
			switch num {
			case 1:
				op.X = uint32(v)
			case 2:
				op.Y = uint32(v)
			}
		})
		return op, err
	default:
		return nil, checkWellFormed(data)
	}
}

// parseFields walks the scalar fields of a payload, reporting varint and
// fixed32 values to set. Other wire types are skipped.
func parseFields(data []byte, set func(num protowire.Number, v uint64)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedWireBytes, protowire.ParseError(n))
		}
		data = data[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformedWireBytes, protowire.ParseError(n))
			}
			data = data[n:]
			set(num, v)
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformedWireBytes, protowire.ParseError(n))
			}
			data = data[n:]
			set(num, uint64(v))
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformedWireBytes, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	return nil
}

func checkEmpty(data []byte) error {
	// Tolerate fields added to a payload that currently has none.
	return checkWellFormed(data)
}

// checkWellFormed verifies the bytes are structurally valid protobuf without
// interpreting any field.
func checkWellFormed(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedWireBytes, protowire.ParseError(n))
		}
		data = data[n:]

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedWireBytes, protowire.ParseError(n))
		}
		data = data[n:]
	}

	return nil
}
