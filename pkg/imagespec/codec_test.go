package imagespec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		spec ImageSpec
	}{
		{
			name: "empty pipeline",
			spec: New(),
		},
		{
			name: "resize and filter",
			spec: New(
				NewResize(600, 600, SampleFilterCatmullRom),
				NewFilter(FilterMarine),
			),
		},
		{
			name: "seam carve",
			spec: New(NewResizeSeamCarve(800, 600)),
		},
		{
			name: "every operation kind",
			spec: New(
				NewResize(1024, 768, SampleFilterLanczos3),
				NewCrop(10, 20, 500, 400),
				NewFlipV(),
				NewFlipH(),
				NewContrast(25.5),
				NewFilter(FilterOceanic),
				NewWatermark(30, 40),
			),
		},
		{
			name: "zero-valued fields",
			spec: New(
				NewResize(0, 0, SampleFilterUndefined),
				NewFilter(FilterUnspecified),
				NewContrast(0),
				NewWatermark(0, 0),
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := Encode(tt.spec)

			got, err := Decode(token)
			if err != nil {
				t.Fatalf("Decode(%q) failed: %v", token, err)
			}

			if !reflect.DeepEqual(got, tt.spec) {
				t.Errorf("round trip mismatch: got %+v, want %+v", got, tt.spec)
			}

			// Byte-exact: re-encoding the decoded value must reproduce the token.
			if again := Encode(got); again != token {
				t.Errorf("re-encoded token %q differs from original %q", again, token)
			}
		})
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	spec := New(
		NewResize(600, 600, SampleFilterCatmullRom),
		NewFilter(FilterMarine),
	)

	first := Encode(spec)
	for i := 0; i < 10; i++ {
		if got := Encode(spec); got != first {
			t.Fatalf("encoding is not deterministic: %q vs %q", got, first)
		}
	}
}

func TestTokenCharset(t *testing.T) {
	spec := New(
		NewResize(1920, 1080, SampleFilterGaussian),
		NewCrop(0, 0, 999, 999),
		NewContrast(-42.25),
		NewFilter(FilterIslands),
	)

	token := Encode(spec)
	if token == "" {
		t.Fatal("token is empty")
	}

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	for i, r := range token {
		if !strings.ContainsRune(alphabet, r) {
			t.Errorf("token contains non-url-safe character %q at index %d", r, i)
		}
	}
	for _, forbidden := range "+/=" {
		if strings.ContainsRune(token, forbidden) {
			t.Errorf("token contains forbidden character %q", forbidden)
		}
	}
}

func TestEncodeIsOrderSensitive(t *testing.T) {
	a := New(
		NewResize(600, 600, SampleFilterCatmullRom),
		NewFilter(FilterMarine),
	)
	b := New(
		NewFilter(FilterMarine),
		NewResize(600, 600, SampleFilterCatmullRom),
	)

	if bytes.Equal(Marshal(a), Marshal(b)) {
		t.Error("reordered pipelines produced identical wire bytes")
	}
	if Encode(a) == Encode(b) {
		t.Error("reordered pipelines produced identical tokens")
	}
}

func TestDecodeInvalidBase64(t *testing.T) {
	for _, token := range []string{
		"not a valid token!!",
		"abc+def/ghi=",
		"%%%",
	} {
		_, err := Decode(token)
		if !errors.Is(err, ErrInvalidBase64) {
			t.Errorf("Decode(%q) = %v, want ErrInvalidBase64", token, err)
		}
	}
}

func TestDecodeMalformedWireBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{
			// Field 1, bytes type, declared length far past the buffer end.
			name: "truncated length prefix",
			data: []byte{0x0a, 0x7f, 0x01},
		},
		{
			// Field 1, fixed64 type with only two payload bytes.
			name: "truncated fixed64",
			data: []byte{0x09, 0x01, 0x02},
		},
		{
			// A lone continuation byte is not a complete tag varint.
			name: "dangling varint",
			data: []byte{0x80},
		},
		{
			// Valid outer record whose spec payload is a truncated tag.
			name: "malformed nested spec",
			data: []byte{0x0a, 0x01, 0x80},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := base64.RawURLEncoding.EncodeToString(tt.data)

			_, err := Decode(token)
			if !errors.Is(err, ErrMalformedWireBytes) {
				t.Errorf("Decode(%q) = %v, want ErrMalformedWireBytes", token, err)
			}
		})
	}
}

func TestDecodeUnknownOperationKind(t *testing.T) {
	// A spec record carrying oneof field 42 — an operation kind this decoder
	// has never heard of. Decode must tolerate it and yield a nil-Data step.
	inner := []byte{0xd2, 0x02, 0x02, 0x08, 0x07} // field 42, bytes, payload {field 1 varint 7}
	outer := append([]byte{0x0a, byte(len(inner))}, inner...)

	token := base64.RawURLEncoding.EncodeToString(outer)

	spec, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode failed on unknown operation kind: %v", err)
	}
	if len(spec.Specs) != 1 {
		t.Fatalf("got %d specs, want 1", len(spec.Specs))
	}
	if spec.Specs[0].Data != nil {
		t.Errorf("unknown kind decoded to %T, want nil Data", spec.Specs[0].Data)
	}
}

func TestDecodeMixedKnownAndUnknown(t *testing.T) {
	known := Marshal(New(NewFilter(FilterMarine)))

	unknown := []byte{0xd2, 0x02, 0x02, 0x08, 0x07}
	record := append([]byte{0x0a, byte(len(unknown))}, unknown...)

	token := base64.RawURLEncoding.EncodeToString(append(known, record...))

	spec, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(spec.Specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(spec.Specs))
	}
	if got, ok := spec.Specs[0].Data.(Filter); !ok || got.Filter != FilterMarine {
		t.Errorf("first spec = %+v, want Filter{Marine}", spec.Specs[0].Data)
	}
	if spec.Specs[1].Data != nil {
		t.Errorf("second spec = %+v, want nil Data", spec.Specs[1].Data)
	}
}
