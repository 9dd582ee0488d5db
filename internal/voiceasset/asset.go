// Package voiceasset manages packed speaker-embedding ("style vector")
// tensors: discovery, shape validation, combined-archive maintenance, and
// weighted blending.
package voiceasset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"regexp"
)

const vectorDim = 256

// ErrInvalidShape is returned when a voice file's byte length does not
// correspond to any of the supported reshape rules.
var ErrInvalidShape = errors.New("voiceasset: invalid shape")

// ErrInvalidName is returned when a voice name fails the naming pattern.
var ErrInvalidName = errors.New("voiceasset: invalid name")

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// ValidateName enforces the [A-Za-z0-9_-]{1,50} naming contract.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Asset is a loaded, shape-validated style matrix: N rows of 256-dim
// float32 vectors, stored row-major and contiguous.
type Asset struct {
	Name   string
	Rows   int
	Matrix []float32 // len == Rows*vectorDim
}

// Dims reports (rows, cols).
func (a *Asset) Dims() (int, int) { return a.Rows, vectorDim }

// decodeFloat32LE interprets raw bytes as little-endian float32 values.
func decodeFloat32LE(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func encodeFloat32LE(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], math.Float32bits(v))
	}
	return out
}

// LoadFromBytes applies the shape-normalization rules to a raw little-
// endian float32 buffer, returning the normalized (rows, 256) asset.
//
//	len == 510*256            -> (510, 256)
//	len == 512*256            -> (512, 256)
//	len == 256                -> (1, 256) tiled to (510, 256), with a warning
//	len % 256 == 0 && len>=256 -> (len/256, 256)
//	otherwise                 -> ErrInvalidShape
func LoadFromBytes(name string, raw []byte, warn func(string)) (*Asset, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("%w: %s: byte length %d not a multiple of 4", ErrInvalidShape, name, len(raw))
	}
	values := decodeFloat32LE(raw)
	n := len(values)

	switch {
	case n == 510*vectorDim:
		return &Asset{Name: name, Rows: 510, Matrix: values}, nil
	case n == 512*vectorDim:
		return &Asset{Name: name, Rows: 512, Matrix: values}, nil
	case n == vectorDim:
		if warn != nil {
			warn(fmt.Sprintf("voice %s had a single style vector, tiling to 510 rows (quality fallback)", name))
		}
		tiled := make([]float32, 510*vectorDim)
		for row := 0; row < 510; row++ {
			copy(tiled[row*vectorDim:(row+1)*vectorDim], values)
		}
		return &Asset{Name: name, Rows: 510, Matrix: tiled}, nil
	case n%vectorDim == 0 && n >= vectorDim:
		return &Asset{Name: name, Rows: n / vectorDim, Matrix: values}, nil
	default:
		return nil, fmt.Errorf("%w: %s: %d floats is not a multiple of %d", ErrInvalidShape, name, n, vectorDim)
	}
}
