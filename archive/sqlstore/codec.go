package sqlstore

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/cwbudde/algo-mstransform/archive"
)

// Blob tags. Cell columns use their archive.Column value.
const (
	tagWeight = 0x40
	tagSigma  = 0x41
)

// codec packs the per-row arrays of a row into one compressed blob:
// a sequence of (tag uint8, count uint32, payload) records.
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("sqlstore: zstd decoder: %w", err)
	}

	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) close() {
	c.enc.Close()
	c.dec.Close()
}

func (c *codec) compress(raw []byte) []byte {
	return c.enc.EncodeAll(raw, nil)
}

func (c *codec) decompress(blob []byte) ([]byte, error) {
	raw, err := c.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCell, err)
	}

	return raw, nil
}

func (c *codec) encode(r *archive.Row) []byte {
	var b []byte

	b = appendFloats(b, tagWeight, r.Weight)
	b = appendFloats(b, tagSigma, r.Sigma)
	for _, col := range []archive.Column{archive.ColData, archive.ColCorrected, archive.ColModel, archive.ColLagData} {
		b = appendComplex(b, byte(col), r.Visibility(col))
	}
	b = appendFloats(b, byte(archive.ColFloatData), r.FloatData)
	b = appendBools(b, byte(archive.ColFlag), r.Flag)
	b = appendFloats(b, byte(archive.ColWeightSpectrum), r.WeightSpectrum)
	b = appendFloats(b, byte(archive.ColSigmaSpectrum), r.SigmaSpectrum)

	return c.compress(b)
}

func (c *codec) decode(blob []byte, r *archive.Row) error {
	b, err := c.decompress(blob)
	if err != nil {
		return err
	}

	for len(b) > 0 {
		if len(b) < 5 {
			return fmt.Errorf("%w: truncated header", ErrCorruptCell)
		}
		tag := b[0]
		n := int(binary.LittleEndian.Uint32(b[1:5]))
		b = b[5:]

		switch tag {
		case tagWeight:
			r.Weight, b, err = readFloats(b, n)
		case tagSigma:
			r.Sigma, b, err = readFloats(b, n)
		case byte(archive.ColData), byte(archive.ColCorrected), byte(archive.ColModel), byte(archive.ColLagData):
			var v []complex64
			v, b, err = readComplex(b, n)
			r.SetVisibility(archive.Column(tag), v)
		case byte(archive.ColFloatData):
			r.FloatData, b, err = readFloats(b, n)
		case byte(archive.ColFlag):
			r.Flag, b, err = readBools(b, n)
		case byte(archive.ColWeightSpectrum):
			r.WeightSpectrum, b, err = readFloats(b, n)
		case byte(archive.ColSigmaSpectrum):
			r.SigmaSpectrum, b, err = readFloats(b, n)
		default:
			return fmt.Errorf("%w: tag %#x", ErrCorruptCell, tag)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func header(b []byte, tag byte, n int) []byte {
	b = append(b, tag)
	return binary.LittleEndian.AppendUint32(b, uint32(n))
}

func appendFloats(b []byte, tag byte, v []float32) []byte {
	if v == nil {
		return b
	}
	b = header(b, tag, len(v))
	for _, x := range v {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(x))
	}

	return b
}

func appendComplex(b []byte, tag byte, v []complex64) []byte {
	if v == nil {
		return b
	}
	b = header(b, tag, len(v))
	for _, x := range v {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(real(x)))
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(imag(x)))
	}

	return b
}

func appendBools(b []byte, tag byte, v []bool) []byte {
	if v == nil {
		return b
	}
	b = header(b, tag, len(v))
	for _, x := range v {
		if x {
			b = append(b, 1)
		} else {
			b = append(b, 0)
		}
	}

	return b
}

func readFloats(b []byte, n int) ([]float32, []byte, error) {
	if len(b) < 4*n {
		return nil, nil, fmt.Errorf("%w: short float payload", ErrCorruptCell)
	}

	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}

	return v, b[4*n:], nil
}

func readComplex(b []byte, n int) ([]complex64, []byte, error) {
	if len(b) < 8*n {
		return nil, nil, fmt.Errorf("%w: short complex payload", ErrCorruptCell)
	}

	v := make([]complex64, n)
	for i := range v {
		re := math.Float32frombits(binary.LittleEndian.Uint32(b[8*i:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(b[8*i+4:]))
		v[i] = complex(re, im)
	}

	return v, b[8*n:], nil
}

func readBools(b []byte, n int) ([]bool, []byte, error) {
	if len(b) < n {
		return nil, nil, fmt.Errorf("%w: short flag payload", ErrCorruptCell)
	}

	v := make([]bool, n)
	for i := range v {
		v[i] = b[i] != 0
	}

	return v, b[n:], nil
}
