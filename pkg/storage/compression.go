package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

// Compressor encodes float64 columns of a reference table.
type Compressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressor creates a new compressor. Levels 1 to 4 map to the zstd
// speed presets from fastest to best compression.
func NewCompressor(level int) (*Compressor, error) {
	var encLevel zstd.EncoderLevel
	switch level {
	case 1:
		encLevel = zstd.SpeedFastest
	case 2:
		encLevel = zstd.SpeedDefault
	case 3:
		encLevel = zstd.SpeedBetterCompression
	case 4:
		encLevel = zstd.SpeedBestCompression
	default:
		return nil, fmt.Errorf("compression level must be between 1 and 4, got %d", level)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &Compressor{
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// CompressColumn XOR-encodes each value against its predecessor and
// compresses the result with zstd. Simulation outputs change slowly between
// samples, so most XOR words are mostly zero bits. NaN payloads survive
// bit-exactly.
func (c *Compressor) CompressColumn(values []float64) []byte {
	if len(values) == 0 {
		return nil
	}

	raw := make([]byte, 8*len(values))
	var prev uint64
	for i, v := range values {
		bits := math.Float64bits(v)
		binary.LittleEndian.PutUint64(raw[8*i:], bits^prev)
		prev = bits
	}

	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))
}

// DecompressColumn reverses CompressColumn. count must match the number of
// encoded values.
func (c *Compressor) DecompressColumn(data []byte, count int) ([]float64, error) {
	if count == 0 {
		return []float64{}, nil
	}

	raw, err := c.decoder.DecodeAll(data, make([]byte, 0, 8*count))
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}
	if len(raw) != 8*count {
		return nil, fmt.Errorf("column holds %d bytes, expected %d values", len(raw), count)
	}

	values := make([]float64, count)
	var prev uint64
	for i := range values {
		bits := binary.LittleEndian.Uint64(raw[8*i:]) ^ prev
		values[i] = math.Float64frombits(bits)
		prev = bits
	}

	return values, nil
}

// Close releases the encoder and decoder.
func (c *Compressor) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}
