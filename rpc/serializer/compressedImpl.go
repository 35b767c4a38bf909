package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names a compression algorithm for NewCompressedSerializer
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionSnappy Compression = "snappy"
	CompressionZstd   Compression = "zstd"
	CompressionLZ4    Compression = "lz4"
)

// Markers written as the first byte of every compressed payload
const (
	markerRaw byte = iota
	markerSnappy
	markerZstd
	markerLZ4
)

// minCompressSize is the payload size below which messages are sent raw
const minCompressSize = 256

// maxDecompressedSize bounds the size of a single decompressed message
const maxDecompressedSize = 256 << 20

// zstd encoders and decoders are safe for concurrent use with EncodeAll/DecodeAll
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0), zstd.WithDecoderMaxMemory(maxDecompressedSize))
)

// NewCompressedSerializer wraps a serializer and compresses its output.
// Deserialize accepts payloads of every algorithm, so peers may use
// different settings.
func NewCompressedSerializer(inner IRPCSerializer, compression Compression) (IRPCSerializer, error) {
	var marker byte
	switch compression {
	case CompressionNone, "":
		return inner, nil
	case CompressionSnappy:
		marker = markerSnappy
	case CompressionZstd:
		marker = markerZstd
	case CompressionLZ4:
		marker = markerLZ4
	default:
		return nil, fmt.Errorf("invalid compression %s", compression)
	}
	return &compressedSerializerImpl{inner: inner, marker: marker}, nil
}

// compressedSerializerImpl decorates an IRPCSerializer with block compression
type compressedSerializerImpl struct {
	inner  IRPCSerializer
	marker byte
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (c *compressedSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	raw, err := c.inner.Serialize(msg)
	if err != nil {
		return nil, err
	}
	if len(raw) < minCompressSize {
		return append([]byte{markerRaw}, raw...), nil
	}

	switch c.marker {
	case markerSnappy:
		return append([]byte{markerSnappy}, snappy.Encode(nil, raw)...), nil

	case markerZstd:
		return zstdEncoder.EncodeAll(raw, []byte{markerZstd}), nil

	case markerLZ4:
		// marker + uncompressed length + block
		buf := make([]byte, 5+lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf[5:], nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compression failed: %w", err)
		}
		if n == 0 {
			// incompressible
			return append([]byte{markerRaw}, raw...), nil
		}
		buf[0] = markerLZ4
		binary.BigEndian.PutUint32(buf[1:5], uint32(len(raw)))
		return buf[:5+n], nil
	}
	return nil, fmt.Errorf("invalid compression marker %d", c.marker)
}

func (c *compressedSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	if len(b) == 0 {
		return fmt.Errorf("data too short for compression marker")
	}

	var raw []byte
	var err error
	switch b[0] {
	case markerRaw:
		raw = b[1:]

	case markerSnappy:
		raw, err = snappy.Decode(nil, b[1:])

	case markerZstd:
		raw, err = zstdDecoder.DecodeAll(b[1:], nil)

	case markerLZ4:
		if len(b) < 5 {
			return fmt.Errorf("data too short for lz4 header")
		}
		size := binary.BigEndian.Uint32(b[1:5])
		if size > maxDecompressedSize {
			return fmt.Errorf("lz4 payload of %d bytes exceeds limit", size)
		}
		raw = make([]byte, size)
		var n int
		n, err = lz4.UncompressBlock(b[5:], raw)
		raw = raw[:n]

	default:
		return fmt.Errorf("unknown compression marker %d", b[0])
	}
	if err != nil {
		return fmt.Errorf("failed to decompress message: %w", err)
	}

	return c.inner.Deserialize(raw, msg)
}
