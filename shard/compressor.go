package shard

import (
	"bytes"
	"fmt"
	"io/ioutil"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
)

// Supported compression algorithms for shard arrays
const (
	CompressionNone = "none"
	CompressionLZ4  = "lz4"
	CompressionZstd = "zstd"
)

// Compressor compresses shard array data. Compressors are not safe for concurrent use.
type Compressor interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	// Close releases any resources held by the Compressor
	Close()
}

// NewCompressor instantiates a Compressor by name. The empty name means CompressionNone.
func NewCompressor(name string) (Compressor, error) {
	switch name {
	case "", CompressionNone:
		return noneCompressor{}, nil
	case CompressionLZ4:
		return newLZ4Compressor(), nil
	case CompressionZstd:
		return newZstdCompressor()
	default:
		return nil, fmt.Errorf("unsupported shard compression %q", name)
	}
}

type noneCompressor struct{}

func (noneCompressor) Name() string                           { return CompressionNone }
func (noneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (noneCompressor) Close()                                 {}

// lz4Compressor is a Compressor which uses the lz4 frame format
type lz4Compressor struct {
	compressor          *lz4.Writer
	decompressor        *lz4.Reader
	reusableWriteBuffer *bytes.Buffer
}

func newLZ4Compressor() *lz4Compressor {
	return &lz4Compressor{
		compressor:          lz4.NewWriter(new(bytes.Buffer)),
		decompressor:        lz4.NewReader(new(bytes.Buffer)),
		reusableWriteBuffer: new(bytes.Buffer),
	}
}

func (c *lz4Compressor) Name() string {
	return CompressionLZ4
}

func (c *lz4Compressor) Compress(data []byte) ([]byte, error) {
	c.reusableWriteBuffer.Reset()
	c.compressor.Reset(c.reusableWriteBuffer)
	if _, err := c.compressor.Write(data); err != nil {
		return nil, fmt.Errorf("unable to compress shard data: %w", err)
	}
	if err := c.compressor.Close(); err != nil {
		return nil, fmt.Errorf("unable to compress shard data: %w", err)
	}
	return append([]byte{}, c.reusableWriteBuffer.Bytes()...), nil
}

func (c *lz4Compressor) Decompress(data []byte) ([]byte, error) {
	c.decompressor.Reset(bytes.NewReader(data))
	out, err := ioutil.ReadAll(c.decompressor)
	if err != nil {
		return nil, fmt.Errorf("unable to decompress shard data: %w", err)
	}
	return out, nil
}

func (c *lz4Compressor) Close() {}

// zstdCompressor is a Compressor which uses zstd
type zstdCompressor struct {
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

func newZstdCompressor() (*zstdCompressor, error) {
	compressor, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("unable to initialize compressor: %w", err)
	}
	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		compressor.Close()
		return nil, fmt.Errorf("unable to initialize decompressor: %w", err)
	}
	return &zstdCompressor{compressor: compressor, decompressor: decompressor}, nil
}

func (c *zstdCompressor) Name() string {
	return CompressionZstd
}

func (c *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return c.compressor.EncodeAll(data, nil), nil
}

func (c *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := c.decompressor.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to decompress shard data: %w", err)
	}
	return out, nil
}

func (c *zstdCompressor) Close() {
	c.compressor.Close()
	c.decompressor.Close()
}
