package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

var ErrDecompress = errors.New("compress: decompress payload")

// Decompressor turns a flagged payload back into plain bytes.
type Decompressor interface {
	Decompress(payload []byte) ([]byte, error)
}

// DecompressorFunc adapts a function to Decompressor.
type DecompressorFunc func(payload []byte) ([]byte, error)

func (f DecompressorFunc) Decompress(payload []byte) ([]byte, error) {
	return f(payload)
}

// Zlib handles zlib-wrapped DEFLATE payloads.
type Zlib struct {
	// MaxSize caps the inflated size; 0 means unlimited.
	MaxSize int64
}

func (z Zlib) Decompress(payload []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	defer r.Close()

	var src io.Reader = r
	if z.MaxSize > 0 {
		src = io.LimitReader(r, z.MaxSize+1)
	}
	out, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	if z.MaxSize > 0 && int64(len(out)) > z.MaxSize {
		return nil, fmt.Errorf("%w: inflated size exceeds %d bytes", ErrDecompress, z.MaxSize)
	}
	return out, nil
}

// Compress is the inverse of Zlib.Decompress; used by tools and tests.
func Compress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
