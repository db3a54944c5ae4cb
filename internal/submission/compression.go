// internal/submission/compression.go
package submission

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/xkilldash9x/crashreporter/internal/config"
)

// nopWriteCloser lets the uncompressed path share the compressor code path.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// newBodyEncoder wraps w with the configured compressor. It returns the
// Content-Encoding value to send, empty for identity.
func newBodyEncoder(w io.Writer, c config.Compression) (io.WriteCloser, string, error) {
	switch c {
	case config.CompressionNone, "":
		return nopWriteCloser{w}, "", nil
	case config.CompressionGzip:
		return gzip.NewWriter(w), "gzip", nil
	case config.CompressionBrotli:
		return brotli.NewWriterLevel(w, brotli.DefaultCompression), "br", nil
	default:
		return nil, "", fmt.Errorf("unsupported compression %q", c)
	}
}

// NewBodyDecoder is the inverse of the client's encoder, keyed by the
// Content-Encoding header value.
func NewBodyDecoder(r io.Reader, contentEncoding string) (io.ReadCloser, error) {
	switch contentEncoding {
	case "", "identity":
		return io.NopCloser(r), nil
	case "gzip":
		return gzip.NewReader(r)
	case "br":
		return io.NopCloser(brotli.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", contentEncoding)
	}
}
