package network

import (
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// acceptedEncodings is what the middleware advertises; every entry must have
// a decoder in newDecoder.
const acceptedEncodings = "gzip, deflate, br"

// CompressionMiddleware is an http.RoundTripper that negotiates response
// compression and hands decoded bodies upstream. The transport's built-in
// gzip support stays disabled so one code path owns every encoding,
// including brotli, which the intel dashboard prefers.
type CompressionMiddleware struct {
	Transport http.RoundTripper
}

// NewCompressionMiddleware wraps transport, defaulting to
// http.DefaultTransport when nil.
func NewCompressionMiddleware(transport http.RoundTripper) *CompressionMiddleware {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &CompressionMiddleware{Transport: transport}
}

// RoundTrip executes the request and transparently decodes the response
// body.
func (cm *CompressionMiddleware) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", acceptedEncodings)
	}

	resp, err := cm.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := DecompressResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to decompress response: %w", err)
	}
	return resp, nil
}

// DecompressResponse swaps the body for a decoding reader when the response
// carries a Content-Encoding, and rewrites the headers to match the decoded
// state.
func DecompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	encoding := strings.ToLower(resp.Header.Get("Content-Encoding"))
	if encoding == "" {
		return nil
	}

	reader, err := newDecoder(encoding, resp.Body)
	if err != nil {
		return err
	}

	resp.Body = &closeWrapper{ReadCloser: reader, originalBody: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// newDecoder builds the decoding reader for one Content-Encoding value.
func newDecoder(encoding string, body io.Reader) (io.ReadCloser, error) {
	switch encoding {
	case "gzip":
		reader, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip error: %w", err)
		}
		return reader, nil
	case "deflate":
		// Servers almost always send zlib-wrapped deflate.
		reader, err := zlib.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("deflate error: %w", err)
		}
		return reader, nil
	case "br":
		// brotli.Reader has no Close; the wrapper still closes the
		// underlying body.
		return io.NopCloser(brotli.NewReader(body)), nil
	default:
		return nil, fmt.Errorf("unsupported Content-Encoding: %s", encoding)
	}
}

// closeWrapper closes both the decoding reader and the network body it
// wraps.
type closeWrapper struct {
	io.ReadCloser
	originalBody io.ReadCloser
}

func (w *closeWrapper) Close() error {
	err1 := w.ReadCloser.Close()
	err2 := w.originalBody.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
