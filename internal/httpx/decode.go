package httpx

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

const acceptEncoding = "br, gzip"

// readBody reads and closes resp.Body, undoing Content-Encoding. Setting
// Accept-Encoding ourselves turns off the transport's transparent gzip, so both
// encodings are handled here.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	switch enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("httpx: gzip body: %w", err)
		}
		defer gz.Close()
		r = gz
	default:
		return nil, fmt.Errorf("httpx: unsupported content encoding %q", enc)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return body, err
	}
	// drain whatever the decoder left so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	return body, nil
}
