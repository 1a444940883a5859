// Package compression encodes item API responses with brotli or gzip.
package compression

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/nimburion/itemservice/pkg/server/router"
)

const (
	encodingBrotli = "br"
	encodingGzip   = "gzip"

	defaultBrotliLevel = 4
)

// Config selects the encodings offered and which responses get encoded.
type Config struct {
	Enabled     bool
	Brotli      bool
	Gzip        bool
	GzipLevel   int
	BrotliLevel int
	// MinSize is the smallest body, in bytes, that is encoded.
	MinSize int
	// ContentTypes are media type prefixes eligible for encoding.
	ContentTypes []string
}

// DefaultConfig encodes JSON and text bodies of at least 256 bytes, preferring brotli.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		Brotli:       true,
		Gzip:         true,
		GzipLevel:    gzip.DefaultCompression,
		BrotliLevel:  defaultBrotliLevel,
		MinSize:      256,
		ContentTypes: []string{"application/json", "text/"},
	}
}

func (cfg Config) offered() []string {
	var encodings []string
	if cfg.Brotli {
		encodings = append(encodings, encodingBrotli)
	}
	if cfg.Gzip {
		encodings = append(encodings, encodingGzip)
	}
	return encodings
}

// Middleware negotiates Accept-Encoding and encodes the response when the
// client accepts one of the offered encodings. The body is held back until
// MinSize bytes are written or the handler returns, so small answers and
// error bodies go out unencoded. HEAD requests pass through.
func Middleware(cfg Config) router.MiddlewareFunc {
	if !cfg.Enabled || len(cfg.offered()) == 0 {
		return func(next router.HandlerFunc) router.HandlerFunc { return next }
	}
	if len(cfg.ContentTypes) == 0 {
		cfg.ContentTypes = DefaultConfig().ContentTypes
	}
	if cfg.GzipLevel == 0 {
		cfg.GzipLevel = gzip.DefaultCompression
	}
	if cfg.BrotliLevel <= 0 {
		cfg.BrotliLevel = defaultBrotliLevel
	}
	cfg.MinSize = max(cfg.MinSize, 0)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if req.Method == http.MethodHead {
				return next(c)
			}
			encoding := negotiate(req.Header.Get("Accept-Encoding"), cfg.offered())
			if encoding == "" {
				return next(c)
			}

			base := c.Response()
			addVary(base.Header(), "Accept-Encoding")
			w := &encodingWriter{base: base, encoding: encoding, cfg: cfg}
			c.SetResponse(w)
			defer c.SetResponse(base)

			err := next(c)
			if closeErr := w.Close(); err == nil {
				err = closeErr
			}
			return err
		}
	}
}

// negotiate returns the offered encoding with the highest q-value, the
// earlier one on ties, or "" when none is acceptable.
func negotiate(header string, offered []string) string {
	if header == "" {
		return ""
	}
	weights := make(map[string]float64)
	for part := range strings.SplitSeq(header, ",") {
		name, params, _ := strings.Cut(part, ";")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		weight := 1.0
		if v, ok := strings.CutPrefix(strings.ReplaceAll(params, " ", ""), "q="); ok {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				weight = parsed
			}
		}
		weights[name] = weight
	}

	best, bestWeight := "", 0.0
	for _, encoding := range offered {
		weight, ok := weights[encoding]
		if !ok {
			weight = weights["*"]
		}
		if weight > bestWeight {
			best, bestWeight = encoding, weight
		}
	}
	return best
}

func addVary(h http.Header, value string) {
	for _, v := range h.Values("Vary") {
		for field := range strings.SplitSeq(v, ",") {
			if strings.EqualFold(strings.TrimSpace(field), value) {
				return
			}
		}
	}
	h.Add("Vary", value)
}

func eligible(contentType string, prefixes []string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType == "" {
		return false
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(contentType, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

func bodyAllowed(status int) bool {
	return status >= http.StatusOK && status != http.StatusNoContent && status != http.StatusNotModified
}

// encodingWriter buffers the first MinSize bytes, then commits to plain or
// encoded output.
type encodingWriter struct {
	base     router.ResponseWriter
	encoding string
	cfg      Config

	status  int
	buf     bytes.Buffer
	decided bool
	enc     io.WriteCloser
}

func (w *encodingWriter) Header() http.Header { return w.base.Header() }

func (w *encodingWriter) WriteHeader(code int) {
	if w.status != 0 {
		return
	}
	w.status = code
	if !bodyAllowed(code) {
		w.decided = true
		w.base.WriteHeader(code)
	}
}

func (w *encodingWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if w.decided {
		if w.enc != nil {
			return w.enc.Write(p)
		}
		return w.base.Write(p)
	}

	w.buf.Write(p)
	if w.buf.Len() < w.cfg.MinSize {
		return len(p), nil
	}
	if err := w.decide(); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *encodingWriter) decide() error {
	w.decided = true
	h := w.base.Header()
	if w.buf.Len() >= w.cfg.MinSize && w.buf.Len() > 0 &&
		h.Get("Content-Encoding") == "" && eligible(h.Get("Content-Type"), w.cfg.ContentTypes) {
		h.Del("Content-Length")
		h.Set("Content-Encoding", w.encoding)
		w.enc = w.newEncoder()
	}
	w.base.WriteHeader(w.Status())

	if w.buf.Len() == 0 {
		return nil
	}
	var err error
	if w.enc != nil {
		_, err = w.enc.Write(w.buf.Bytes())
	} else {
		_, err = w.base.Write(w.buf.Bytes())
	}
	w.buf.Reset()
	return err
}

func (w *encodingWriter) newEncoder() io.WriteCloser {
	if w.encoding == encodingBrotli {
		return brotli.NewWriterLevel(w.base, w.cfg.BrotliLevel)
	}
	gz, err := gzip.NewWriterLevel(w.base, w.cfg.GzipLevel)
	if err != nil {
		return gzip.NewWriter(w.base)
	}
	return gz
}

// Close sends whatever is still buffered and terminates the encoded stream.
// A response nothing was written to is left untouched.
func (w *encodingWriter) Close() error {
	if w.status == 0 {
		return nil
	}
	if !w.decided {
		if err := w.decide(); err != nil {
			return err
		}
	}
	if w.enc != nil {
		return w.enc.Close()
	}
	return nil
}

func (w *encodingWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *encodingWriter) Written() bool { return w.status != 0 }

// Flush commits the buffered bytes and pushes encoded output to the client.
func (w *encodingWriter) Flush() {
	if w.status != 0 && !w.decided {
		_ = w.decide()
	}
	if f, ok := w.enc.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
	if f, ok := w.base.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (w *encodingWriter) Unwrap() http.ResponseWriter { return w.base }
