// Package source loads image bytes from local files, HTTP URLs and data URIs.
package source

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

var (
	ErrSourceLoad         = errors.New("failed to load image source")
	ErrInvalidImageFormat = errors.New("invalid image format")
)

// Source opens the image a reference points at.
type Source interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// FileSource reads local paths and file:// URLs.
type FileSource struct{}

func (FileSource) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if u, err := url.Parse(ref); err == nil && u.Scheme == "file" {
		ref = u.Path
	}
	return os.Open(ref)
}

// DefaultMaxBytes caps an HTTP response body when HTTPSource.MaxBytes is
// zero.
const DefaultMaxBytes = 64 << 20

// HTTPSource fetches http and https URLs. A nil Client uses
// http.DefaultClient.
type HTTPSource struct {
	Client *http.Client
	// MaxBytes caps the response body. Reading past it fails.
	MaxBytes int64
}

func (s HTTPSource) maxBytes() int64 {
	if s.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return s.MaxBytes
}

func (s HTTPSource) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %s", ErrSourceLoad, ref, resp.Status)
	}

	limit := s.maxBytes()
	if resp.ContentLength > limit {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrSourceLoad, ref, resp.ContentLength, limit)
	}
	return &limitedBody{
		r:     io.LimitReader(resp.Body, limit+1),
		c:     resp.Body,
		limit: limit,
	}, nil
}

// limitedBody fails once more than limit bytes have been read.
type limitedBody struct {
	r     io.Reader
	c     io.Closer
	limit int64
	read  int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.read += int64(n)
	if b.read > b.limit {
		return n, fmt.Errorf("%w: body exceeds %d bytes", ErrSourceLoad, b.limit)
	}
	return n, err
}

func (b *limitedBody) Close() error {
	return b.c.Close()
}

// DataURISource decodes data: URIs.
type DataURISource struct{}

func (DataURISource) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	rest, ok := cutPrefixFold(ref, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: not a data uri", ErrInvalidImageFormat)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: data uri without payload", ErrInvalidImageFormat)
	}

	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(strings.ToLower(header), ";base64") {
		data, err = base64.StdEncoding.DecodeString(payload)
	} else {
		var text string
		text, err = url.PathUnescape(payload)
		data = []byte(text)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImageFormat, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Router dispatches a reference to the Source for its scheme. References
// without a scheme are local paths. Other schemes are rejected with
// ErrInvalidImageFormat.
type Router struct {
	File    Source
	HTTP    Source
	DataURI Source
}

// Default returns a Router over the local filesystem and http.DefaultClient.
func Default() Router {
	return Router{
		File:    FileSource{},
		HTTP:    HTTPSource{},
		DataURI: DataURISource{},
	}
}

func (r Router) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	var src Source
	switch scheme(ref) {
	case "data":
		src = r.DataURI
	case "http", "https":
		src = r.HTTP
	case "", "file":
		src = r.File
	default:
		return nil, fmt.Errorf("%w: unsupported reference %q", ErrInvalidImageFormat, truncate(ref))
	}
	if src == nil {
		return nil, fmt.Errorf("%w: no source for %q", ErrInvalidImageFormat, truncate(ref))
	}
	return src.Open(ctx, ref)
}

// Load reads the whole image referenced by ref. Failures to reach or read
// the image wrap ErrSourceLoad.
func Load(ctx context.Context, src Source, ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrInvalidImageFormat)
	}

	rc, err := src.Open(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrInvalidImageFormat) || errors.Is(err, ErrSourceLoad) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSourceLoad, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if errors.Is(err, ErrSourceLoad) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", ErrSourceLoad, err)
	}
	return data, nil
}

// DataURL encodes data as a base64 data URL of the given MIME type.
func DataURL(data []byte, fileType string) string {
	return "data:" + fileType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func scheme(ref string) string {
	if _, ok := cutPrefixFold(ref, "data:"); ok {
		return "data"
	}
	u, err := url.Parse(ref)
	// a single letter is a windows drive
	if err != nil || len(u.Scheme) <= 1 {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

func truncate(ref string) string {
	const limit = 64
	if len(ref) <= limit {
		return ref
	}
	return ref[:limit] + "..."
}
