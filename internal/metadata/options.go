package metadata

import "log/slog"

// DefaultFileType is the MIME type used when Options.FileType is empty.
const DefaultFileType = "image/jpeg"

// Options configures an extraction.
type Options struct {
	// EnableXMP turns on XMP packet decoding. It is off by default.
	EnableXMP bool
	// FileType is the MIME type used when the image is re-encoded.
	FileType string
	Logger   *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// MIMEType returns FileType or DefaultFileType.
func (o Options) MIMEType() string {
	if o.FileType == "" {
		return DefaultFileType
	}
	return o.FileType
}
