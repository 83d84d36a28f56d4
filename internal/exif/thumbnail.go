package exif

import (
	"fmt"
	"log/slog"

	"github.com/ryoh827/imgmeta/internal/tags"
)

const (
	compressionUncompressed = 1
	compressionJPEG         = 6
	photometricRGB          = 2
)

// Thumbnail is the IFD1 directory. Data is set only for JPEG thumbnails and
// borrows from the decoded buffer; Offset and Length locate it there.
type Thumbnail struct {
	Tags     Directory `json:"tags"`
	MIMEType string    `json:"mimeType,omitempty"`
	Offset   int       `json:"offset,omitempty"`
	Length   int       `json:"length,omitempty"`
	Data     []byte    `json:"-"`
}

// readThumbnail follows the next-IFD link of IFD0. A zero or out of range
// link means there is no thumbnail.
func (d decoder) readThumbnail(ifd0 int) (*Thumbnail, error) {
	count, err := d.cur.Uint16(ifd0, d.order)
	if err != nil {
		return nil, err
	}
	next, err := d.cur.Uint32(ifd0+2+int(count)*entrySize, d.order)
	if err != nil {
		return nil, fmt.Errorf("read next ifd offset: %w", err)
	}
	if next == 0 {
		return nil, nil
	}

	start, err := d.abs(next)
	if err != nil {
		d.logger.Debug("ifd1 offset out of range", slog.Any("offset", next))
		return nil, nil
	}

	dir, err := d.readTags(start, tags.IFD1)
	if err != nil {
		return nil, err
	}
	thumb := &Thumbnail{Tags: dir}

	compression, hasCompression := dir["Compression"].(Uint)
	switch {
	case hasCompression && compression == compressionJPEG:
		offset, hasOffset := dir["JpegIFOffset"].(Uint)
		length, hasLength := dir["JpegIFByteCount"].(Uint)
		if !hasOffset || !hasLength || offset == 0 || length == 0 {
			return thumb, nil
		}
		abs, err := d.abs(uint32(offset))
		if err != nil {
			return thumb, fmt.Errorf("thumbnail data: %w", err)
		}
		raw, err := d.cur.Slice(abs, int(length))
		if err != nil {
			return thumb, fmt.Errorf("thumbnail data: %w", err)
		}
		thumb.MIMEType = "image/jpeg"
		thumb.Offset = abs
		thumb.Length = len(raw)
		thumb.Data = raw

	case hasCompression && compression == compressionUncompressed:
		d.logger.Debug("thumbnail is uncompressed tiff, not decoded")

	case hasCompression:
		d.logger.Debug("unknown thumbnail compression", slog.Any("compression", uint32(compression)))

	case dir["PhotometricInterpretation"] == Uint(photometricRGB):
		d.logger.Debug("thumbnail is rgb, not decoded")
	}

	return thumb, nil
}
