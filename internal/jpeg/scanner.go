// Package jpeg locates the metadata payloads embedded in a JPEG byte stream.
package jpeg

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ryoh827/imgmeta/internal/cursor"
)

const (
	markerPrefix = 0xFF
	markerSOI    = 0xD8
	markerEOI    = 0xD9
	markerSOS    = 0xDA
	markerAPP1   = 0xE1
	markerTEM    = 0x01
	markerRST0   = 0xD0
	markerRST7   = 0xD7
)

var (
	ErrNotAJpeg        = errors.New("not a jpeg image")
	ErrMalformedMarker = errors.New("invalid jpeg marker")
)

var irbSignature = []byte{0x38, 0x42, 0x49, 0x4D, 0x04, 0x04} // "8BIM" + IPTC resource id

var xmpSignature = []byte("http")

// Range is a window [Start, Start+Length) into the scanned buffer.
type Range struct {
	Start  int
	Length int
}

// CheckSOI fails with ErrNotAJpeg unless data starts with FF D8.
func CheckSOI(data []byte) error {
	if len(data) < 2 || data[0] != markerPrefix || data[1] != markerSOI {
		return ErrNotAJpeg
	}
	return nil
}

// FindExif walks the marker segments and returns the offset of the first APP1
// payload. found is false when the image carries no APP1 segment.
func FindExif(data []byte) (offset int, found bool, err error) {
	if err := CheckSOI(data); err != nil {
		return 0, false, err
	}

	c := cursor.New(data)
	pos := 2
	for pos < len(data) {
		prefix, err := c.Uint8(pos)
		if err != nil {
			return 0, false, err
		}
		if prefix != markerPrefix {
			return 0, false, fmt.Errorf("%w at offset %d: found %#02x", ErrMalformedMarker, pos, prefix)
		}

		marker, err := c.Uint8(pos + 1)
		if err != nil {
			return 0, false, err
		}

		switch {
		case marker == markerAPP1:
			return pos + 4, true, nil
		case marker == markerSOS || marker == markerEOI:
			return 0, false, nil
		case marker == markerPrefix:
			// fill byte
			pos++
			continue
		case marker == markerTEM || (marker >= markerRST0 && marker <= markerRST7):
			pos += 2
			continue
		}

		length, err := c.Uint16(pos+2, binary.BigEndian)
		if err != nil {
			return 0, false, fmt.Errorf("read segment length: %w", err)
		}
		pos += 2 + int(length)
	}

	return 0, false, nil
}

// FindIRB scans byte by byte for the Photoshop IPTC resource block and returns
// the range of its IPTC records.
func FindIRB(data []byte) (Range, bool, error) {
	if err := CheckSOI(data); err != nil {
		return Range{}, false, err
	}

	c := cursor.New(data)
	for pos := 2; pos+len(irbSignature) <= len(data); pos++ {
		if !c.HasPrefix(pos, irbSignature) {
			continue
		}

		nameLength, err := c.Uint8(pos + 7)
		if err != nil {
			return Range{}, false, fmt.Errorf("read irb name length: %w", err)
		}
		headerLength := int(nameLength)
		if headerLength%2 != 0 {
			headerLength++
		}
		// pre Photoshop 6 layout
		if headerLength == 0 {
			headerLength = 4
		}

		sectionLength, err := c.Uint16(pos+6+headerLength, binary.BigEndian)
		if err != nil {
			return Range{}, false, fmt.Errorf("read irb section length: %w", err)
		}

		return Range{Start: pos + 8 + headerLength, Length: int(sectionLength)}, true, nil
	}

	return Range{}, false, nil
}

// FindXMP returns the first offset at or after from where the ASCII text
// "http" occurs. XMP packets are located by content sniffing rather than by
// marker: the packet namespace URL follows the APP1 length field.
func FindXMP(data []byte, from int) (int, bool) {
	if from < 2 {
		from = 2
	}
	i := cursor.New(data).Index(from, xmpSignature)
	return i, i >= 0
}
