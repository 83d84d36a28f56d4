// Package jpegtest builds synthetic JPEG, TIFF, IRB and XMP buffers for tests.
package jpegtest

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Field types as written on the wire.
const (
	Byte      = 1
	ASCII     = 2
	Short     = 3
	Long      = 4
	Rational  = 5
	Undefined = 7
	SLong     = 9
	SRational = 10
)

// Entry is one IFD entry. Data holds the encoded value bytes in the
// directory's byte order; values longer than four bytes are placed after the
// directory and referenced by offset.
type Entry struct {
	Tag   uint16
	Type  uint16
	Count uint32
	Data  []byte
}

// IFD is a directory of entries. Sub-directories hang off pointer tags.
type IFD struct {
	Entries []Entry
	Sub     map[uint16]*IFD
}

// TIFF describes a full TIFF structure: IFD0 and an optional IFD1.
type TIFF struct {
	Order binary.ByteOrder
	IFD0  IFD
	IFD1  *IFD
	// Thumbnail is appended after IFD1 and referenced by JpegIFOffset and
	// JpegIFByteCount when IFD1 is set.
	Thumbnail []byte
}

const (
	tagJpegIFOffset    = 0x0201
	tagJpegIFByteCount = 0x0202
)

// ShortEntry builds a SHORT entry.
func ShortEntry(order binary.ByteOrder, tag uint16, values ...uint16) Entry {
	data := make([]byte, 2*len(values))
	for i, v := range values {
		order.PutUint16(data[2*i:], v)
	}
	return Entry{Tag: tag, Type: Short, Count: uint32(len(values)), Data: data}
}

// LongEntry builds a LONG entry.
func LongEntry(order binary.ByteOrder, tag uint16, values ...uint32) Entry {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		order.PutUint32(data[4*i:], v)
	}
	return Entry{Tag: tag, Type: Long, Count: uint32(len(values)), Data: data}
}

// SLongEntry builds an SLONG entry.
func SLongEntry(order binary.ByteOrder, tag uint16, values ...int32) Entry {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		order.PutUint32(data[4*i:], uint32(v))
	}
	return Entry{Tag: tag, Type: SLong, Count: uint32(len(values)), Data: data}
}

// ASCIIEntry builds a NUL-terminated ASCII entry.
func ASCIIEntry(tag uint16, s string) Entry {
	data := append([]byte(s), 0)
	return Entry{Tag: tag, Type: ASCII, Count: uint32(len(data)), Data: data}
}

// BytesEntry builds a BYTE or UNDEFINED entry.
func BytesEntry(tag uint16, typ uint16, values ...byte) Entry {
	return Entry{Tag: tag, Type: typ, Count: uint32(len(values)), Data: append([]byte(nil), values...)}
}

// RationalEntry builds a RATIONAL entry from numerator/denominator pairs.
func RationalEntry(order binary.ByteOrder, tag uint16, pairs ...uint32) Entry {
	data := make([]byte, 4*len(pairs))
	for i, v := range pairs {
		order.PutUint32(data[4*i:], v)
	}
	return Entry{Tag: tag, Type: Rational, Count: uint32(len(pairs) / 2), Data: data}
}

// SRationalEntry builds an SRATIONAL entry from numerator/denominator pairs.
func SRationalEntry(order binary.ByteOrder, tag uint16, pairs ...int32) Entry {
	data := make([]byte, 4*len(pairs))
	for i, v := range pairs {
		order.PutUint32(data[4*i:], uint32(v))
	}
	return Entry{Tag: tag, Type: SRational, Count: uint32(len(pairs) / 2), Data: data}
}

// Bytes serializes the TIFF structure starting with the byte-order mark.
func (t TIFF) Bytes() []byte {
	order := t.Order
	if order == nil {
		order = binary.LittleEndian
	}

	buf := make([]byte, 8)
	if order == binary.LittleEndian {
		copy(buf, "II")
	} else {
		copy(buf, "MM")
	}
	order.PutUint16(buf[2:], 42)
	order.PutUint32(buf[4:], 8)

	w := &writer{order: order, buf: buf}
	next := w.writeIFD(t.IFD0)

	if t.IFD1 != nil {
		ifd1 := *t.IFD1
		if len(t.Thumbnail) > 0 {
			ifd1.Entries = append(append([]Entry(nil), ifd1.Entries...),
				LongEntry(order, tagJpegIFOffset, 0),
				LongEntry(order, tagJpegIFByteCount, uint32(len(t.Thumbnail))),
			)
		}
		order.PutUint32(w.buf[next:], uint32(len(w.buf)))
		w.writeIFD(ifd1)
		if len(t.Thumbnail) > 0 {
			w.patch(tagJpegIFOffset, uint32(len(w.buf)))
			w.buf = append(w.buf, t.Thumbnail...)
		}
	}

	return w.buf
}

type writer struct {
	order   binary.ByteOrder
	buf     []byte
	entries map[uint16]int
}

// writeIFD appends dir and its sub-directories and returns the position of
// its next-IFD field.
func (w *writer) writeIFD(dir IFD) int {
	entries := append([]Entry(nil), dir.Entries...)
	pointerTags := make([]int, 0, len(dir.Sub))
	for tag := range dir.Sub {
		pointerTags = append(pointerTags, int(tag))
	}
	sort.Ints(pointerTags)
	for _, tag := range pointerTags {
		entries = append(entries, LongEntry(w.order, uint16(tag), 0))
	}

	start := len(w.buf)
	tableSize := 2 + 12*len(entries) + 4
	w.buf = append(w.buf, make([]byte, tableSize)...)
	w.order.PutUint16(w.buf[start:], uint16(len(entries)))
	if w.entries == nil {
		w.entries = make(map[uint16]int)
	}

	for i, e := range entries {
		pos := start + 2 + 12*i
		w.order.PutUint16(w.buf[pos:], e.Tag)
		w.order.PutUint16(w.buf[pos+2:], e.Type)
		w.order.PutUint32(w.buf[pos+4:], e.Count)
		w.entries[e.Tag] = pos + 8
		if len(e.Data) <= 4 {
			copy(w.buf[pos+8:], e.Data)
			continue
		}
		w.order.PutUint32(w.buf[pos+8:], uint32(len(w.buf)))
		w.buf = append(w.buf, e.Data...)
	}

	next := start + 2 + 12*len(entries)
	for _, tag := range pointerTags {
		w.patch(uint16(tag), uint32(len(w.buf)))
		w.writeIFD(*dir.Sub[uint16(tag)])
	}
	return next
}

func (w *writer) patch(tag uint16, value uint32) {
	pos, ok := w.entries[tag]
	if !ok {
		panic(fmt.Sprintf("jpegtest: no entry for tag %#04x", tag))
	}
	w.order.PutUint32(w.buf[pos:], value)
}

// Segment builds a JPEG marker segment with a big-endian length.
func Segment(marker byte, payload []byte) []byte {
	length := len(payload) + 2
	if length > 0xFFFF {
		panic(fmt.Sprintf("jpegtest: segment payload too large: %d", length))
	}
	seg := []byte{0xFF, marker, byte(length >> 8), byte(length)}
	return append(seg, payload...)
}

// ExifSegment wraps a TIFF structure in an APP1 "Exif\0\0" segment.
func ExifSegment(tiff []byte) []byte {
	return Segment(0xE1, append([]byte("Exif\x00\x00"), tiff...))
}

// XMPSegment wraps an XMP packet in an APP1 segment.
func XMPSegment(packet string) []byte {
	return Segment(0xE1, append([]byte("http://ns.adobe.com/xap/1.0/\x00"), packet...))
}

// IPTCRecord is one IPTC dataset of the application record.
type IPTCRecord struct {
	Dataset uint8
	Value   string
}

// IRBSegment builds an APP13 segment carrying a Photoshop IPTC resource block.
func IRBSegment(records ...IPTCRecord) []byte {
	var data []byte
	for _, r := range records {
		data = append(data, 0x1C, 0x02, r.Dataset, byte(len(r.Value)>>8), byte(len(r.Value)))
		data = append(data, r.Value...)
	}

	payload := []byte("Photoshop 3.0\x00")
	payload = append(payload, "8BIM"...)
	payload = append(payload, 0x04, 0x04) // IPTC-NAA resource
	payload = append(payload, 0x00, 0x00) // empty pascal name, padded
	size := make([]byte, 4)
	binary.BigEndian.PutUint32(size, uint32(len(data)))
	payload = append(payload, size...)
	payload = append(payload, data...)
	return Segment(0xED, payload)
}

// SOF0 is a minimal baseline frame header segment, enough to look like image data.
var SOF0 = Segment(0xC0, []byte{8, 0, 1, 0, 1, 1, 1, 0x11, 0})

// JPEG concatenates SOI, the given segments and EOI.
func JPEG(segments ...[]byte) []byte {
	out := []byte{0xFF, 0xD8}
	for _, s := range segments {
		out = append(out, s...)
	}
	return append(out, 0xFF, 0xD9)
}
