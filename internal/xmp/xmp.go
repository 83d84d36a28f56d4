// Package xmp locates the XMP packet of a JPEG and converts it into nested
// maps.
package xmp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ryoh827/imgmeta/internal/cursor"
	"github.com/ryoh827/imgmeta/internal/jpeg"
)

const (
	rootElement = "x:xmpmeta"
	packetStart = "<x:xmpmeta"
	packetEnd   = "xmpmeta>"
)

var ErrNoPacket = errors.New("xmp packet not found")

// Many writers omit these declarations, which makes the packet ill-formed.
var namespaces = []struct {
	prefix string
	uri    string
}{
	{"Iptc4xmpCore", "http://iptc.org/std/Iptc4xmpCore/1.0/xmlns/"},
	{"xsi", "http://www.w3.org/2001/XMLSchema-instance"},
	{"tiff", "http://ns.adobe.com/tiff/1.0/"},
	{"plus", "http://schemas.android.com/apk/lib/com.google.android.gms.plus"},
	{"ext", "http://www.gettyimages.com/xsltExtension/1.0"},
	{"exif", "http://ns.adobe.com/exif/1.0/"},
	{"stEvt", "http://ns.adobe.com/xap/1.0/sType/ResourceEvent#"},
	{"stRef", "http://ns.adobe.com/xap/1.0/sType/ResourceRef#"},
	{"crs", "http://ns.adobe.com/camera-raw-settings/1.0/"},
	{"xapGImg", "http://ns.adobe.com/xap/1.0/g/img/"},
	{"Iptc4xmpExt", "http://iptc.org/std/Iptc4xmpExt/2008-02-29/"},
}

// Decode finds the first segment that carries an x:xmpmeta packet and returns
// it as {"x:xmpmeta": ...}. It returns ErrNoPacket when no segment does.
func Decode(data []byte, logger *slog.Logger) (map[string]any, error) {
	if logger == nil {
		logger = slog.Default()
	}

	packet, err := locate(data, logger)
	if err != nil {
		return nil, err
	}

	root, err := parse(repairNamespaces(packet))
	if err != nil {
		return nil, fmt.Errorf("parse xmp: %w", err)
	}
	return map[string]any{rootElement: root.value()}, nil
}

// locate sniffs for "http", the start of the namespace URL that opens an XMP
// APP1 payload, and bounds the segment with the length field just before it.
// Every byte is searched a bounded number of times.
func locate(data []byte, logger *slog.Logger) (string, error) {
	c := cursor.New(data)

	// offset of the next "<x:xmpmeta" at or after the current section
	next := -1
	for from := 0; ; {
		at, found := jpeg.FindXMP(data, from)
		if !found {
			return "", ErrNoPacket
		}
		from = at + 1
		sectionStart := at - 1

		if next < sectionStart {
			next = c.Index(sectionStart, []byte(packetStart))
			if next < 0 {
				return "", ErrNoPacket
			}
		}

		length, err := c.Uint16(at-2, binary.BigEndian)
		if err != nil {
			logger.Debug("skip xmp candidate", slog.Int("offset", at), slog.Any("error", err))
			continue
		}
		raw, err := c.Slice(sectionStart, int(length)-1)
		if err != nil {
			logger.Debug("skip xmp candidate", slog.Int("offset", at), slog.Any("error", err))
			continue
		}
		sectionEnd := sectionStart + len(raw)
		if next+len(packetStart) > sectionEnd {
			continue
		}

		raw = raw[next-sectionStart:]
		end := bytes.LastIndex(raw, []byte(packetEnd))
		if end < 0 {
			from = max(from, sectionEnd)
			continue
		}
		return string(raw[:end+len(packetEnd)]), nil
	}
}

// repairNamespaces declares, on the root element, every well-known prefix
// the root does not declare already.
func repairNamespaces(packet string) string {
	head := packet
	if i := strings.IndexByte(packet, '>'); i >= 0 {
		head = packet[:i]
	}

	var decls strings.Builder
	for _, ns := range namespaces {
		if strings.Contains(head, "xmlns:"+ns.prefix+"=") {
			continue
		}
		fmt.Fprintf(&decls, ` xmlns:%s="%s"`, ns.prefix, ns.uri)
	}

	at := len(packetStart)
	return packet[:at] + decls.String() + packet[at:]
}
