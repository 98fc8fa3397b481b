package tsdemux

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// iso8859Codepages maps the DVB single-byte encoding prefix (0x01-0x05) to
// the ISO-8859 codepage it selects, per ETSI EN 300 468 Annex A Table A.4.
var iso8859Codepages = map[byte]*charmap.Charmap{
	0x01: charmap.ISO8859_5,
	0x02: charmap.ISO8859_6,
	0x03: charmap.ISO8859_7,
	0x04: charmap.ISO8859_8,
	0x05: charmap.ISO8859_9,
}

// decodeDVBString decodes a DVB string field. A leading byte below 0x20
// selects a codepage (0x15 = UTF-8, 0x01-0x05 = ISO-8859-x); otherwise the
// whole field defaults to UTF-8. Decoding never fails: undecodable bytes
// become the Unicode replacement character.
func decodeDVBString(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	first := data[0]
	if first < 0x20 {
		text := data[1:]
		if first == 0x15 {
			return decodeUTF8Lenient(text)
		}
		if cm, ok := iso8859Codepages[first]; ok {
			decoded, err := cm.NewDecoder().String(string(text))
			if err != nil {
				return decodeUTF8Lenient(text)
			}
			return decoded
		}
		return decodeUTF8Lenient(text)
	}
	return decodeUTF8Lenient(data)
}

// decodeUTF8Lenient decodes b as UTF-8, substituting the replacement
// character for any invalid byte sequence rather than failing.
func decodeUTF8Lenient(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}
