package document

import (
	"bytes"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// EncodingResult describes what a document's bytes turned out to be.
type EncodingResult struct {
	Encoding   string  `json:"encoding"`
	Confidence float64 `json:"confidence"`
	HasBOM     bool    `json:"has_bom"`
}

// DetectEncoding guesses the encoding of document bytes. A BOM is
// authoritative; otherwise valid UTF-8 wins, then the null-byte
// pattern of UTF-16, then a Latin-1 fallback for loose bytes.
func DetectEncoding(data []byte) EncodingResult {
	if len(data) == 0 {
		return EncodingResult{Encoding: "utf-8", Confidence: 1.0}
	}

	if result := detectBOM(data); result.Confidence == 1.0 {
		return result
	}

	if isASCII(data) {
		return EncodingResult{Encoding: "ascii", Confidence: 1.0}
	}
	if isValidUTF8Sequence(data) {
		return EncodingResult{Encoding: "utf-8", Confidence: 0.95}
	}

	if score := scoreUTF16(data, 1); score > 0 {
		return EncodingResult{Encoding: "utf-16le", Confidence: score}
	}
	if score := scoreUTF16(data, 0); score > 0 {
		return EncodingResult{Encoding: "utf-16be", Confidence: score}
	}

	return EncodingResult{Encoding: "iso-8859-1", Confidence: 0.4}
}

func detectBOM(data []byte) EncodingResult {
	if len(data) >= 3 && bytes.Equal(data[:3], []byte{0xEF, 0xBB, 0xBF}) {
		return EncodingResult{Encoding: "utf-8", Confidence: 1.0, HasBOM: true}
	}
	if len(data) >= 2 {
		if bytes.Equal(data[:2], []byte{0xFF, 0xFE}) {
			return EncodingResult{Encoding: "utf-16le", Confidence: 1.0, HasBOM: true}
		}
		if bytes.Equal(data[:2], []byte{0xFE, 0xFF}) {
			return EncodingResult{Encoding: "utf-16be", Confidence: 1.0, HasBOM: true}
		}
	}
	return EncodingResult{}
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b > 127 {
			return false
		}
	}
	return true
}

func isValidUTF8Sequence(data []byte) bool {
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b < 0x80 {
			continue
		}
		if b < 0xC2 || b > 0xF4 {
			return false
		}

		var size int
		if b < 0xE0 {
			size = 2
		} else if b < 0xF0 {
			size = 3
		} else {
			size = 4
		}

		if i+size > len(data) {
			return false
		}
		for j := 1; j < size; j++ {
			if data[i+j]&0xC0 != 0x80 {
				return false
			}
		}
		i += size - 1
	}
	return true
}

// scoreUTF16 rates the null-byte rhythm of BOM-less UTF-16 text.
// offset 1 checks the high bytes of little-endian pairs, offset 0 the
// high bytes of big-endian pairs.
func scoreUTF16(data []byte, offset int) float64 {
	if len(data) < 2 || len(data)%2 != 0 {
		return 0
	}

	nullCount := 0
	for i := offset; i < len(data); i += 2 {
		if data[i] == 0 {
			nullCount++
		}
	}

	if float64(nullCount)/float64(len(data)/2) > 0.75 {
		return 0.8
	}
	return 0
}

// NormalizeToUTF8 decodes document bytes into a UTF-8 string, dropping
// any BOM and replacing undecodable bytes with U+FFFD.
func NormalizeToUTF8(data []byte, detected EncodingResult) string {
	data = stripBOM(data, detected)

	switch detected.Encoding {
	case "ascii":
		return string(data)
	case "utf-8":
		return string(bytes.ToValidUTF8(data, []byte("�")))
	case "utf-16le":
		return decodeWithFallback(data, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder())
	case "utf-16be":
		return decodeWithFallback(data, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder())
	case "iso-8859-1":
		return decodeWithFallback(data, charmap.ISO8859_1.NewDecoder())
	case "windows-1252":
		return decodeWithFallback(data, charmap.Windows1252.NewDecoder())
	default:
		return string(bytes.ToValidUTF8(data, []byte("�")))
	}
}

func stripBOM(data []byte, detected EncodingResult) []byte {
	if !detected.HasBOM {
		return data
	}

	switch detected.Encoding {
	case "utf-8":
		if len(data) >= 3 && bytes.Equal(data[:3], []byte{0xEF, 0xBB, 0xBF}) {
			return data[3:]
		}
	case "utf-16le":
		if len(data) >= 2 && bytes.Equal(data[:2], []byte{0xFF, 0xFE}) {
			return data[2:]
		}
	case "utf-16be":
		if len(data) >= 2 && bytes.Equal(data[:2], []byte{0xFE, 0xFF}) {
			return data[2:]
		}
	}
	return data
}

func decodeWithFallback(data []byte, decoder *encoding.Decoder) string {
	if len(data) == 0 {
		return ""
	}

	reader := transform.NewReader(bytes.NewReader(data), decoder)
	result, err := io.ReadAll(reader)
	if err != nil {
		return string(bytes.ToValidUTF8(data, []byte("�")))
	}
	return string(bytes.ToValidUTF8(result, []byte("�")))
}
