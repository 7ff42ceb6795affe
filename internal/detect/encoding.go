// Package detect infers a log file's character encoding from a byte prefix
// and builds a decoder for any of the encodings the engine understands.
package detect

import (
	"bytes"
	"fmt"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// Encoding names the character encoding of a log file, mirroring spec.md §6's
// enumerated set.
type Encoding string

const (
	ASCII      Encoding = "ASCII"
	UTF8       Encoding = "UTF-8"
	UTF16LE    Encoding = "UTF-16LE"
	UTF16BE    Encoding = "UTF-16BE"
	UTF32LE    Encoding = "UTF-32LE"
	UTF32BE    Encoding = "UTF-32BE"
	CP1251     Encoding = "CP1251"
	Big5       Encoding = "Big5"
	GB18030    Encoding = "GB18030"
	ShiftJIS   Encoding = "Shift-JIS"
	KOI8R      Encoding = "KOI8-R"
	AutoDetect Encoding = "auto-detect"
)

// LineTerminator describes the byte stride and in-code-unit position of the
// line terminator for a given encoding, used by the indexer to scan
// multi-byte-terminated files (spec.md §4.2 "lf_width"/"lf_index_within_code_unit").
type LineTerminator struct {
	Width            int // bytes per code unit the terminator is encoded in
	IndexWithinUnit  int // byte offset of the terminator's marker within that unit
}

var singleByteLF = LineTerminator{Width: 1, IndexWithinUnit: 0}

// Terminator returns the line-terminator stride for enc.
func Terminator(enc Encoding) LineTerminator {
	switch enc {
	case UTF16LE:
		return LineTerminator{Width: 2, IndexWithinUnit: 0}
	case UTF16BE:
		return LineTerminator{Width: 2, IndexWithinUnit: 1}
	case UTF32LE:
		return LineTerminator{Width: 4, IndexWithinUnit: 0}
	case UTF32BE:
		return LineTerminator{Width: 4, IndexWithinUnit: 3}
	default:
		return singleByteLF
	}
}

// Detect infers the encoding of a file from its first chunk, honoring a BOM
// first and falling back to chardet's statistical detector.
func Detect(sample []byte) Encoding {
	if enc, ok := detectBOM(sample); ok {
		return enc
	}

	d := chardet.NewTextDetector()
	result, err := d.DetectBest(sample)
	if err != nil || result == nil {
		return UTF8
	}
	return fromCharsetName(result.Charset)
}

func detectBOM(sample []byte) (Encoding, bool) {
	switch {
	case bytes.HasPrefix(sample, []byte{0xEF, 0xBB, 0xBF}):
		return UTF8, true
	case bytes.HasPrefix(sample, []byte{0xFF, 0xFE, 0x00, 0x00}):
		return UTF32LE, true
	case bytes.HasPrefix(sample, []byte{0x00, 0x00, 0xFE, 0xFF}):
		return UTF32BE, true
	case bytes.HasPrefix(sample, []byte{0xFF, 0xFE}):
		return UTF16LE, true
	case bytes.HasPrefix(sample, []byte{0xFE, 0xFF}):
		return UTF16BE, true
	}
	return "", false
}

func fromCharsetName(name string) Encoding {
	switch name {
	case "UTF-8":
		return UTF8
	case "UTF-16LE":
		return UTF16LE
	case "UTF-16BE":
		return UTF16BE
	case "UTF-32LE":
		return UTF32LE
	case "UTF-32BE":
		return UTF32BE
	case "windows-1251", "ISO-8859-5":
		return CP1251
	case "Big5":
		return Big5
	case "GB18030", "GB2312":
		return GB18030
	case "Shift_JIS":
		return ShiftJIS
	case "KOI8-R":
		return KOI8R
	case "ASCII":
		return ASCII
	default:
		return UTF8
	}
}

// Decoder returns a stateful golang.org/x/text decoder for enc.
func Decoder(enc Encoding) (*encoding.Decoder, error) {
	switch enc {
	case ASCII, UTF8, AutoDetect:
		return encoding.Nop.NewDecoder(), nil
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder(), nil
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder(), nil
	case UTF32LE:
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM).NewDecoder(), nil
	case UTF32BE:
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM).NewDecoder(), nil
	case CP1251:
		return charmap.Windows1251.NewDecoder(), nil
	case Big5:
		return traditionalchinese.Big5.NewDecoder(), nil
	case GB18030:
		return simplifiedchinese.GB18030.NewDecoder(), nil
	case ShiftJIS:
		return japanese.ShiftJIS.NewDecoder(), nil
	case KOI8R:
		return charmap.KOI8R.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("detect: unknown encoding %q", enc)
	}
}
