package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const sniffSize = 8192

// Charset names reported by Detect.
const (
	UTF8        = "UTF-8"
	UTF8BOM     = "UTF-8 (BOM)"
	UTF16LE     = "UTF-16LE"
	UTF16BE     = "UTF-16BE"
	Windows1252 = "windows-1252"
	ISO88599    = "ISO-8859-9"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Text is a statement decoded to UTF-8 along with the charset it was read in.
type Text struct {
	io.Reader
	Charset string
}

// Detect sniffs the start of r and returns a reader producing UTF-8.
//
// A BOM wins. Otherwise valid UTF-8 passes through and chardet picks among
// the single-byte charsets; Windows-1252 is the fallback.
func Detect(r io.Reader) (*Text, error) {
	br := bufio.NewReaderSize(r, sniffSize)

	buf, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("peek: %w", err)
	}

	switch {
	case bytes.HasPrefix(buf, bomUTF8):
		_, _ = br.Discard(len(bomUTF8))
		return &Text{Reader: br, Charset: UTF8BOM}, nil
	case bytes.HasPrefix(buf, bomUTF16LE):
		return decoded(br, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), UTF16LE), nil
	case bytes.HasPrefix(buf, bomUTF16BE):
		return decoded(br, unicode.UTF16(unicode.BigEndian, unicode.UseBOM), UTF16BE), nil
	case utf8.Valid(trimPartialRune(buf)):
		return &Text{Reader: br, Charset: UTF8}, nil
	}

	result, err := chardet.NewTextDetector().DetectBest(buf)
	if err == nil {
		switch result.Charset {
		case "UTF-8":
			return &Text{Reader: br, Charset: UTF8}, nil
		case "ISO-8859-1", "windows-1252":
			return decoded(br, charmap.Windows1252, Windows1252), nil
		case "ISO-8859-9":
			return decoded(br, charmap.ISO8859_9, ISO88599), nil
		}
	}

	return decoded(br, charmap.Windows1252, Windows1252), nil
}

// NewUTF8Reader is Detect without the charset.
func NewUTF8Reader(r io.Reader) (io.Reader, error) {
	t, err := Detect(r)
	if err != nil {
		return nil, err
	}

	return t.Reader, nil
}

func decoded(r io.Reader, enc encoding.Encoding, name string) *Text {
	return &Text{Reader: transform.NewReader(r, enc.NewDecoder()), Charset: name}
}

// trimPartialRune drops a multi-byte sequence cut by the sniff window.
func trimPartialRune(buf []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(buf); i++ {
		if utf8.RuneStart(buf[len(buf)-i]) {
			if !utf8.FullRune(buf[len(buf)-i:]) {
				return buf[:len(buf)-i]
			}

			break
		}
	}

	return buf
}
