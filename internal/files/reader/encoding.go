package reader

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/vvka-141/tabload/pkg/tabload"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LookupEncoding resolves a WHATWG encoding label such as "utf-8",
// "windows-1252", "latin1" or "shift_jis". An empty label or "auto" returns
// a nil encoding, which makes the reader detect the encoding of each file.
func LookupEncoding(label string) (encoding.Encoding, error) {
	label = strings.TrimSpace(label)
	if label == "" || strings.EqualFold(label, tabload.DefaultEncoding) {
		return nil, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported encoding %q", tabload.ErrInvalidConfig, label)
	}
	return enc, nil
}

// DetectEncoding guesses the encoding of content. A byte order mark wins;
// otherwise valid UTF-8 is taken as UTF-8 and anything else falls back to
// the HTML sniffing rules, which default to windows-1252.
func DetectEncoding(content []byte) (encoding.Encoding, string) {
	if enc, name, certain := charset.DetermineEncoding(content, "text/csv"); certain {
		return enc, name
	}
	if utf8.Valid(content) {
		return unicode.UTF8, "utf-8"
	}
	enc, name, _ := charset.DetermineEncoding(content, "text/csv")
	return enc, name
}

func isUTF8(enc encoding.Encoding) bool {
	name, err := htmlindex.Name(enc)
	return err == nil && name == "utf-8"
}

// decodingReader returns a reader producing UTF-8 text from content. A nil
// enc detects the encoding from content.
func decodingReader(content []byte, enc encoding.Encoding) io.Reader {
	if enc == nil {
		var name string
		if enc, name = DetectEncoding(content); name == "utf-8" {
			enc = nil
		}
	} else if isUTF8(enc) {
		enc = nil
	}
	if enc == nil {
		return bytes.NewReader(bytes.TrimPrefix(content, utf8BOM))
	}
	return transform.NewReader(bytes.NewReader(content), enc.NewDecoder())
}
