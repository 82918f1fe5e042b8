package lyrics

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"lyrics-sync/pkg/lrc"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeText returns data as a UTF-8 string. BOM-marked UTF-8 and UTF-16 are
// honoured; other non-UTF-8 input is decoded as GBK, which covers most
// lyric files that are not UTF-8.
func DecodeText(data []byte) (string, error) {
	if bytes.HasPrefix(data, bomUTF8) {
		return string(data[len(bomUTF8):]), nil
	}

	if bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), dec))
		if err != nil {
			return "", fmt.Errorf("failed to decode UTF-16: %w", err)
		}
		return string(out), nil
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	gbkReader := transform.NewReader(bytes.NewReader(data), simplifiedchinese.GBK.NewDecoder())
	out, err := io.ReadAll(gbkReader)
	if err != nil {
		return "", fmt.Errorf("failed to decode as GBK: %w", err)
	}
	return string(out), nil
}

// ReadText reads a lyric file and decodes it to UTF-8.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read lyrics file %s: %w", path, err)
	}

	text, err := DecodeText(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return text, nil
}

// ReadFile reads and parses an LRC file.
func ReadFile(path string) ([]lrc.Line, error) {
	text, err := ReadText(path)
	if err != nil {
		return nil, err
	}
	return lrc.Parse(text), nil
}
