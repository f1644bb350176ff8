// Package document turns files under the vault root into plain text.
//
// Markdown and other text files are read as UTF-8; PDF files are converted
// with github.com/ledongthuc/pdf. Any failure is reported as ErrUnreadable so
// the indexer can skip the document and carry on with the pass.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrUnreadable is returned when a file cannot be read or decoded as text
var ErrUnreadable = errors.New("document unreadable")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader extracts the text of one file
type Reader interface {
	Read(path string) (string, error)
}

// ReaderFunc adapts a function to the Reader interface
type ReaderFunc func(path string) (string, error)

// Read calls f(path)
func (f ReaderFunc) Read(path string) (string, error) {
	return f(path)
}

// Default returns the reader used by the indexer: PDF by extension, text otherwise
func Default() Reader {
	return ReaderFunc(Read)
}

// Read extracts the text content of the file at path
func Read(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return ReadPDF(path)
	}
	return ReadText(path)
}

// ReadText reads a UTF-8 text file. A leading byte order mark is dropped.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s: invalid UTF-8", ErrUnreadable, path)
	}
	return string(data), nil
}

// ReadPDF extracts the plain text layer of a PDF file
func ReadPDF(path string) (text string, err error) {
	// the pdf package panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %s: malformed pdf: %v", ErrUnreadable, path, r)
		}
	}()

	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	defer f.Close()

	plain, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	if !utf8.Valid(buf.Bytes()) {
		return "", fmt.Errorf("%w: %s: invalid UTF-8 in text layer", ErrUnreadable, path)
	}
	return buf.String(), nil
}
