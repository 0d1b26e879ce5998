package utils

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var pdfMagic = []byte("%PDF-")

// LooksLikePDF reports whether data starts with the PDF header.
func LooksLikePDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// ExtractPDFText returns up to maxChars runes of the document's plain text with runs of
// whitespace collapsed. Malformed documents yield an error rather than a panic.
func ExtractPDFText(data []byte, maxChars int) (text string, err error) {
	if !LooksLikePDF(data) {
		return "", fmt.Errorf("not a pdf")
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return truncateRunes(strings.Join(strings.Fields(string(raw)), " "), maxChars), nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
