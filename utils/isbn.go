package utils

import (
	"strings"
	"unicode"
)

// FindISBN returns the first valid ISBN-13 or ISBN-10 that follows an "ISBN" marker in
// text, normalized to digits (and a trailing X for ISBN-10). It returns "" when none is found.
func FindISBN(text string) string {
	upper := strings.ToUpper(text)
	for offset := 0; ; {
		i := strings.Index(upper[offset:], "ISBN")
		if i < 0 {
			return ""
		}
		start := offset + i + len("ISBN")
		if isbn := isbnAfter(upper[start:]); isbn != "" {
			return isbn
		}
		offset = start
	}
}

// isbnAfter reads the identifier that follows a marker such as "ISBN-13: " or "ISBN ".
func isbnAfter(s string) string {
	s = strings.TrimPrefix(s, "-13")
	s = strings.TrimPrefix(s, "-10")
	s = strings.TrimLeft(s, ":  \t")

	var cleaned strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			cleaned.WriteRune(r)
		case r == 'X' && cleaned.Len() == 9:
			cleaned.WriteRune(r)
		case r == '-' && cleaned.Len() > 0:
			continue
		default:
			return validISBN(cleaned.String())
		}
		if cleaned.Len() == 13 {
			break
		}
	}
	return validISBN(cleaned.String())
}

func validISBN(cleaned string) string {
	switch len(cleaned) {
	case 13:
		if isbn13Checksum(cleaned) {
			return cleaned
		}
	case 10:
		if isbn10Checksum(cleaned) {
			return cleaned
		}
	}
	return ""
}

func isbn13Checksum(s string) bool {
	sum := 0
	for i, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
		d := int(r - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return sum%10 == 0
}

func isbn10Checksum(s string) bool {
	sum := 0
	for i, r := range s {
		var d int
		switch {
		case r >= '0' && r <= '9':
			d = int(r - '0')
		case r == 'X' && i == 9:
			d = 10
		default:
			return false
		}
		sum += d * (10 - i)
	}
	return sum%11 == 0
}
