package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLooksLikePDF(t *testing.T) {
	assert.True(t, LooksLikePDF([]byte("%PDF-1.7\n...")))
	assert.False(t, LooksLikePDF([]byte("PK\x03\x04")))
	assert.False(t, LooksLikePDF(nil))
}

func TestExtractPDFTextRejectsGarbage(t *testing.T) {
	_, err := ExtractPDFText([]byte("hello"), 100)
	assert.Error(t, err)

	_, err = ExtractPDFText([]byte("%PDF-1.4\nnot really a pdf"), 100)
	assert.Error(t, err)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "héllo", truncateRunes("héllo", 10))
	assert.Equal(t, "héllo", truncateRunes("héllo", 0))
}
