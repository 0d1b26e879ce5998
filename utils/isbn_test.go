package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindISBN(t *testing.T) {
	cases := map[string]string{
		"Copyright 1965. ISBN 978-0-441-01359-3 Printed in USA": "9780441013593",
		"isbn-13: 9780441013593":                                "9780441013593",
		"ISBN-10: 0-441-01359-7.":                               "0441013597",
		"ISBN 0-8044-2957-X":                                    "080442957X",
		"ISBN 978-0-441-01359-4 (bad checksum)":                 "",
		"ISBN pending. Later: ISBN 9780441013593":               "9780441013593",
		"no identifier here":                                    "",
		"":                                                      "",
		"ISBN 0-441-01359-7 2nd edition":                        "0441013597",
	}
	for in, want := range cases {
		assert.Equal(t, want, FindISBN(in), in)
	}
}
