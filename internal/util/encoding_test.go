package util

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestEnsureUTF8Bytes(t *testing.T) {
	// Valid UTF-8 passes through untouched
	assert.Equal(t, "hostname sw1", EnsureUTF8Bytes([]byte("hostname sw1")))
	assert.Equal(t, "", EnsureUTF8Bytes(nil))

	// GB18030 encoded Chinese text gets decoded
	gb := []byte{0xc9, 0xe8, 0xb1, 0xb8} // "设备"
	got := EnsureUTF8Bytes(gb)
	assert.True(t, utf8.ValidString(got))
	assert.NotEqual(t, string(gb), got)

	// Latin-1 banner bytes become valid UTF-8
	latin := []byte{0x63, 0x61, 0x66, 0xe9} // "café" in ISO8859-1
	got = EnsureUTF8Bytes(latin)
	assert.True(t, utf8.ValidString(got))
}

func TestEnsureUTF8String(t *testing.T) {
	assert.Equal(t, "show version", EnsureUTF8("show version"))
}
