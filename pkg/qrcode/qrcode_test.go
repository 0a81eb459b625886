package qrcode

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestPNGEncodesToken(t *testing.T) {
	r := NewRenderer()
	png, err := r.PNG("ballet-101-1714586400000-k3j9qz", 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))

	_, err = r.PNG("   ", 100)
	assert.Error(t, err)
}

func TestPDFSheet(t *testing.T) {
	from := time.Date(2024, 5, 1, 17, 50, 0, 0, time.UTC)
	pdf, err := NewRenderer().PDF(Sheet{
		Title:      "Ballet 101",
		Subtitle:   "Scan to check in",
		Token:      "ballet-101-1714586400000-k3j9qz",
		ValidFrom:  from,
		ValidUntil: from.Add(25 * time.Minute),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}
