package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapText(t *testing.T) {
	lines := WrapText("the quick brown fox jumps", 11)
	assert.Equal(t, []string{"the quick", "brown fox", "jumps"}, lines)
}

func TestWrapTextLongWord(t *testing.T) {
	lines := WrapText("abcdefghij", 4)
	assert.Equal(t, []string{"abcdefghij"}, lines)
}

func TestWrapTextEmpty(t *testing.T) {
	assert.Equal(t, []string{""}, WrapText("", 10))
}

func TestTextWidth(t *testing.T) {
	// Each glyph is 3 pixels wide plus 1 pixel spacing.
	assert.Equal(t, 8, TextWidth("ab", 1))
	assert.Equal(t, 16, TextWidth("ab", 2))
}

func TestTextDrawsPixels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	Text(img, "I", 0, 0, 1, color.RGBA{R: 255, A: 255})
	found := false
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] == 255 {
			found = true
			break
		}
	}
	assert.True(t, found)
}
