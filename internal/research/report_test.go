package research

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short note", truncate("short note", 200))

	long := strings.Repeat("x", 250)
	got := truncate(long, 200)
	assert.Equal(t, strings.Repeat("x", 200)+"...", got)
}

func TestTruncate_MultiByteRunes(t *testing.T) {
	// 20 runes, 3 bytes each; a byte-offset cut at 10 would split one in half
	note := strings.Repeat("耐药", 10)
	got := truncate(note, 10)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("耐药", 5)+"...", got)

	// at the limit nothing is cut
	assert.Equal(t, note, truncate(note, 20))
}
