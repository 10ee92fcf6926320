package transcriber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSegments(t *testing.T) {
	text := `Here is the translation:

[00:01] Hola a todos.
[00:05] Bienvenidos
al programa.
- [01:02:03] Adiós.`

	segments := ParseSegments(text)
	require.Len(t, segments, 3)

	assert.Equal(t, time.Second, segments[0].Offset)
	assert.Equal(t, "Hola a todos.", segments[0].Text)
	assert.Equal(t, 5*time.Second, segments[1].Offset)
	assert.Equal(t, "Bienvenidos al programa.", segments[1].Text)
	assert.Equal(t, time.Hour+2*time.Minute+3*time.Second, segments[2].Offset)
}

func TestSpokenScript(t *testing.T) {
	assert.Equal(t, "Hola", SpokenScript("[00:01] Hola"))
	assert.Equal(t, "Hola Adiós", SpokenScript("[00:01] Hola\n[00:03] Adiós"))
	assert.Equal(t, "no timestamps here", SpokenScript("  no timestamps here \n"))
	assert.Equal(t, "", SpokenScript("[00:01]"))
}
