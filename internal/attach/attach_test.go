package attach

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBase64TextRoundTrip(t *testing.T) {
	body := "hello,world\n1,2\n"
	uri := "data:text/csv;base64," + base64.StdEncoding.EncodeToString([]byte(body))

	got := Resolve([]Attachment{{Name: "data", URL: uri}})
	require.Len(t, got, 1)
	assert.Equal(t, "data.csv", got[0].Name)
	assert.Equal(t, []byte(body), got[0].Data)
	assert.Equal(t, "text/csv", got[0].MIME)
	assert.True(t, got[0].IsText())
}

func TestResolveKeepsMatchingExtension(t *testing.T) {
	uri := "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("x"))
	got := Resolve([]Attachment{{Name: "notes.txt", URL: uri}})
	require.Len(t, got, 1)
	assert.Equal(t, "notes.txt", got[0].Name)
}

func TestResolvePlainDataURI(t *testing.T) {
	got := Resolve([]Attachment{{Name: "greeting", URL: "data:text/plain,hello%20there"}})
	require.Len(t, got, 1)
	assert.Equal(t, "hello there", string(got[0].Data))
	assert.Equal(t, "greeting.txt", got[0].Name)
}

func TestResolveSkipsNonDataURI(t *testing.T) {
	got := Resolve([]Attachment{
		{Name: "remote", URL: "https://example.com/file.png"},
		{Name: "ok", URL: "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("y"))},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "ok.txt", got[0].Name)
}

func TestResolveSkipsBadBase64(t *testing.T) {
	got := Resolve([]Attachment{{Name: "broken", URL: "data:image/png;base64,@@@not-base64@@@"}})
	assert.Empty(t, got)
}

func TestBinaryPolicy(t *testing.T) {
	png := Resolved{Name: "logo.png", MIME: "image/png"}
	assert.False(t, png.IsText())

	js := Resolved{Name: "config.json", MIME: "application/json"}
	assert.True(t, js.IsText())

	md := Resolved{Name: "readme.md", MIME: "text/markdown"}
	assert.True(t, md.IsText())
}

func TestResolveEmpty(t *testing.T) {
	assert.Nil(t, Resolve(nil))
	assert.Nil(t, Resolve([]Attachment{}))
}
