package chatmodel

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/core/schema"
)

func TestImageMimeAndExtPrefersDeclaredMimeType(t *testing.T) {
	b := schema.ContentBlock{Type: schema.BlockImage, MimeType: "image/webp"}
	mimeType, ext := imageMimeAndExt(b, []byte("\x89PNG\r\n\x1a\n"))
	assert.Equal(t, "image/webp", mimeType)
	assert.Equal(t, ".webp", ext)
}

func TestImageMimeAndExtSniffsWhenUndeclared(t *testing.T) {
	pngHeader := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")
	b := schema.ContentBlock{Type: schema.BlockImage}
	mimeType, ext := imageMimeAndExt(b, pngHeader)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, ".png", ext)
}

func TestImageMimeAndExtFallsBackToBin(t *testing.T) {
	b := schema.ContentBlock{Type: schema.BlockImage}
	_, ext := imageMimeAndExt(b, []byte("not an image"))
	assert.Equal(t, ".bin", ext)
}

func TestProcessImagesExtractsBase64ToFile(t *testing.T) {
	dir := t.TempDir()
	pngHeader := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")

	msg := schema.HumanMessage{BaseMessage: schema.BaseMessage{
		Role: schema.RoleHuman,
		Content: schema.BlockContent(
			schema.NewTextBlock("look at this"),
			schema.ContentBlock{Type: schema.BlockImage, Base64: base64.StdEncoding.EncodeToString(pngHeader)},
		),
	}}

	out, err := ProcessImages(dir, msg)
	require.NoError(t, err)

	blocks := out.Base().Content.Blocks
	require.Len(t, blocks, 2)
	img := blocks[1]
	assert.Empty(t, img.Base64)
	assert.Equal(t, "image/png", img.MimeType)
	require.NotEmpty(t, img.FileID)
	assert.Equal(t, ".png", filepath.Ext(img.FileID))

	raw, err := os.ReadFile(filepath.Join(dir, img.FileID))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, raw)
}
