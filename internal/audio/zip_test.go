package audio

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipFiles(t *testing.T) {
	archive, err := ZipFiles([]File{
		{Name: "stem_1.wav", Data: []byte("kick")},
		{Name: "stem_2.wav", Data: []byte("bass")},
	})
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, reader.File, 2)

	entry, err := reader.File[0].Open()
	require.NoError(t, err)
	defer entry.Close()

	data, err := io.ReadAll(entry)
	require.NoError(t, err)
	assert.Equal(t, "stem_1.wav", reader.File[0].Name)
	assert.Equal(t, "kick", string(data))
}

func TestZipFilesEmpty(t *testing.T) {
	archive, err := ZipFiles(nil)
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	assert.Empty(t, reader.File)
}

func TestProcessingFallsBackWhenToolMissing(t *testing.T) {
	prev := SetFFmpegBinary("ffmpeg-unavailable-for-tests")
	t.Cleanup(func() { SetFFmpegBinary(prev) })

	input := []byte("raw-audio")
	assert.Equal(t, input, NormalizeLoudness(context.Background(), input))
	assert.Equal(t, input, RenderLoop(context.Background(), input, 0.35))
}
