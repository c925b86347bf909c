package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressZstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	content := []byte("line one\nline two\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	out, err := CompressZstd(path)
	require.NoError(t, err)
	assert.Equal(t, path+CompressedSuffix, out)
	assert.NoFileExists(t, path)

	compressed, err := os.ReadFile(out)
	require.NoError(t, err)

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()

	plain, err := dec.DecodeAll(compressed, nil)
	require.NoError(t, err)
	assert.Equal(t, content, plain)
}
