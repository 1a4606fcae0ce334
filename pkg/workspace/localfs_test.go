package workspace_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyasuSeidu/forge-sub004/pkg/workspace"
)

func TestLocalFS_WriteThenRead(t *testing.T) {
	fs, err := workspace.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, "src/main.go", []byte("package main")))

	exists, err := fs.Exists(ctx, "src/main.go")
	require.NoError(t, err)
	assert.True(t, exists)

	content, err := fs.Read(ctx, "src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main", string(content))
}

func TestLocalFS_ExistsFalseForMissingPath(t *testing.T) {
	fs, err := workspace.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	exists, err := fs.Exists(context.Background(), "does/not/exist.go")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalFS_RejectsPathEscapingRoot(t *testing.T) {
	root := t.TempDir()
	fs, err := workspace.NewLocalFS(root)
	require.NoError(t, err)

	_, err = fs.Read(context.Background(), "../../etc/passwd")
	assert.Error(t, err)

	err = fs.Write(context.Background(), "../outside.txt", []byte("x"))
	assert.Error(t, err)
}

func TestLocalFS_WriteCreatesIntermediateDirectories(t *testing.T) {
	root := t.TempDir()
	fs, err := workspace.NewLocalFS(root)
	require.NoError(t, err)

	require.NoError(t, fs.Write(context.Background(), "a/b/c/file.txt", []byte("nested")))

	full := filepath.Join(root, "a", "b", "c", "file.txt")
	assert.FileExists(t, full)
}
