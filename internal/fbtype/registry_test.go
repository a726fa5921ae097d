package fbtype_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forte-town/forte/internal/fbtype"
	"github.com/forte-town/forte/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(&bytes.Buffer{}, logging.LevelDebug, "test")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNew_ResolvesCompletePairs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "E_SWITCH.fbt"), "<FBType/>")
	writeFile(t, filepath.Join(root, "E_SWITCH.so"), "")

	reg, err := fbtype.New(root, testLogger())
	require.NoError(t, err)

	dir, err := reg.Resolve("E_SWITCH")
	require.NoError(t, err)
	assert.Equal(t, root, dir)
}

func TestNew_SkipsIncompletePairs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ORPHAN.fbt"), "<FBType/>")

	reg, err := fbtype.New(root, testLogger())
	require.NoError(t, err)

	_, err = reg.Resolve("ORPHAN")
	assert.ErrorIs(t, err, fbtype.ErrUnknownType)
}

func TestDefinitionAndBehaviorPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "X.fbt"), "<FBType/>")
	writeFile(t, filepath.Join(root, "X.so"), "")

	reg, err := fbtype.New(root, testLogger())
	require.NoError(t, err)

	defPath, err := reg.DefinitionPath("X")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "X.fbt"), defPath)

	behPath, err := reg.BehaviorPath("X")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "X.so"), behPath)
}
