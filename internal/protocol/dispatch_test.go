package protocol

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forte-town/forte/internal/collab"
	"github.com/forte-town/forte/internal/fbtype"
	"github.com/forte-town/forte/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(&bytes.Buffer{}, logging.LevelDebug, "test")
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()
	reg, err := fbtype.New(root, testLogger())
	require.NoError(t, err)
	return NewServer("localhost:0", root, reg, collab.Default(), testLogger())
}

func decodeResponse(t *testing.T, raw []byte) rawResponse {
	t.Helper()
	var r rawResponse
	require.NoError(t, xml.Unmarshal(raw, &r))
	return r
}

func TestDispatchGeneral_CreateListDeleteConfiguration(t *testing.T) {
	s := newTestServer(t)

	create := rawRequest{Action: "CREATE", ID: "1", Configuration: &rawConfigRef{ID: "cfg-a"}}
	resp := decodeResponse(t, s.dispatchGeneral(create))
	assert.Equal(t, "OK", resp.Status)

	dup := decodeResponse(t, s.dispatchGeneral(create))
	assert.Equal(t, "FAIL", dup.Status)

	list := decodeResponse(t, s.dispatchGeneral(rawRequest{Action: "LIST", ID: "2"}))
	assert.Equal(t, "OK", list.Status)
	require.Len(t, list.IDs, 1)
	assert.Equal(t, "cfg-a", list.IDs[0].ID)

	del := decodeResponse(t, s.dispatchGeneral(rawRequest{Action: "DELETE", ID: "3", Configuration: &rawConfigRef{ID: "cfg-a"}}))
	assert.Equal(t, "OK", del.Status)

	list2 := decodeResponse(t, s.dispatchGeneral(rawRequest{Action: "LIST", ID: "4"}))
	assert.Empty(t, list2.IDs)
}

func TestDispatchConfig_UnknownConfiguration(t *testing.T) {
	s := newTestServer(t)
	resp := decodeResponse(t, s.dispatchConfig("ghost", rawRequest{Action: "START", ID: "1"}, "", nil))
	assert.Equal(t, "FAIL", resp.Status)
}

func TestDispatchConfig_FailedCreateIsNotPersisted(t *testing.T) {
	s := newTestServer(t)
	create := rawRequest{Action: "CREATE", ID: "1", Configuration: &rawConfigRef{ID: "cfg-b"}}
	require.Equal(t, "OK", decodeResponse(t, s.dispatchGeneral(create)).Status)

	var cursor time.Time
	req := rawRequest{Action: "CREATE", ID: "2", Connection: &rawConnection{Source: "START.COLD", Destination: "Ghost.INIT"}}
	resp := decodeResponse(t, s.dispatchConfig("cfg-b", req, "<Request/>", &cursor))
	assert.Equal(t, "FAIL", resp.Status, "connecting to a nonexistent FB must fail, not persist")

	_, err := os.Stat(filepath.Join(s.resourcesRoot, "cfg-b.fboot"))
	assert.True(t, os.IsNotExist(err), "a failed CREATE must not be written to the .fboot log")
}
