package graph

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forte-town/forte/internal/behavior"
	"github.com/forte-town/forte/internal/collab"
	"github.com/forte-town/forte/internal/definition"
	"github.com/forte-town/forte/internal/fbinstance"
	"github.com/forte-town/forte/internal/logging"
	"github.com/forte-town/forte/internal/value"
)

func testLogger() *logging.Logger {
	return logging.New(&bytes.Buffer{}, logging.LevelDebug, "test")
}

type fakeBehavior struct {
	fn func([]value.Value) ([]value.Value, error)
}

func (f *fakeBehavior) Schedule(inputs []value.Value) ([]value.Value, error) { return f.fn(inputs) }
func (f *fakeBehavior) InputNames() []string                                 { return nil }
func (f *fakeBehavior) OutputNames() []string                                { return nil }

var _ behavior.Instance = (*fakeBehavior)(nil)

func fbDef(name string, inputEvents, outputEvents []string, inputVars []definition.Port) *definition.Tree {
	t := &definition.Tree{TypeName: name}
	for _, n := range inputEvents {
		t.EventInputs = append(t.EventInputs, definition.Port{Name: n, Type: definition.TypeEvent})
	}
	for _, n := range outputEvents {
		t.EventOutputs = append(t.EventOutputs, definition.Port{Name: n, Type: definition.TypeEvent})
	}
	t.InputVars = inputVars
	return t
}

// newTestConfig builds a Config with a START instance but no registry
// (CreateFB is not exercised here; FBs are inserted directly via
// addFB, since loading a real behavior plugin requires a compiled .so).
func newTestConfig() *Config {
	return New("test", nil, collab.Default(), testLogger())
}

func (c *Config) addFB(name, typeName string, def *definition.Tree, beh behavior.Instance) *fbinstance.Instance {
	fb := fbinstance.New(name, typeName, def, beh, nil, c.log)
	c.fbs[name] = fb
	c.order = append(c.order, name)
	return fb
}

func noopBehavior() *fakeBehavior {
	return &fakeBehavior{fn: func([]value.Value) ([]value.Value, error) { return []value.Value{}, nil }}
}

func TestSplitRef(t *testing.T) {
	fb, port, err := splitRef("a.b.OUT")
	require.NoError(t, err)
	assert.Equal(t, "a.b", fb)
	assert.Equal(t, "OUT", port)

	_, _, err = splitRef("noport")
	assert.ErrorIs(t, err, ErrBadRef)
}

// $e law (spec.md 8): write_connection("$e", ...) on a fresh FB sets the
// counter to 1; repeating N times leaves it at N.
func TestWriteConnection_EventPulseLaw(t *testing.T) {
	c := newTestConfig()
	c.addFB("Y", "T", fbDef("T", []string{"E"}, nil, nil), noopBehavior())

	for i := 1; i <= 3; i++ {
		require.NoError(t, c.WriteConnection("$e", "Y.E"))
		got, err := c.fbs["Y"].EventCounter("E")
		require.NoError(t, err)
		assert.EqualValues(t, i, got)
	}
}

func TestWriteConnection_ParsesConstantByDeclaredType(t *testing.T) {
	c := newTestConfig()
	c.addFB("X", "T", fbDef("T", nil, nil, []definition.Port{{Name: "N", Type: definition.TypeInt}}), noopBehavior())

	require.NoError(t, c.WriteConnection("42", "X.N"))
	v, ok := c.fbs["X"].InputVarValue("N")
	require.True(t, ok)
	assert.EqualValues(t, 42, v)
}

func TestCreateConnection_UnknownFB(t *testing.T) {
	c := newTestConfig()
	err := c.CreateConnection("Ghost.OUT", "START.COLD")
	assert.ErrorIs(t, err, ErrNoSuchFB)
}

func TestApplyInitAutoWiring_WiresUnwiredINIT(t *testing.T) {
	c := newTestConfig()
	c.addFB("A", "T", fbDef("T", []string{"INIT"}, nil, nil), noopBehavior())
	c.addFB("B", "T", fbDef("T", []string{"INIT"}, nil, nil), noopBehavior())

	// B is already wired to something else; it must be left alone.
	other := c.addFB("Other", "T", fbDef("T", nil, []string{"OUT"}, nil), noopBehavior())
	require.NoError(t, other.ConnectEvent("OUT", c.fbs["B"], "INIT"))

	require.NoError(t, c.ApplyInitAutoWiring())

	start := c.fbs["START"]
	wiredToA := false
	start.EdgeDestinations(coldEventPort, func(dst string) {
		if dst == "A" {
			wiredToA = true
		}
	})
	assert.True(t, wiredToA)

	wiredToB := false
	start.EdgeDestinations(coldEventPort, func(dst string) {
		if dst == "B" {
			wiredToB = true
		}
	})
	assert.False(t, wiredToB, "B already had an INIT edge from Other, should not get a second one from START")
}

// spec.md 4.5/8: a heterogeneous-kind wire (event source to a variable-only
// destination) is not rejected, only logged.
func TestCreateConnection_KindMismatchIsPermittedAndWarned(t *testing.T) {
	var logBuf bytes.Buffer
	c := New("test", nil, collab.Default(), logging.New(&logBuf, logging.LevelDebug, "test"))
	c.addFB("A", "T", fbDef("T", nil, []string{"OUT"}, nil), noopBehavior())
	c.addFB("B", "T", fbDef("T", nil, nil, []definition.Port{{Name: "N", Type: definition.TypeInt}}), noopBehavior())

	err := c.CreateConnection("A.OUT", "B.N")
	require.NoError(t, err, "a kind mismatch must not fail the connection")
	assert.Contains(t, logBuf.String(), "kept per permissive fan-out rules")
}

func TestReadWatches_OmitsEmptyGroups(t *testing.T) {
	c := newTestConfig()
	firesEO := &fakeBehavior{fn: func([]value.Value) ([]value.Value, error) { return []value.Value{true}, nil }}
	fb := c.addFB("A", "T", fbDef("T", []string{"EI"}, []string{"EO"}, nil), firesEO)
	require.NoError(t, fb.SetWatch("EO", true))

	require.NoError(t, fb.Invoke())

	groups := c.ReadWatches(time.Time{})
	require.Len(t, groups, 1)
	assert.Equal(t, "A", groups[0].FB)
	assert.Contains(t, groups[0].Ports, "EO")

	// Watch drain law: reading again immediately returns nothing new.
	groups = c.ReadWatches(time.Time{})
	assert.Empty(t, groups)
}
