package behavior

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forte-town/forte/internal/definition"
	"github.com/forte-town/forte/internal/logging"
	"github.com/forte-town/forte/internal/value"
)

// checkArity is exercised directly since a real plugin can't be produced
// here; Load's plugin.Open/Lookup/construct path has no third-party or
// in-process substitute (see DESIGN.md).

type fakeInstance struct {
	in, out []string
}

func (f *fakeInstance) Schedule(inputs []value.Value) ([]value.Value, error) { return nil, nil }
func (f *fakeInstance) InputNames() []string                                { return f.in }
func (f *fakeInstance) OutputNames() []string                               { return f.out }

func TestCheckArity_MatchingNamesLogsNothing(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, logging.LevelWarn, "test")
	def := &definition.Tree{
		TypeName:  "T",
		InputVars: []definition.Port{{Name: "A", Type: definition.TypeInt}, {Name: "B", Type: definition.TypeInt}},
	}
	checkArity(&fakeInstance{in: []string{"A", "B"}}, def, log)
	assert.Empty(t, buf.String())
}

func TestCheckArity_CountMismatchLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, logging.LevelWarn, "test")
	def := &definition.Tree{
		TypeName:  "T",
		InputVars: []definition.Port{{Name: "A", Type: definition.TypeInt}},
	}
	checkArity(&fakeInstance{in: []string{"A", "B"}}, def, log)
	out := buf.String()
	assert.Contains(t, out, "arity mismatch")
	assert.NotContains(t, out, "%!")
}

func TestCheckArity_NameMismatchLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, logging.LevelWarn, "test")
	def := &definition.Tree{
		TypeName:  "T",
		InputVars: []definition.Port{{Name: "A", Type: definition.TypeInt}},
	}
	checkArity(&fakeInstance{in: []string{"Z"}}, def, log)
	out := buf.String()
	assert.Contains(t, out, "arity mismatch")
	assert.True(t, strings.Contains(out, `"A"`) && strings.Contains(out, `"Z"`))
}
