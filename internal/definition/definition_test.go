package definition_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forte-town/forte/internal/definition"
	"github.com/forte-town/forte/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(&bytes.Buffer{}, logging.LevelDebug, "test")
}

const switchFBT = `<FBType Name="E_SWITCH">
  <InterfaceList>
    <EventInputs><Event Name="EI"/></EventInputs>
    <EventOutputs><Event Name="EO0"/><Event Name="EO1"/></EventOutputs>
    <InputVars><VarDeclaration Name="G" Type="BOOL"/></InputVars>
    <OutputVars></OutputVars>
  </InterfaceList>
</FBType>`

func TestParse_SwitchType(t *testing.T) {
	tree, err := definition.Parse([]byte(switchFBT), "E_SWITCH", testLogger())
	require.NoError(t, err)

	require.Len(t, tree.EventInputs, 1)
	assert.Equal(t, "EI", tree.EventInputs[0].Name)
	require.Len(t, tree.EventOutputs, 2)
	assert.Equal(t, "EO0", tree.EventOutputs[0].Name)
	require.Len(t, tree.InputVars, 1)
	assert.Equal(t, definition.TypeBool, tree.InputVars[0].Type)
	assert.NotNil(t, tree.Raw)
}

func TestParse_MissingNameIsFatal(t *testing.T) {
	const xml = `<FBType Name="Bad"><InterfaceList><InputVars><VarDeclaration Type="BOOL"/></InputVars></InterfaceList></FBType>`
	_, err := definition.Parse([]byte(xml), "Bad", testLogger())
	require.Error(t, err)
	var missing *definition.ErrMissingName
	assert.ErrorAs(t, err, &missing)
}

func TestParse_UnrecognizedVarTypeCoercesToString(t *testing.T) {
	const xml = `<FBType Name="X"><InterfaceList><InputVars><VarDeclaration Name="V" Type="Widget"/></InputVars></InterfaceList></FBType>`
	tree, err := definition.Parse([]byte(xml), "X", testLogger())
	require.NoError(t, err)
	require.Len(t, tree.InputVars, 1)
	assert.Equal(t, definition.TypeString, tree.InputVars[0].Type)
}

func TestParse_NonEventTypeOnEventPortCoercesToEvent(t *testing.T) {
	const xml = `<FBType Name="X"><InterfaceList><EventInputs><Event Name="EI" Type="BOOL"/></EventInputs></InterfaceList></FBType>`
	tree, err := definition.Parse([]byte(xml), "X", testLogger())
	require.NoError(t, err)
	require.Len(t, tree.EventInputs, 1)
	assert.Equal(t, definition.TypeEvent, tree.EventInputs[0].Type)
}
