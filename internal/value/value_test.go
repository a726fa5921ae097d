package value_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forte-town/forte/internal/definition"
	"github.com/forte-town/forte/internal/value"
)

func TestConvertType_Passthrough(t *testing.T) {
	v, err := value.ConvertType("hello", definition.TypeString)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestConvertType_Bool(t *testing.T) {
	cases := map[string]interface{}{
		"1": true, "true": true, "True": true, "TRUE": true, "t": true,
		"0": false, "false": false, "False": false, "FALSE": false, "f": false,
		"nonsense": nil,
	}
	for raw, want := range cases {
		v, err := value.ConvertType(raw, definition.TypeBool)
		require.NoError(t, err)
		assert.Equal(t, want, v, "raw=%q", raw)
	}
}

func TestConvertType_Int(t *testing.T) {
	v, err := value.ConvertType("42", definition.TypeInt)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = value.ConvertType("nope", definition.TypeInt)
	assert.Error(t, err)
}

func TestConvertType_Real(t *testing.T) {
	v, err := value.ConvertType("3.25", definition.TypeReal)
	require.NoError(t, err)
	assert.Equal(t, 3.25, v)
}

func TestConvertType_DateAndTime(t *testing.T) {
	v, err := value.ConvertType("2026-07-31T10:00:00Z", definition.TypeDateAndTime)
	require.NoError(t, err)
	assert.False(t, v.(interface{ IsZero() bool }).IsZero())

	_, err = value.ConvertType("2026-07-31T10:00:00", definition.TypeDateAndTime)
	require.NoError(t, err)
}

func TestConvertType_Any(t *testing.T) {
	v, err := value.ConvertType("INT#7", definition.TypeAny)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	_, err = value.ConvertType("no-hash-here", definition.TypeAny)
	assert.Error(t, err)
}

// P6: convert_type is idempotent for already-typed values.
func TestConvertType_IdempotentForStringValues(t *testing.T) {
	types := []definition.VarType{
		definition.TypeString, definition.TypeBool, definition.TypeInt,
		definition.TypeReal, definition.TypeTime,
	}
	raws := map[definition.VarType]string{
		definition.TypeString: "hello",
		definition.TypeBool:   "true",
		definition.TypeInt:    "9",
		definition.TypeReal:   "1.5",
		definition.TypeTime:   "T#1s",
	}
	for _, typ := range types {
		raw := raws[typ]
		once, err := value.ConvertType(raw, typ)
		require.NoError(t, err)
		twice, err := value.ConvertType(fmt.Sprint(once), typ)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}
