// Package value implements the constant-parsing rules of spec.md 4.5
// (convert_type) and the runtime value representation shared by ports,
// behaviors, and the graph.
package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/forte-town/forte/internal/definition"
)

// Value is a port's runtime value. nil means "unset".
type Value interface{}

// ConvertType parses raw per the destination port's declared type, following
// spec.md 4.5 exactly:
//
//   - WSTRING/STRING/TIME: passthrough (string)
//   - BOOL: {1,true,True,TRUE,t} -> true; {0,false,False,FALSE,f} -> false; other -> unset (nil)
//   - INT/UINT/Event: decimal integer
//   - REAL/LREAL: IEEE 754 float
//   - DATE_AND_TIME: ISO-8601; local zone attached if none given
//   - ANY: "<TYPE>#<lexeme>", recurse with that type
func ConvertType(raw string, declared definition.VarType) (Value, error) {
	switch declared {
	case definition.TypeString, definition.TypeTime:
		return raw, nil

	case definition.TypeBool:
		switch raw {
		case "1", "true", "True", "TRUE", "t":
			return true, nil
		case "0", "false", "False", "FALSE", "f":
			return false, nil
		default:
			return nil, nil
		}

	case definition.TypeInt, definition.TypeEvent:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value: %q is not a decimal integer: %w", raw, err)
		}
		return n, nil

	case definition.TypeReal:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("value: %q is not a float: %w", raw, err)
		}
		return f, nil

	case definition.TypeDateAndTime:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		// No timezone in the lexeme: parse as local and attach local zone.
		layout := "2006-01-02T15:04:05"
		t, err := time.ParseInLocation(layout, raw, time.Local)
		if err != nil {
			return nil, fmt.Errorf("value: %q is not a valid DATE_AND_TIME: %w", raw, err)
		}
		return t, nil

	case definition.TypeAny:
		typeName, lexeme, ok := strings.Cut(raw, "#")
		if !ok {
			return nil, fmt.Errorf("value: ANY constant %q is not of the form <TYPE>#<lexeme>", raw)
		}
		resolved, ok := lookupVarType(typeName)
		if !ok {
			return nil, fmt.Errorf("value: ANY constant names unknown type %q", typeName)
		}
		return ConvertType(lexeme, resolved)

	default:
		return raw, nil
	}
}

func lookupVarType(name string) (definition.VarType, bool) {
	switch name {
	case "STRING", "WSTRING":
		return definition.TypeString, true
	case "BOOL":
		return definition.TypeBool, true
	case "INT", "UINT":
		return definition.TypeInt, true
	case "REAL", "LREAL":
		return definition.TypeReal, true
	case "TIME":
		return definition.TypeTime, true
	case "DATE_AND_TIME":
		return definition.TypeDateAndTime, true
	case "ANY":
		return definition.TypeAny, true
	default:
		return "", false
	}
}
