// Package definition parses the XML describing a function-block type: its
// event and variable ports. Validation failures other than a missing port
// name are non-fatal (warn and coerce), per spec.md 4.2.
package definition

import (
	"encoding/xml"
	"fmt"
	"os"

	"github.com/forte-town/forte/internal/logging"
)

// VarType is the declared type of a variable port, coerced to one of a
// fixed set of recognized kinds.
type VarType string

const (
	TypeString      VarType = "String"
	TypeBool        VarType = "BOOL"
	TypeInt         VarType = "INT"
	TypeReal        VarType = "REAL"
	TypeTime        VarType = "TIME"
	TypeDateAndTime VarType = "DATE_AND_TIME"
	TypeAny         VarType = "ANY"
	TypeEvent       VarType = "Event"
)

var recognizedVarTypes = map[string]VarType{
	"STRING":        TypeString,
	"WSTRING":       TypeString,
	"BOOL":          TypeBool,
	"INT":           TypeInt,
	"UINT":          TypeInt,
	"REAL":          TypeReal,
	"LREAL":         TypeReal,
	"TIME":          TypeTime,
	"DATE_AND_TIME": TypeDateAndTime,
	"ANY":           TypeAny,
}

// Port describes one named port in a type's interface.
type Port struct {
	Name string
	Type VarType
}

// Tree holds the parsed ports for one FB type, plus the raw XML tree kept
// around for the OPC-UA collaborator (spec.md 4.2).
type Tree struct {
	TypeName     string
	EventInputs  []Port
	EventOutputs []Port
	InputVars    []Port
	OutputVars   []Port
	Raw          *rawFBType
}

// ErrMissingName is a hard error: a port with no Name attribute.
type ErrMissingName struct {
	Section string
}

func (e *ErrMissingName) Error() string {
	return fmt.Sprintf("definition: missing Name attribute in %s", e.Section)
}

// --- raw XML shape -----------------------------------------------------

type rawFBType struct {
	XMLName       xml.Name     `xml:"FBType"`
	Name          string       `xml:"Name,attr"`
	InterfaceList rawInterface `xml:"InterfaceList"`
}

type rawInterface struct {
	EventInputs  []rawVar `xml:"EventInputs>Event"`
	EventOutputs []rawVar `xml:"EventOutputs>Event"`
	InputVars    []rawVar `xml:"InputVars>VarDeclaration"`
	OutputVars   []rawVar `xml:"OutputVars>VarDeclaration"`
}

type rawVar struct {
	Name string `xml:"Name,attr"`
	Type string `xml:"Type,attr"`
}

// Load reads and parses path, producing a Tree for typeName.
func Load(path, typeName string, log *logging.Logger) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("definition: reading %s: %w", path, err)
	}
	return Parse(data, typeName, log)
}

// Parse parses the raw XML bytes of an .fbt file.
func Parse(data []byte, typeName string, log *logging.Logger) (*Tree, error) {
	var raw rawFBType
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("definition: parsing %s: %w", typeName, err)
	}

	t := &Tree{TypeName: typeName, Raw: &raw}

	events := func(section string, in []rawVar) ([]Port, error) {
		out := make([]Port, 0, len(in))
		for _, v := range in {
			if v.Name == "" {
				return nil, &ErrMissingName{Section: section}
			}
			if v.Type != "Event" && v.Type != "" {
				log.Warn("%s: event port %q declared type %q, coercing to Event", typeName, v.Name, v.Type)
			}
			out = append(out, Port{Name: v.Name, Type: TypeEvent})
		}
		return out, nil
	}

	vars := func(section string, in []rawVar) ([]Port, error) {
		out := make([]Port, 0, len(in))
		for _, v := range in {
			if v.Name == "" {
				return nil, &ErrMissingName{Section: section}
			}
			vt, ok := recognizedVarTypes[v.Type]
			if !ok {
				log.Warn("%s: variable port %q declared unrecognized type %q, coercing to String", typeName, v.Name, v.Type)
				vt = TypeString
			}
			out = append(out, Port{Name: v.Name, Type: vt})
		}
		return out, nil
	}

	var err error
	if t.EventInputs, err = events("EventInputs", raw.InterfaceList.EventInputs); err != nil {
		return nil, err
	}
	if t.EventOutputs, err = events("EventOutputs", raw.InterfaceList.EventOutputs); err != nil {
		return nil, err
	}
	if t.InputVars, err = vars("InputVars", raw.InterfaceList.InputVars); err != nil {
		return nil, err
	}
	if t.OutputVars, err = vars("OutputVars", raw.InterfaceList.OutputVars); err != nil {
		return nil, err
	}
	return t, nil
}
