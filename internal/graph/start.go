package graph

import (
	"github.com/forte-town/forte/internal/behavior"
	"github.com/forte-town/forte/internal/definition"
	"github.com/forte-town/forte/internal/value"
)

// startResourceType names the synthetic FB that every Configuration carries
// (spec.md 3). It has no inputs and a single event output, COLD.
const startResourceType = "START"

// coldEventPort is the name of START's single event output.
const coldEventPort = "COLD"

// startDefinition builds the (synthetic, file-less) interface for START.
func startDefinition() *definition.Tree {
	return &definition.Tree{
		TypeName:     startResourceType,
		EventOutputs: []definition.Port{{Name: coldEventPort, Type: definition.TypeEvent}},
	}
}

// startBehavior is START's native schedule: no inputs, no output variables,
// a single output event (COLD) that always fires.
type startBehavior struct{}

func (startBehavior) Schedule(inputs []value.Value) ([]value.Value, error) {
	return []value.Value{true}, nil
}
func (startBehavior) InputNames() []string  { return nil }
func (startBehavior) OutputNames() []string { return nil }

var _ behavior.Instance = startBehavior{}
