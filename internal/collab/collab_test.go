package collab_test

import (
	"testing"

	"github.com/forte-town/forte/internal/collab"
	"github.com/forte-town/forte/internal/definition"
)

// These no-op collaborators only need to satisfy their interfaces and never
// panic; production wiring relies on that, since the core calls them
// unconditionally whenever OPC-UA, telemetry, or agent support is disabled.
func TestDefault_NeverPanics(t *testing.T) {
	b := collab.Default()
	b.OPCUA.PublishDefinition(&definition.Tree{TypeName: "X"})
	b.Telemetry.Observe("A", "created")
	b.Agent.Notify("cfg-1", "start_work")
}
