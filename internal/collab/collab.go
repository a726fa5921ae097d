// Package collab defines the narrow interfaces the core calls out to for
// systems explicitly out of scope (OPC-UA bridging, hardware telemetry,
// the self-organizing agent). Remote type catalogs have no interface here.
// Production wiring uses the no-op defaults below; a test can substitute its
// own implementation of any of them.
package collab

import "github.com/forte-town/forte/internal/definition"

// OPCUABridge publishes a loaded type's raw definition tree to an OPC-UA
// information model. Out of scope beyond this call site.
type OPCUABridge interface {
	PublishDefinition(tree *definition.Tree)
}

// TelemetryMonitor observes named events against an FB for external
// hardware-telemetry correlation. Out of scope beyond this call site.
type TelemetryMonitor interface {
	Observe(fbName string, event string)
}

// Agent notifies a self-organizing agent of configuration-level events.
// Out of scope beyond this call site.
type Agent interface {
	Notify(configID string, event string)
}

type noop struct{}

func (noop) PublishDefinition(*definition.Tree) {}
func (noop) Observe(string, string)             {}
func (noop) Notify(string, string)              {}

// NoopOPCUABridge, NoopTelemetryMonitor, and NoopAgent are the production
// defaults: the core calls out to them but they do nothing.
var (
	NoopOPCUABridge      OPCUABridge      = noop{}
	NoopTelemetryMonitor TelemetryMonitor = noop{}
	NoopAgent            Agent            = noop{}
)

// Bundle groups the three collaborators a Server needs, so callers pass one
// value instead of three.
type Bundle struct {
	OPCUA     OPCUABridge
	Telemetry TelemetryMonitor
	Agent     Agent
}

// Default returns a Bundle wired to the no-op implementations.
func Default() Bundle {
	return Bundle{OPCUA: NoopOPCUABridge, Telemetry: NoopTelemetryMonitor, Agent: NoopAgent}
}
