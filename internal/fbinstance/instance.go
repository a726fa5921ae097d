// Package fbinstance holds one function-block instance's port state and its
// execution worker (spec.md 4.4). A schedule invocation takes InputVars only
// (event inputs drive scheduling rather than being passed as arguments; the
// loader's arity check in internal/behavior follows the same convention) but
// returns a vector covering every output port, event outputs first in
// declaration order and then variable outputs: for an event output, a nil
// element leaves its counter unset/unchanged, any non-nil element fires it.
// This lets one behavior route to one of several declared event outputs
// (e.g. a boolean switch firing EO0 xor EO1), matching spec.md 4.4 step 7
// and the worked example in spec.md 8 scenario 1; see DESIGN.md.
package fbinstance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/forte-town/forte/internal/behavior"
	"github.com/forte-town/forte/internal/definition"
	"github.com/forte-town/forte/internal/logging"
	"github.com/forte-town/forte/internal/value"
)

// EventPort is an event input or output: a monotonically increasing,
// non-negative counter. A fresh port is unset; the first push sets it to 1.
type EventPort struct {
	mu      sync.Mutex
	set     bool
	counter int64
	Watch   bool
	Buf     *Ring
}

func (p *EventPort) snapshot() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counter
}

func (p *EventPort) push() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set = true
	p.counter++
	return p.counter
}

// VarPort is a typed, single-valued data input or output.
type VarPort struct {
	mu    sync.Mutex
	Value value.Value
	Type  definition.VarType
	Watch bool
	Buf   *Ring
}

func (p *VarPort) get() value.Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Value
}

func (p *VarPort) set(v value.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Value = v
}

// Edge is a resolved, pre-computed outbound connection from one of this
// FB's output ports to a destination FB's input port. Resolving edges to
// direct pointers at connection time (rather than by name lookup on every
// delivery) is what lets concurrent schedule workers only read the shared
// FB dictionary (spec.md 5).
type Edge struct {
	Dst     *Instance
	DstPort string
}

// Instance is one running (or not-yet-started) function block.
type Instance struct {
	Name string
	Type string
	Def  *definition.Tree
	log  *logging.Logger

	behaviorMu sync.Mutex
	behavior   behavior.Instance
	reload     *behavior.Reloader // nil when the type has no reload watcher

	inputEvents  map[string]*EventPort
	inputVars    map[string]*VarPort
	outputEvents map[string]*EventPort
	outputVars   map[string]*VarPort

	inputVarOrder    []string
	outputVarOrder   []string
	eventOutputOrder []string

	edgesMu          sync.Mutex
	outputEventEdges map[string][]Edge
	outputVarEdges   map[string][]Edge

	trigger chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// New builds an Instance with unset ports for every port the definition
// declares. beh must be non-nil, since Invoke calls it (the synthetic START
// resource, which is never run as a worker, is still invoked once by
// start_work). reload may be nil when the FB has no reload watcher, as for
// START.
func New(name, typeName string, def *definition.Tree, beh behavior.Instance, reload *behavior.Reloader, log *logging.Logger) *Instance {
	fb := &Instance{
		Name:             name,
		Type:             typeName,
		Def:              def,
		log:              log.Named(name),
		behavior:         beh,
		reload:           reload,
		inputEvents:      make(map[string]*EventPort, len(def.EventInputs)),
		inputVars:        make(map[string]*VarPort, len(def.InputVars)),
		outputEvents:     make(map[string]*EventPort, len(def.EventOutputs)),
		outputVars:       make(map[string]*VarPort, len(def.OutputVars)),
		outputEventEdges: make(map[string][]Edge),
		outputVarEdges:   make(map[string][]Edge),
		trigger:          make(chan struct{}, 1),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
	for _, p := range def.EventInputs {
		fb.inputEvents[p.Name] = &EventPort{Buf: NewRing(DefaultRingCapacity)}
	}
	for _, p := range def.InputVars {
		fb.inputVars[p.Name] = &VarPort{Type: p.Type, Buf: NewRing(DefaultRingCapacity)}
		fb.inputVarOrder = append(fb.inputVarOrder, p.Name)
	}
	for _, p := range def.EventOutputs {
		fb.outputEvents[p.Name] = &EventPort{Buf: NewRing(DefaultRingCapacity)}
		fb.eventOutputOrder = append(fb.eventOutputOrder, p.Name)
	}
	for _, p := range def.OutputVars {
		fb.outputVars[p.Name] = &VarPort{Type: p.Type, Buf: NewRing(DefaultRingCapacity)}
		fb.outputVarOrder = append(fb.outputVarOrder, p.Name)
	}
	return fb
}

// ErrUnknownPort is returned when a name resolves to no declared port.
type ErrUnknownPort struct {
	FB, Port string
}

func (e *ErrUnknownPort) Error() string {
	return fmt.Sprintf("fbinstance: %s has no port %q", e.FB, e.Port)
}

// ConnectEvent registers an outbound edge from one of fb's event outputs.
// Only the source port's kind is validated here: spec.md 4.5/8 permits a
// connection to a destination port of the wrong kind (or one that doesn't
// exist at all) rather than rejecting it — callers are expected to warn on
// that mismatch, and delivery itself logs and skips if dstPort turns out not
// to be a declared input event.
func (fb *Instance) ConnectEvent(srcPort string, dst *Instance, dstPort string) error {
	if _, ok := fb.outputEvents[srcPort]; !ok {
		return &ErrUnknownPort{FB: fb.Name, Port: srcPort}
	}
	fb.edgesMu.Lock()
	defer fb.edgesMu.Unlock()
	fb.outputEventEdges[srcPort] = append(fb.outputEventEdges[srcPort], Edge{Dst: dst, DstPort: dstPort})
	return nil
}

// ConnectVar registers an outbound edge from one of fb's variable outputs.
// Same permissive-destination rule as ConnectEvent.
func (fb *Instance) ConnectVar(srcPort string, dst *Instance, dstPort string) error {
	if _, ok := fb.outputVars[srcPort]; !ok {
		return &ErrUnknownPort{FB: fb.Name, Port: srcPort}
	}
	fb.edgesMu.Lock()
	defer fb.edgesMu.Unlock()
	fb.outputVarEdges[srcPort] = append(fb.outputVarEdges[srcPort], Edge{Dst: dst, DstPort: dstPort})
	return nil
}

// HasEventInput and HasVarInput report whether fb declares a given input
// port, for Configuration's INIT auto-wiring and its connection kind check.
func (fb *Instance) HasEventInput(name string) bool { _, ok := fb.inputEvents[name]; return ok }
func (fb *Instance) HasVarInput(name string) bool   { _, ok := fb.inputVars[name]; return ok }

// VarType returns the declared type of a variable input port.
func (fb *Instance) VarType(name string) (definition.VarType, bool) {
	p, ok := fb.inputVars[name]
	if !ok {
		return "", false
	}
	return p.Type, true
}

// EventCounter returns the current counter of an input event port (0 if
// unset), used by write_connection's "$e" pulse to compute counter+1.
func (fb *Instance) EventCounter(name string) (int64, error) {
	p, ok := fb.inputEvents[name]
	if !ok {
		return 0, &ErrUnknownPort{FB: fb.Name, Port: name}
	}
	return p.snapshot(), nil
}

// InputVarValue, OutputVarValue, OutputEventCounter are introspection
// accessors used by tests and by a future read_attr surface (spec.md 8,
// scenario 3); they report (zero-value, false) for an unknown port name
// rather than an error, since callers typically just want a snapshot.
func (fb *Instance) InputVarValue(name string) (value.Value, bool) {
	p, ok := fb.inputVars[name]
	if !ok {
		return nil, false
	}
	return p.get(), true
}

func (fb *Instance) OutputVarValue(name string) (value.Value, bool) {
	p, ok := fb.outputVars[name]
	if !ok {
		return nil, false
	}
	return p.get(), true
}

func (fb *Instance) OutputEventCounter(name string) (int64, bool) {
	p, ok := fb.outputEvents[name]
	if !ok {
		return 0, false
	}
	return p.snapshot(), true
}

// ReceiveEvent increments an input event port's counter and wakes fb's
// worker. Multiple pushes before the worker wakes coalesce into one
// trigger, per spec.md 4.6.
func (fb *Instance) ReceiveEvent(portName string) error {
	p, ok := fb.inputEvents[portName]
	if !ok {
		return &ErrUnknownPort{FB: fb.Name, Port: portName}
	}
	p.push()
	fb.Trigger()
	return nil
}

// SeedEvent sets an input event port's counter directly (used for the
// initial "$e" write_connection pulse, which does not go through a live
// edge) and wakes the worker exactly like ReceiveEvent.
func (fb *Instance) SeedEvent(portName string, counter int64) error {
	p, ok := fb.inputEvents[portName]
	if !ok {
		return &ErrUnknownPort{FB: fb.Name, Port: portName}
	}
	p.mu.Lock()
	p.set = true
	p.counter = counter
	p.mu.Unlock()
	fb.Trigger()
	return nil
}

// WriteVar overwrites an input variable port's value. Does not trigger the
// worker; downstream FBs see the new value at their next event-driven
// schedule (spec.md 4.6).
func (fb *Instance) WriteVar(portName string, v value.Value) error {
	p, ok := fb.inputVars[portName]
	if !ok {
		return &ErrUnknownPort{FB: fb.Name, Port: portName}
	}
	p.set(v)
	return nil
}

// Trigger signals the worker's one-place, coalescing event-pending flag.
func (fb *Instance) Trigger() {
	select {
	case fb.trigger <- struct{}{}:
	default:
	}
}

// SetWatch toggles the watch flag on any named port, event or variable,
// input or output.
func (fb *Instance) SetWatch(portName string, enabled bool) error {
	if p, ok := fb.inputEvents[portName]; ok {
		p.mu.Lock()
		p.Watch = enabled
		p.mu.Unlock()
		return nil
	}
	if p, ok := fb.outputEvents[portName]; ok {
		p.mu.Lock()
		p.Watch = enabled
		p.mu.Unlock()
		return nil
	}
	if p, ok := fb.inputVars[portName]; ok {
		p.mu.Lock()
		p.Watch = enabled
		p.mu.Unlock()
		return nil
	}
	if p, ok := fb.outputVars[portName]; ok {
		p.mu.Lock()
		p.Watch = enabled
		p.mu.Unlock()
		return nil
	}
	return &ErrUnknownPort{FB: fb.Name, Port: portName}
}

// DrainWatches drains every watched port's ring buffer for samples at or
// after cursor, returning a map of port name to samples. Ports with no
// matching samples are omitted, per spec.md 4.8.
func (fb *Instance) DrainWatches(cursor time.Time) map[string][]Sample {
	out := make(map[string][]Sample)
	drain := func(name string, watch bool, buf *Ring) {
		if !watch {
			return
		}
		samples := buf.Drain(cursor)
		if len(samples) > 0 {
			out[name] = samples
		}
	}
	for name, p := range fb.inputEvents {
		drain(name, p.Watch, p.Buf)
	}
	for name, p := range fb.outputEvents {
		drain(name, p.Watch, p.Buf)
	}
	for name, p := range fb.inputVars {
		drain(name, p.Watch, p.Buf)
	}
	for name, p := range fb.outputVars {
		drain(name, p.Watch, p.Buf)
	}
	return out
}

// Invoke runs one schedule cycle directly: snapshot inputs, call the
// behavior, apply and propagate outputs, sample watches. Used both by the
// worker loop and, once, directly by Configuration.start_work to fire
// START's boot schedule (spec.md 4.5), which has no worker of its own.
func (fb *Instance) Invoke() error {
	fb.tryReload()

	// Step 4: snapshot every input port's current value before invoking
	// schedule. Watch sampling of input ports (step 9) must use this same
	// snapshot, not whatever the port holds after schedule returns — a
	// concurrent write landing mid-invoke must not be attributed to an
	// invocation it didn't feed.
	inputs := make([]value.Value, len(fb.inputVarOrder))
	inputVarSnapshot := make(map[string]value.Value, len(fb.inputVarOrder))
	for i, name := range fb.inputVarOrder {
		v := fb.inputVars[name].get()
		inputs[i] = v
		inputVarSnapshot[name] = v
	}
	inputEventSnapshot := make(map[string]int64, len(fb.inputEvents))
	for name, p := range fb.inputEvents {
		inputEventSnapshot[name] = p.snapshot()
	}

	fb.behaviorMu.Lock()
	beh := fb.behavior
	fb.behaviorMu.Unlock()

	outputs, err := beh.Schedule(inputs)
	if err != nil {
		return fmt.Errorf("schedule error: %w", err)
	}
	if outputs == nil {
		return fmt.Errorf("schedule returned no output (NullOutput)")
	}
	wantLen := len(fb.eventOutputOrder) + len(fb.outputVarOrder)
	if len(outputs) != wantLen {
		return fmt.Errorf("schedule returned %d outputs, want %d", len(outputs), wantLen)
	}

	now := time.Now()
	fired := make([]string, 0, len(fb.eventOutputOrder))
	for i, name := range fb.eventOutputOrder {
		if outputs[i] != nil {
			fb.outputEvents[name].push()
			fired = append(fired, name)
		}
	}
	base := len(fb.eventOutputOrder)
	for i, name := range fb.outputVarOrder {
		fb.outputVars[name].set(outputs[base+i])
	}
	fb.propagateVars()
	fb.propagateEvents(fired)
	fb.sampleWatches(now, inputEventSnapshot, inputVarSnapshot)
	return nil
}

func (fb *Instance) propagateVars() {
	for _, name := range fb.outputVarOrder {
		v := fb.outputVars[name].get()
		fb.edgesMu.Lock()
		edges := fb.outputVarEdges[name]
		fb.edgesMu.Unlock()
		for _, e := range edges {
			if err := e.Dst.WriteVar(e.DstPort, v); err != nil {
				fb.log.Warn("propagating %s.%s: %v", fb.Name, name, err)
			}
		}
	}
}

// propagateEvents delivers only the event outputs schedule actually fired
// this invocation, in declaration order (fired preserves that order since
// it is built by iterating eventOutputOrder).
func (fb *Instance) propagateEvents(fired []string) {
	for _, name := range fired {
		fb.edgesMu.Lock()
		edges := fb.outputEventEdges[name]
		fb.edgesMu.Unlock()
		for _, e := range edges {
			if err := e.Dst.ReceiveEvent(e.DstPort); err != nil {
				fb.log.Warn("propagating %s.%s: %v", fb.Name, name, err)
			}
		}
	}
}

// sampleWatches appends one sample per watched port. Input ports sample
// from the snapshot taken at the start of this invocation (spec.md 4.4 step
// 9: "after snapshot"); output ports sample their current, just-propagated
// value.
func (fb *Instance) sampleWatches(at time.Time, inputEventSnapshot map[string]int64, inputVarSnapshot map[string]value.Value) {
	sample := func(watch bool, buf *Ring, v interface{}) {
		if watch {
			buf.Push(Sample{Timestamp: at, Value: v})
		}
	}
	for name, p := range fb.inputEvents {
		p.mu.Lock()
		watch := p.Watch
		p.mu.Unlock()
		sample(watch, p.Buf, inputEventSnapshot[name])
	}
	for name, p := range fb.inputVars {
		p.mu.Lock()
		watch := p.Watch
		p.mu.Unlock()
		sample(watch, p.Buf, inputVarSnapshot[name])
	}
	for _, p := range fb.outputEvents {
		p.mu.Lock()
		sample(p.Watch, p.Buf, p.counter)
		p.mu.Unlock()
	}
	for _, p := range fb.outputVars {
		p.mu.Lock()
		sample(p.Watch, p.Buf, p.Value)
		p.mu.Unlock()
	}
}

func (fb *Instance) tryReload() {
	if fb.reload == nil {
		return
	}
	if inst, ok := fb.reload.Take(); ok {
		fb.behaviorMu.Lock()
		fb.behavior = inst
		fb.behaviorMu.Unlock()
	}
}

// unblock is the sentinel pushed to a worker's trigger to break it out of
// its wait when stop_work runs (spec.md 5); it is just Trigger under
// another name, kept distinct for readability at call sites.
func (fb *Instance) unblock() { fb.Trigger() }

// Run is the per-FB execution worker (spec.md 4.4/5). It serializes every
// invocation of this FB's behavior. START is never run through this loop;
// Configuration invokes it directly, once, during start_work.
func (fb *Instance) Run(ctx context.Context) {
	defer close(fb.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-fb.stop:
			return
		case <-fb.trigger:
		}

		select {
		case <-fb.stop:
			return
		default:
		}

		if err := fb.Invoke(); err != nil {
			fb.log.Warn("%v, stopping", err)
			return
		}
	}
}

// Stop signals the worker to exit and unblocks its trigger wait. It does
// not wait for the worker to finish; callers await Done for that.
func (fb *Instance) Stop() {
	select {
	case <-fb.stop:
	default:
		close(fb.stop)
	}
	fb.unblock()
}

// Done reports when the worker loop has returned.
func (fb *Instance) Done() <-chan struct{} { return fb.done }

// StartReload starts this FB's hot-reload watcher, if it has one (START
// and any FB whose behavior has no external implementation file do not).
func (fb *Instance) StartReload(ctx context.Context) error {
	if fb.reload == nil {
		return nil
	}
	return fb.reload.Start(ctx)
}

// StopReload stops this FB's hot-reload watcher, if it has one.
func (fb *Instance) StopReload() {
	if fb.reload != nil {
		fb.reload.Stop()
	}
}

// EdgeDestinations calls fn with the destination FB name of every outbound
// edge registered on the named event output port, e.g. to list which FBs
// START.COLD reaches. INIT auto-wiring itself uses AllEventEdges.
func (fb *Instance) EdgeDestinations(eventPort string, fn func(dstFB string)) {
	fb.edgesMu.Lock()
	edges := append([]Edge(nil), fb.outputEventEdges[eventPort]...)
	fb.edgesMu.Unlock()
	for _, e := range edges {
		fn(e.Dst.Name)
	}
}

// AllEventEdges calls fn with the destination FB and port name of every
// outbound event edge registered on this instance, across all of its event
// output ports. Used by INIT auto-wiring to find which FBs already have an
// incoming edge into their INIT port, from any source anywhere in the
// Configuration, not just from START.
func (fb *Instance) AllEventEdges(fn func(dstFB, dstPort string)) {
	fb.edgesMu.Lock()
	all := make([]Edge, 0)
	for _, edges := range fb.outputEventEdges {
		all = append(all, edges...)
	}
	fb.edgesMu.Unlock()
	for _, e := range all {
		fn(e.Dst.Name, e.DstPort)
	}
}
