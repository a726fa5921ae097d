// Package behavior resolves and hot-reloads a function block's user-supplied
// schedule routine (spec.md 4.3). Go has no runtime equivalent of reloading
// an interpreted module, so the implementation file compiles to a Go
// plugin (.so) built out-of-band; Load opens it with the standard library's
// plugin package — the only mechanism in the ecosystem for swapping native
// code at runtime without restarting the process. No third-party library in
// the retrieval pack offers this; see DESIGN.md.
package behavior

import (
	"errors"
	"fmt"
	"plugin"

	"github.com/forte-town/forte/internal/definition"
	"github.com/forte-town/forte/internal/logging"
	"github.com/forte-town/forte/internal/value"
)

// Instance is a loaded, invocable behavior.
type Instance interface {
	// Schedule computes this invocation's outputs from the current input
	// values. The returned vector covers every output port in declaration
	// order, event outputs first, then variable outputs (spec.md 4.4 step
	// 7: "for events, the tuple element is the new counter"). For an event
	// output, a nil element means it does not fire this invocation; any
	// non-nil element fires it. It must not retain references to inputs.
	// A nil returned slice (with nil error) is treated by the caller as
	// NullOutput (spec.md 4.3/4.4).
	Schedule(inputs []value.Value) ([]value.Value, error)

	// InputNames and OutputNames report the parameter/result names the
	// behavior author declared. The loader's non-fatal arity/name
	// cross-check compares InputNames against the definition's InputVars;
	// OutputNames is not checked.
	InputNames() []string
	OutputNames() []string
}

// Constructor builds a fresh Instance. Exported by a behavior plugin as the
// symbol "New".
type Constructor func() Instance

// ErrBehaviorLoad marks a behavior plugin that could not be opened or
// constructed. On an initial load the FB is not created and the error is
// returned to the caller; the process does not exit. On a reload the
// previous behavior is kept.
var ErrBehaviorLoad = errors.New("behavior: load error")

// ErrArityMismatch is a non-fatal warning condition.
var ErrArityMismatch = errors.New("behavior: arity mismatch")

// Load opens path (a compiled Go plugin) and constructs a fresh Instance,
// then cross-checks its declared input arity/names against def. A mismatch
// is logged as a warning only, per spec.md 4.3.
func Load(path string, def *definition.Tree, log *logging.Logger) (Instance, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrBehaviorLoad, path, err)
	}
	sym, err := p.Lookup("New")
	if err != nil {
		return nil, fmt.Errorf("%w: %s has no New constructor: %v", ErrBehaviorLoad, path, err)
	}
	ctor, ok := sym.(func() Instance)
	if !ok {
		return nil, fmt.Errorf("%w: %s's New has the wrong signature", ErrBehaviorLoad, path)
	}
	inst := ctor()
	checkArity(inst, def, log)
	return inst, nil
}

func checkArity(inst Instance, def *definition.Tree, log *logging.Logger) {
	wantIn := portNames(def.InputVars)
	gotIn := inst.InputNames()
	if len(wantIn) != len(gotIn) {
		log.Warn("%v: %s declares %d input vars, behavior takes %d", ErrArityMismatch, def.TypeName, len(wantIn), len(gotIn))
		return
	}
	for i := range wantIn {
		if wantIn[i] != gotIn[i] {
			log.Warn("%v: %s input %d is %q in the definition but %q in the behavior", ErrArityMismatch, def.TypeName, i, wantIn[i], gotIn[i])
		}
	}
}

func portNames(ports []definition.Port) []string {
	out := make([]string, len(ports))
	for i, p := range ports {
		out[i] = p.Name
	}
	return out
}
