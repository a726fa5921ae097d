// Package graph implements the Configuration: a named container of FB
// instances and their connections, and the handful of operations that are
// the entire mutable surface of a deployment (spec.md 4.5).
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forte-town/forte/internal/behavior"
	"github.com/forte-town/forte/internal/collab"
	"github.com/forte-town/forte/internal/definition"
	"github.com/forte-town/forte/internal/fbinstance"
	"github.com/forte-town/forte/internal/fbtype"
	"github.com/forte-town/forte/internal/logging"
	"github.com/forte-town/forte/internal/value"
)

// ErrDuplicateFB is returned by CreateFB when the name is already taken.
var ErrDuplicateFB = errors.New("graph: fb name already in use")

// ErrNoSuchFB is returned when a reference names an FB not in the map.
var ErrNoSuchFB = errors.New("graph: no such fb")

// ErrBadRef is returned when a "fb.port" reference has no port segment.
var ErrBadRef = errors.New("graph: reference has no port segment")

// ErrAlreadyRunning / ErrNotRunning guard start_work/stop_work.
var (
	ErrAlreadyRunning = errors.New("graph: already running")
	ErrNotRunning     = errors.New("graph: not running")
)

// Config is one Configuration: a named registry of FB instances and their
// connections (spec.md 3/4.5).
type Config struct {
	ID       string
	registry *fbtype.Registry
	collab   collab.Bundle
	log      *logging.Logger

	mu      sync.Mutex
	fbs     map[string]*fbinstance.Instance
	order   []string // insertion order, for deterministic replay/listing
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New creates an empty Configuration with its distinguished START instance
// already present. bundle is the set of out-of-core-scope collaborators
// (spec.md's Non-goals); pass collab.Default() in production.
func New(id string, registry *fbtype.Registry, bundle collab.Bundle, log *logging.Logger) *Config {
	log = log.Named(id)
	start := fbinstance.New("START", startResourceType, startDefinition(), startBehavior{}, nil, log)
	return &Config{
		ID:       id,
		registry: registry,
		collab:   bundle,
		log:      log,
		fbs:      map[string]*fbinstance.Instance{"START": start},
		order:    []string{"START"},
	}
}

func splitRef(ref string) (fbName, port string, err error) {
	i := strings.LastIndex(ref, ".")
	if i < 0 {
		return "", "", fmt.Errorf("%w: %q", ErrBadRef, ref)
	}
	return ref[:i], ref[i+1:], nil
}

func (c *Config) lookup(name string) (*fbinstance.Instance, error) {
	fb, ok := c.fbs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchFB, name)
	}
	return fb, nil
}

// CreateFB instantiates an FB of the named type. The definition and
// behavior are loaded immediately; the worker is not started until
// start_work.
func (c *Config) CreateFB(name, fbType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.fbs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFB, name)
	}

	defPath, err := c.registry.DefinitionPath(fbType)
	if err != nil {
		return err
	}
	behPath, err := c.registry.BehaviorPath(fbType)
	if err != nil {
		return err
	}
	def, err := definition.Load(defPath, fbType, c.log)
	if err != nil {
		return err
	}
	reloader, inst, err := behavior.NewReloader(behPath, def, c.log)
	if err != nil {
		return err
	}
	c.collab.OPCUA.PublishDefinition(def)
	c.collab.Telemetry.Observe(name, "created")

	fb := fbinstance.New(name, fbType, def, inst, reloader, c.log)
	c.fbs[name] = fb
	c.order = append(c.order, name)

	if c.running {
		if err := reloader.Start(c.ctx); err != nil {
			c.log.Warn("starting reload watcher for %s: %v", name, err)
		}
		c.group.Go(func() error {
			fb.Run(c.ctx)
			return nil
		})
	}
	return nil
}

// CreateConnection adds an outbound edge between two existing FBs' ports.
// Connection kind (event or variable) is inferred from the source port. A
// destination port of the opposite kind (or one that isn't declared at all)
// is not rejected — the protocol is permissive about heterogeneous-kind
// fan-out (spec.md 4.5/8 open question) — but it is logged, since it is
// almost always a deployment mistake.
func (c *Config) CreateConnection(src, dst string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	srcFB, srcPort, err := splitRef(src)
	if err != nil {
		return err
	}
	dstFB, dstPort, err := splitRef(dst)
	if err != nil {
		return err
	}
	srcInst, err := c.lookup(srcFB)
	if err != nil {
		return err
	}
	dstInst, err := c.lookup(dstFB)
	if err != nil {
		return err
	}

	if err := srcInst.ConnectEvent(srcPort, dstInst, dstPort); err == nil {
		if !dstInst.HasEventInput(dstPort) {
			c.log.Warn("connection %s -> %s: event source connected to a non-event destination port, kept per permissive fan-out rules", src, dst)
		}
		return nil
	}
	if err := srcInst.ConnectVar(srcPort, dstInst, dstPort); err == nil {
		if !dstInst.HasVarInput(dstPort) {
			c.log.Warn("connection %s -> %s: variable source connected to a non-variable destination port, kept per permissive fan-out rules", src, dst)
		}
		return nil
	}
	return &fbinstance.ErrUnknownPort{FB: srcFB, Port: srcPort}
}

// WriteConnection seeds dst's port with a constant value (spec.md 4.5). The
// literal "$e" is an event pulse: dst's current counter read and pushed as
// counter+1. Any other constant is parsed per dst's declared variable type.
func (c *Config) WriteConnection(constant, dst string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dstFB, dstPort, err := splitRef(dst)
	if err != nil {
		return err
	}
	inst, err := c.lookup(dstFB)
	if err != nil {
		return err
	}

	if constant == "$e" {
		cur, err := inst.EventCounter(dstPort)
		if err != nil {
			return err
		}
		return inst.SeedEvent(dstPort, cur+1)
	}

	vt, ok := inst.VarType(dstPort)
	if !ok {
		return &fbinstance.ErrUnknownPort{FB: dstFB, Port: dstPort}
	}
	v, err := value.ConvertType(constant, vt)
	if err != nil {
		return err
	}
	return inst.WriteVar(dstPort, v)
}

// CreateWatch and DeleteWatch toggle a port's watch flag.
func (c *Config) CreateWatch(ref string) error { return c.setWatch(ref, true) }
func (c *Config) DeleteWatch(ref string) error { return c.setWatch(ref, false) }

func (c *Config) setWatch(ref string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fbName, port, err := splitRef(ref)
	if err != nil {
		return err
	}
	inst, err := c.lookup(fbName)
	if err != nil {
		return err
	}
	return inst.SetWatch(port, enabled)
}

// FBWatches is one FB's drained watch samples, keyed by port name.
type FBWatches struct {
	FB    string
	Ports map[string][]fbinstance.Sample
}

// ReadWatches drains every watched port across every FB with samples at or
// after cursor. FBs with no matching samples are omitted, per spec.md 4.8.
func (c *Config) ReadWatches(cursor time.Time) []FBWatches {
	c.mu.Lock()
	names := append([]string(nil), c.order...)
	fbs := make(map[string]*fbinstance.Instance, len(c.fbs))
	for k, v := range c.fbs {
		fbs[k] = v
	}
	c.mu.Unlock()

	out := make([]FBWatches, 0, len(names))
	for _, name := range names {
		samples := fbs[name].DrainWatches(cursor)
		if len(samples) == 0 {
			continue
		}
		out = append(out, FBWatches{FB: name, Ports: samples})
	}
	return out
}

// ApplyInitAutoWiring wires START.COLD to every FB's INIT input that has no
// incoming edge, as required when loading a persisted deployment
// (spec.md 4.5). It must run after every CREATE FB/Connection in the
// replayed log has been applied and before start_work.
func (c *Config) ApplyInitAutoWiring() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start, err := c.lookup("START")
	if err != nil {
		return err
	}

	// An FB's INIT is "already wired" if ANY FB in the Configuration has an
	// edge into it, not merely if START itself does: a replayed deployment
	// may have wired some other FB's output directly to <fb>.INIT, and
	// auto-wiring must leave that alone rather than adding a second,
	// spurious START.COLD edge.
	wired := make(map[string]bool)
	for _, name := range c.order {
		c.fbs[name].AllEventEdges(func(dstFB, dstPort string) {
			if dstPort == "INIT" {
				wired[dstFB] = true
			}
		})
	}

	for _, name := range c.order {
		if name == "START" {
			continue
		}
		fb := c.fbs[name]
		if !fb.HasEventInput("INIT") || wired[name] {
			continue
		}
		if err := start.ConnectEvent(coldEventPort, fb, "INIT"); err != nil {
			return err
		}
	}
	return nil
}

// StartWork starts every worker but START's, then invokes START's schedule
// once and propagates its COLD event (spec.md 4.5).
func (c *Config) StartWork() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	c.ctx, c.cancel, c.group = gctx, cancel, group

	for _, name := range c.order {
		if name == "START" {
			continue
		}
		fb := c.fbs[name]
		if err := fb.StartReload(gctx); err != nil {
			c.log.Warn("starting reload watcher for %s: %v", name, err)
		}
		group.Go(func() error {
			fb.Run(gctx)
			return nil
		})
	}

	c.running = true
	c.collab.Agent.Notify(c.ID, "start_work")

	start := c.fbs["START"]
	if err := start.Invoke(); err != nil {
		c.log.Warn("START schedule failed: %v", err)
		return fmt.Errorf("start_work: %w", err)
	}
	return nil
}

// StopWork signals every worker to stop and waits best-effort for
// quiescence (spec.md 4.5).
func (c *Config) StopWork() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	fbs := make([]*fbinstance.Instance, 0, len(c.fbs))
	for _, name := range c.order {
		if name == "START" {
			continue
		}
		fbs = append(fbs, c.fbs[name])
	}
	group := c.group
	cancel := c.cancel
	c.running = false
	c.mu.Unlock()

	for _, fb := range fbs {
		fb.Stop()
		fb.StopReload()
	}
	cancel()
	_ = group.Wait()
	c.collab.Agent.Notify(c.ID, "stop_work")
	return nil
}

// Running reports whether start_work has been called without a matching
// stop_work.
func (c *Config) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
