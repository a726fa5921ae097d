package behavior

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/forte-town/forte/internal/definition"
	"github.com/forte-town/forte/internal/logging"
)

// Reloader watches a behavior's compiled implementation file and hands a
// freshly-loaded Instance to the owning FB worker through a single-slot
// mailbox, without blocking either side. Grounded on the directory-watch
// fsnotify pattern (watch the containing directory, filter events by
// basename, hash-compare to skip spurious notifications), adapted here to
// publish through a channel instead of invoking a callback.
type Reloader struct {
	path string
	def  *definition.Tree
	log  *logging.Logger

	mailbox chan Instance

	mu       sync.Mutex
	lastHash [32]byte
	started  bool

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReloader creates a watcher for the behavior implementation at path.
// It performs the initial load synchronously; a failure here is returned
// (wrapping ErrBehaviorLoad when the plugin itself cannot be loaded) and no
// Reloader is created.
func NewReloader(path string, def *definition.Tree, log *logging.Logger) (*Reloader, Instance, error) {
	inst, err := Load(path, def, log)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	r := &Reloader{
		path:     path,
		def:      def,
		log:      log,
		mailbox:  make(chan Instance, 1),
		lastHash: sha256.Sum256(data),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	return r, inst, nil
}

// Start begins watching in the background. ctx cancellation or Stop()
// terminates the watch loop.
func (r *Reloader) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return err
	}

	r.mu.Lock()
	r.watcher = w
	r.started = true
	r.mu.Unlock()

	go r.watchLoop(ctx)
	return nil
}

// Stop gracefully stops the watcher. It is a no-op if Start was never
// called or failed before launching the watch loop, since nothing would
// ever close doneCh to unblock the wait otherwise.
func (r *Reloader) Stop() {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return
	}
	close(r.stopCh)
	<-r.doneCh
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
}

// Take returns the most recently reloaded Instance and true, or
// (nil, false) if nothing new has arrived since the last Take. Non-blocking,
// matching the "both sides use non-blocking operations" rule of spec.md 5.
func (r *Reloader) Take() (Instance, bool) {
	select {
	case inst := <-r.mailbox:
		return inst, true
	default:
		return nil, false
	}
}

func (r *Reloader) watchLoop(ctx context.Context) {
	defer close(r.doneCh)

	name := filepath.Base(r.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			r.handleChange()
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Warn("reload watcher for %s: %v", r.path, err)
		}
	}
}

func (r *Reloader) handleChange() {
	data, err := os.ReadFile(r.path)
	if err != nil {
		r.log.Warn("reload: reading %s: %v", r.path, err)
		return
	}
	hash := sha256.Sum256(data)

	r.mu.Lock()
	unchanged := hash == r.lastHash
	r.mu.Unlock()
	if unchanged {
		return
	}

	inst, err := Load(r.path, r.def, r.log)
	if err != nil {
		r.log.Warn("reload: %v, keeping previous behavior", err)
		return
	}

	r.mu.Lock()
	r.lastHash = hash
	r.mu.Unlock()

	// Drain-then-send: keep only the latest reload, never block the
	// watcher waiting for the worker to consume it.
	select {
	case <-r.mailbox:
	default:
	}
	r.mailbox <- inst
	r.log.Info("reloaded behavior %s", r.path)
}
