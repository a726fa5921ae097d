// Package fbtype discovers function-block type definitions on disk and
// resolves a type name to the directory holding its definition and behavior
// files. Grounded on the registry pattern in connection/registry.go: an
// immutable-after-construction map, loaded once at startup; it takes no lock,
// since nothing writes it after New returns.
package fbtype

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/forte-town/forte/internal/logging"
)

// ErrUnknownType is returned by Resolve when no type with the given name was
// discovered.
var ErrUnknownType = errors.New("fbtype: unknown type")

// DefinitionSuffix and BehaviorSuffix name the two sibling files that make up
// a complete type: "<TYPE><DefinitionSuffix>" and "<TYPE><BehaviorSuffix>".
const (
	DefinitionSuffix = ".fbt"
	BehaviorSuffix   = ".so"
)

// Registry maps an FB type name to the directory containing its definition
// and behavior files. Immutable after New returns.
type Registry struct {
	dirs map[string]string
}

// New walks root and builds the type -> directory map. A file pair missing
// its sibling is skipped with a warning; this is non-fatal, matching
// spec.md 4.1.
func New(root string, log *logging.Logger) (*Registry, error) {
	r := &Registry{dirs: make(map[string]string)}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, DefinitionSuffix) {
			return nil
		}
		typeName := strings.TrimSuffix(filepath.Base(path), DefinitionSuffix)
		behaviorPath := filepath.Join(filepath.Dir(path), typeName+BehaviorSuffix)
		if _, statErr := os.Stat(behaviorPath); statErr != nil {
			log.Warn("type %s: definition %s has no sibling behavior file, skipping", typeName, path)
			return nil
		}
		r.dirs[typeName] = filepath.Dir(path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve returns the directory holding fbType's definition and behavior
// files.
func (r *Registry) Resolve(fbType string) (string, error) {
	dir, ok := r.dirs[fbType]
	if !ok {
		return "", ErrUnknownType
	}
	return dir, nil
}

// DefinitionPath and BehaviorPath return the expected file paths for fbType
// within its resolved directory.
func (r *Registry) DefinitionPath(fbType string) (string, error) {
	dir, err := r.Resolve(fbType)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fbType+DefinitionSuffix), nil
}

func (r *Registry) BehaviorPath(fbType string) (string, error) {
	dir, err := r.Resolve(fbType)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fbType+BehaviorSuffix), nil
}

// Types returns all discovered type names.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.dirs))
	for t := range r.dirs {
		out = append(out, t)
	}
	return out
}
