package protocol

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/forte-town/forte/internal/graph"
	"github.com/forte-town/forte/internal/logging"
	"github.com/forte-town/forte/internal/replay"
)

type configEntry struct {
	cfg *graph.Config
	rl  *replay.Log
}

// applyAction runs one parsed request's CREATE/WRITE effect against cfg,
// without persisting or generating a response. Shared between live dispatch
// (which persists on success) and log replay (which must not re-persist).
func applyAction(cfg *graph.Config, req rawRequest) error {
	switch req.Action {
	case "CREATE":
		switch {
		case req.FB != nil:
			return cfg.CreateFB(req.FB.Name, req.FB.Type)
		case req.Connection != nil:
			return cfg.CreateConnection(req.Connection.Source, req.Connection.Destination)
		case req.Watch != nil:
			return cfg.CreateWatch(req.Watch.Source)
		}
		return fmt.Errorf("protocol: CREATE request has no recognized child")
	case "WRITE":
		if req.Connection != nil {
			return cfg.WriteConnection(req.Connection.Source, req.Connection.Destination)
		}
		return fmt.Errorf("protocol: WRITE request has no Connection child")
	case "DELETE":
		if req.Watch != nil {
			return cfg.DeleteWatch(req.Watch.Source)
		}
		return fmt.Errorf("protocol: DELETE request has no Watch child")
	default:
		return fmt.Errorf("protocol: %s is not a replayable action", req.Action)
	}
}

// persistToken picks the "arbitrary start FB name" prefix spec.md 4.7 wants
// on each log line. Its semantics are not meaningful at replay (spec.md 9);
// any FB name mentioned in the request is kept verbatim for forward
// compatibility.
func persistToken(req rawRequest) string {
	ref := ""
	switch {
	case req.FB != nil:
		return req.FB.Name
	case req.Connection != nil && req.Action == "WRITE":
		// A WRITE's Source is the constant being seeded, not an FB reference.
		ref = req.Connection.Destination
	case req.Connection != nil:
		ref = req.Connection.Source
	}
	if i := strings.LastIndex(ref, "."); i >= 0 {
		return ref[:i]
	}
	return ref
}

func isPersisted(req rawRequest) bool {
	switch req.Action {
	case "CREATE":
		return req.FB != nil || req.Connection != nil
	case "WRITE":
		return req.Connection != nil
	default:
		return false
	}
}

// replayEntries applies every entry from a .fboot log to a freshly created
// Configuration. An entry whose XML does not parse, or whose action fails,
// is skipped with a warning and the remaining entries are still applied. A
// log that cannot be read at all never reaches here: dispatchGeneral then
// starts the Configuration empty.
func replayEntries(cfg *graph.Config, entries []replay.Entry, log *logging.Logger) {
	applied := 0
	for _, e := range entries {
		var req rawRequest
		if err := xml.Unmarshal([]byte(e.XML), &req); err != nil {
			log.Warn("replay: skipping malformed entry %q: %v", e.XML, err)
			continue
		}
		if err := applyAction(cfg, req); err != nil {
			log.Warn("replay: applying %q: %v", e.XML, err)
			continue
		}
		applied++
	}
	if applied > 0 {
		if err := cfg.ApplyInitAutoWiring(); err != nil {
			log.Warn("replay: INIT auto-wiring: %v", err)
		}
	}
}

func (s *Server) dispatchGeneral(req rawRequest) []byte {
	switch req.Action {
	case "CREATE":
		if req.Configuration == nil || req.Configuration.ID == "" {
			return failResponse(req.ID, "missing configuration id")
		}
		id := req.Configuration.ID

		s.mu.Lock()
		defer s.mu.Unlock()
		if _, exists := s.configs[id]; exists {
			return failResponse(req.ID, "configuration exists")
		}

		cfg := graph.New(id, s.registry, s.collab, s.log)
		rl := replay.Open(filepath.Join(s.resourcesRoot, id+".fboot"), s.log)
		entries, err := rl.Load()
		if err != nil {
			s.log.Warn("replay %s: %v, starting empty", id, err)
			entries = nil
		}
		replayEntries(cfg, entries, s.log)
		s.configs[id] = &configEntry{cfg: cfg, rl: rl}
		return okResponse(req.ID)

	case "DELETE":
		if req.Configuration == nil {
			return failResponse(req.ID, "missing configuration id")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		entry, ok := s.configs[req.Configuration.ID]
		if !ok {
			return failResponse(req.ID, "unknown configuration")
		}
		_ = entry.cfg.StopWork()
		delete(s.configs, req.Configuration.ID)
		return okResponse(req.ID)

	case "LIST":
		s.mu.Lock()
		ids := make([]string, 0, len(s.configs))
		for id := range s.configs {
			ids = append(ids, id)
		}
		s.mu.Unlock()
		return listResponse(req.ID, ids)

	default:
		return failResponse(req.ID, "unknown general action "+req.Action)
	}
}

func (s *Server) dispatchConfig(id string, req rawRequest, payload string, cursor *time.Time) []byte {
	s.mu.Lock()
	entry, ok := s.configs[id]
	s.mu.Unlock()
	if !ok {
		return failResponse(req.ID, "unknown configuration "+id)
	}
	cfg := entry.cfg

	switch req.Action {
	case "START":
		if err := cfg.StartWork(); err != nil {
			return failResponse(req.ID, err.Error())
		}
		return okResponse(req.ID)

	case "STOP":
		if err := cfg.StopWork(); err != nil {
			return failResponse(req.ID, err.Error())
		}
		return okResponse(req.ID)

	case "READ":
		groups := cfg.ReadWatches(*cursor)
		*cursor = time.Now()
		return watchResponse(req.ID, id, groups)

	case "CREATE", "WRITE", "DELETE":
		if err := applyAction(cfg, req); err != nil {
			return failResponse(req.ID, err.Error())
		}
		if isPersisted(req) {
			if err := entry.rl.Append(persistToken(req), payload); err != nil {
				s.log.Warn("persisting request %s: %v", req.ID, err)
			}
		}
		return okResponse(req.ID)

	default:
		return failResponse(req.ID, "unknown action "+req.Action)
	}
}
