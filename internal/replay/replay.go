// Package replay persists applied CREATE/WRITE deployment requests to a
// `.fboot` log and replays them on restart (spec.md 4.7/7). Writes are
// serialized with an exclusive gofrs/flock lock so concurrent deployment
// connections never interleave partial lines, grounded on the teacher's
// own daemon.lock pattern in internal/daemon.Run.
package replay

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/gofrs/flock"

	"github.com/forte-town/forte/internal/logging"
)

// Entry is one replayable log line: the request's XML payload, prefixed on
// disk by an arbitrary "start FB name" token whose semantics replay ignores
// (spec.md 9) but which is kept verbatim for forward compatibility.
type Entry struct {
	StartFB string
	XML     string
}

// Log manages one Configuration's .fboot file.
type Log struct {
	path string
	log  *logging.Logger
}

// Open returns a Log bound to path. The file is created on first Append if
// it does not already exist.
func Open(path string, log *logging.Logger) *Log {
	return &Log{path: path, log: log}
}

// ErrInvalidFbootState marks a line that could not be parsed during replay;
// per spec.md 7 this aborts the whole replay (the runtime falls back to an
// empty graph) rather than applying a partial log.
var ErrInvalidFbootState = fmt.Errorf("replay: invalid fboot line")

// Append writes one entry, skipping Watch requests as spec.md 4.7 requires.
// The file lock is held only for the duration of the write.
func (l *Log) Append(startFB, xmlPayload string) error {
	if strings.Contains(xmlPayload, "<Watch") {
		return nil
	}

	fl := flock.New(l.path + ".lock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("replay: locking %s: %w", l.path, err)
	}
	defer func() { _ = fl.Unlock() }()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("replay: opening %s: %w", l.path, err)
	}
	defer f.Close()

	line := startFB + ";" + xmlPayload + "\n"
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("replay: writing %s: %w", l.path, err)
	}
	return nil
}

// Load reads every entry from the log, in order. A missing file is not an
// error: it yields an empty deployment (spec.md 6, "Empty or missing file
// means await deployment").
func (l *Log) Load() ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("replay: opening %s: %w", l.path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		i := strings.Index(line, ";")
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFbootState, line)
		}
		entries = append(entries, Entry{StartFB: line[:i], XML: line[i+1:]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("replay: reading %s: %w", l.path, err)
	}
	return entries, nil
}
