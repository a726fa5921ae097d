package protocol

import (
	"context"
	"encoding/xml"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forte-town/forte/internal/collab"
	"github.com/forte-town/forte/internal/fbtype"
	"github.com/forte-town/forte/internal/logging"
)

// Server accepts deployment connections and dispatches requests to the
// Configuration each names (spec.md 4.7).
type Server struct {
	addr          string
	resourcesRoot string
	registry      *fbtype.Registry
	collab        collab.Bundle
	log           *logging.Logger

	mu      sync.Mutex
	configs map[string]*configEntry
}

// NewServer builds a Server. resourcesRoot is where per-Configuration
// `.fboot` replay logs are kept (spec.md 6).
func NewServer(addr, resourcesRoot string, registry *fbtype.Registry, bundle collab.Bundle, log *logging.Logger) *Server {
	return &Server{
		addr:          addr,
		resourcesRoot: resourcesRoot,
		registry:      registry,
		collab:        bundle,
		log:           log.Named("protocol"),
		configs:       make(map[string]*configEntry),
	}
}

// ListenAndServe accepts connections until ctx is canceled, at which point
// the listener is closed and in-flight connections are left to finish
// their current request.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(conn)
	}
}

// handleConn serves one TCP connection: each Read delivers one complete
// request (spec.md 4.7); a framing error drops the connection (the
// ProtocolFrameError kind of spec.md 7), but a malformed or failing request
// within an otherwise valid frame gets a FAIL response and the connection
// stays open.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	connID := uuid.New().String()
	clog := s.log.Named(connID[:8])
	var cursor time.Time

	buf := make([]byte, readChunkSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}

		frame, err := ParseFrame(buf[:n])
		if err != nil {
			clog.Warn("framing error, dropping connection: %v", err)
			return
		}

		payload := Sanitize(frame.Payload)
		var req rawRequest
		if err := xml.Unmarshal(payload, &req); err != nil {
			clog.Warn("xml parse error: %v", err)
			if _, werr := conn.Write(failResponse("", "malformed request xml")); werr != nil {
				return
			}
			continue
		}

		var resp []byte
		if frame.ConfigID == "" {
			resp = s.dispatchGeneral(req)
		} else {
			resp = s.dispatchConfig(frame.ConfigID, req, string(payload), &cursor)
		}

		if _, err := conn.Write(resp); err != nil {
			clog.Warn("write error: %v", err)
			return
		}
	}
}
