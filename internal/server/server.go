// internal/server/server.go
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tamzrod/tc-ioc/internal/pv"
)

// maxLine bounds a single request line.
const maxLine = 64 * 1024

// monitorBuffer is the per-subscription queue depth.
const monitorBuffer = 16

// Server exposes a PV database as line-delimited JSON over TCP.
type Server struct {
	db  *pv.Database
	log zerolog.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// New creates a server for db.
func New(db *pv.Database, log zerolog.Logger) *Server {
	return &Server{
		db:    db,
		log:   log.With().Str("component", "pv-server").Logger(),
		conns: make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
// It closes ln and every open connection before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("pv server listening")

	stop := make(chan struct{})
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = ln.Close()
		s.closeAll()
	}()

	// connections must be closed before waiting on their handlers
	defer func() {
		close(stop)
		<-closed
		s.wg.Wait()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}

		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handle(ctx, conn)
		}()
	}
}

// ---- connection bookkeeping ----

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("client connected")
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	if s.conns != nil {
		delete(s.conns, conn)
	}
	s.mu.Unlock()

	_ = conn.Close()
	s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("client disconnected")
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
}

// ---- per-connection ----

// session serializes writes to one connection.
type session struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (ss *session) send(r Response) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.enc.Encode(r)
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	ctx, cancel := context.WithCancel(ctx)

	ss := &session{enc: json.NewEncoder(conn)}
	var monitors sync.WaitGroup
	defer func() {
		// unblocks monitors stuck writing to a client that stopped reading
		cancel()
		_ = conn.Close()
		monitors.Wait()
	}()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 4096), maxLine)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if ss.send(Response{Error: "malformed request: " + err.Error()}) != nil {
				return
			}
			continue
		}

		if req.Op == OpMonitor {
			p, ok := s.db.Get(req.PV)
			if !ok {
				if ss.send(fail(req, pv.ErrNotFound)) != nil {
					return
				}
				continue
			}
			monitors.Add(1)
			go func() {
				defer monitors.Done()
				s.monitor(ctx, ss, req, p)
			}()
			continue
		}

		if ss.send(s.dispatch(ctx, req)) != nil {
			return
		}
	}

	if err := sc.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		s.log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("read failed")
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	switch req.Op {
	case OpList:
		return Response{ID: req.ID, OK: true, Names: s.db.Names()}

	case OpGet:
		p, ok := s.db.Get(req.PV)
		if !ok {
			return fail(req, pv.ErrNotFound)
		}
		return current(req.ID, p)

	case OpInfo:
		p, ok := s.db.Get(req.PV)
		if !ok {
			return fail(req, pv.ErrNotFound)
		}
		return Response{ID: req.ID, OK: true, PV: p.Name(), Info: &Info{
			Kind:     p.Kind().String(),
			ReadOnly: p.ReadOnly(),
			Units:    p.Units(),
			Doc:      p.Doc(),
		}}

	case OpPut:
		if req.Value == nil {
			return fail(req, errors.New("server: put requires a value"))
		}
		if err := s.db.Put(ctx, req.PV, *req.Value); err != nil {
			s.log.Warn().Err(err).Str("pv", req.PV).Float64("value", *req.Value).Msg("put rejected")
			return fail(req, err)
		}
		p, _ := s.db.Get(req.PV)
		return current(req.ID, p)

	default:
		return fail(req, fmt.Errorf("server: unknown op %q", req.Op))
	}
}

// monitor sends the current value, then every update, until ctx is done.
func (s *Server) monitor(ctx context.Context, ss *session, req Request, p *pv.PV) {
	updates, cancel := p.Subscribe(monitorBuffer)
	defer cancel()

	if ss.send(current(req.ID, p)) != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			v, ts := u.Value, u.Timestamp
			if ss.send(Response{ID: req.ID, OK: true, PV: u.Name, Value: &v, TS: &ts}) != nil {
				return
			}
		}
	}
}

func current(id string, p *pv.PV) Response {
	v, ts := p.Value()
	return Response{ID: id, OK: true, PV: p.Name(), Value: &v, TS: &ts}
}

func fail(req Request, err error) Response {
	return Response{ID: req.ID, PV: req.PV, Error: err.Error()}
}
