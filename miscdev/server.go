package miscdev

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ardnew/softi2c/command"
	"github.com/ardnew/softi2c/pkg"
)

// SocketSuffix is appended to the interface name to form the socket file.
const SocketSuffix = ".sock"

// Handler executes commands received on the interface.
// *command.Dispatcher implements Handler.
type Handler interface {
	HandleCommand(ctx context.Context, code uint32, arg int64) command.Result
	Dispatch(ctx context.Context, c command.Command) command.Result
}

// Server publishes the user-facing interface as a Unix socket. It
// implements binding.Registrar: Register starts listening on
// <Dir>/<name>.sock and Unregister stops listening, closes every client
// connection and removes the socket.
type Server struct {
	dir     string
	handler Handler

	mu       sync.Mutex
	name     string
	path     string
	listener net.Listener
	cancel   context.CancelFunc
	conns    map[*conn]struct{}
	wg       sync.WaitGroup
}

// NewServer creates a server that places sockets in dir and executes
// commands with h.
func NewServer(dir string, h Handler) *Server {
	return &Server{
		dir:     dir,
		handler: h,
		conns:   make(map[*conn]struct{}),
	}
}

// SetHandler replaces the command handler. It lets the handler be built
// after the binding manager that the server registers with.
func (s *Server) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// SocketPath returns the socket path for name.
func (s *Server) SocketPath(name string) string {
	return filepath.Join(s.dir, name+SocketSuffix)
}

// Registered returns the published name, or "" when nothing is published.
func (s *Server) Registered() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// ConnectionCount returns the number of open client connections.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Register publishes the interface under name.
func (s *Server) Register(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("%w: %s already published", pkg.ErrAlreadyRunning, s.name)
	}

	path := s.SocketPath(name)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("socket dir: %w", err)
	}
	// A socket left by a previous process would make Listen fail.
	if err := removeStale(path); err != nil {
		return err
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.name = name
	s.path = path
	s.listener = ln
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptLoop(ctx, ln)

	pkg.LogInfo(pkg.ComponentMiscDev, "interface registered", "name", name, "path", path)
	return nil
}

// Unregister retracts the interface published under name.
func (s *Server) Unregister(name string) error {
	s.mu.Lock()
	if s.listener == nil || s.name != name {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", pkg.ErrNotRegistered, name)
	}

	ln, path := s.listener, s.path
	s.cancel()
	s.listener = nil
	s.name = ""
	s.path = ""
	for c := range s.conns {
		c.close()
	}
	s.mu.Unlock()

	err := ln.Close()
	s.wg.Wait()

	if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}

	pkg.LogInfo(pkg.ComponentMiscDev, "interface unregistered", "name", name)
	return err
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	defer s.wg.Done()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			pkg.LogWarn(pkg.ComponentMiscDev, "accept failed", "error", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		c := &conn{
			id:       uuid.New(),
			nc:       nc,
			framer:   newFramer(nc),
			sessions: make(map[string]time.Time),
		}

		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			nc.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.serve(ctx, c)
	}
}

// serve handles requests on c until the client disconnects or the
// interface is unregistered.
func (s *Server) serve(ctx context.Context, c *conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		c.close()
		pkg.LogDebug(pkg.ComponentMiscDev, "client disconnected", "conn", c.id.String())
	}()

	pkg.LogDebug(pkg.ComponentMiscDev, "client connected", "conn", c.id.String())

	for {
		data, err := c.framer.readFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				pkg.LogWarn(pkg.ComponentMiscDev, "read failed", "conn", c.id.String(), "error", err)
			}
			return
		}

		resp := s.handle(ctx, c, data)
		out, err := EncodeResponse(resp)
		if err != nil {
			pkg.LogError(pkg.ComponentMiscDev, "encode response", "error", err)
			return
		}
		if err := c.framer.writeFrame(out); err != nil {
			return
		}
	}
}

// handle executes one request frame.
func (s *Server) handle(ctx context.Context, c *conn, data []byte) *Response {
	req, err := DecodeRequest(data)
	if err != nil {
		resp := &Response{Status: pkg.StatusInvalid, Error: err.Error()}
		if req != nil {
			resp.ID = req.ID
		}
		return resp
	}

	resp := &Response{ID: req.ID}

	switch req.Op {
	case OpOpen:
		resp.Session = c.open()
		pkg.LogInfo(pkg.ComponentMiscDev, "open", "conn", c.id.String(), "session", resp.Session)
		return resp

	case OpClose:
		// Close always succeeds, even for an unknown session.
		c.release(req.Session)
		pkg.LogInfo(pkg.ComponentMiscDev, "close", "conn", c.id.String(), "session", req.Session)
		return resp
	}

	if !c.has(req.Session) {
		resp.Status = pkg.StatusInvalid
		resp.Error = fmt.Sprintf("unknown session %q", req.Session)
		return resp
	}

	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil {
		resp.Status = pkg.StatusNoDevice
		resp.Error = "no command handler"
		return resp
	}

	var r command.Result
	if req.Op == OpIoctl {
		r = h.HandleCommand(ctx, req.Cmd, req.Arg)
	} else {
		cmd, err := command.Parse(req.Kind, req.Operand)
		if err != nil {
			resp.Status = pkg.StatusOf(err)
			resp.Error = err.Error()
			return resp
		}
		r = h.Dispatch(ctx, cmd)
	}

	resp.Status = r.Status()
	if r.Err != nil {
		resp.Error = r.Err.Error()
		return resp
	}
	resp.Value = r.Value
	resp.Data = r.Data
	return resp
}

// removeStale removes a leftover socket file at path.
func removeStale(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	return os.Remove(path)
}

// conn is one client connection and its open sessions.
type conn struct {
	id     uuid.UUID
	nc     net.Conn
	framer *framer

	mu       sync.Mutex
	sessions map[string]time.Time
	closed   bool
}

func (c *conn) open() string {
	id := uuid.NewString()
	c.mu.Lock()
	c.sessions[id] = time.Now()
	c.mu.Unlock()
	return id
}

func (c *conn) release(id string) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
}

func (c *conn) has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sessions[id]
	return ok
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.nc.Close()
}
