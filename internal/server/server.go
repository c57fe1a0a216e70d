// Package server is the thin TCP collaborator spec.md §1 describes as
// external to the core: it turns net.Conns into framed messages fed to
// internal/dispatch, and drains each registry.Client's outbound queue
// back onto the wire. Grounded on the teacher's net.go (Conn wrapping a
// bufio.ReadWriter with read/write deadlines) and ircd.go's
// acceptConnections/separate read+write goroutines per client.
package server

import (
	"fmt"
	"log"
	"net"
	"time"

	"github.com/harrow-ircd/harrowd/internal/config"
	"github.com/harrow-ircd/harrowd/internal/dispatch"
	"github.com/harrow-ircd/harrowd/internal/msgbuf"
	"github.com/harrow-ircd/harrowd/internal/proto"
	"github.com/harrow-ircd/harrowd/internal/registry"
	"github.com/pkg/errors"
)

// readChunkSize bounds a single conn.Read call. It's smaller than
// msgbuf.Capacity so a read can never itself demand more than the
// buffer could ever hold in one Append.
const readChunkSize = 256

// Server owns the listener and the shared namespace every connection's
// dispatcher call operates against.
type Server struct {
	cfg    *config.Config
	ns     *registry.Namespace
	disp   *dispatch.Dispatcher
	logger *log.Logger
}

// New creates a Server from cfg, wiring a fresh Namespace and Dispatcher.
func New(cfg *config.Config, logger *log.Logger) *Server {
	ns := registry.NewNamespace(cfg.Hostname)
	return &Server{
		cfg:    cfg,
		ns:     ns,
		disp:   dispatch.New(ns, cfg.Version, cfg.CreatedDate),
		logger: logger,
	}
}

// ListenAndServe opens the configured TCP listener and serves
// connections until it fails or the listener is closed.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.cfg.ListenAddress)
	}
	defer ln.Close()

	s.logger.Printf("harrowd listening on %s", s.cfg.ListenAddress)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return errors.Wrap(err, "accepting connection")
		}
		go s.serveConn(conn)
	}
}

// serveConn owns one connection end to end: it registers a Client,
// starts the writer goroutine, and runs the read loop until the
// connection fails or the client quits.
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}

	id := s.ns.AssignID()
	client := registry.NewClient(id, host)
	s.ns.InsertClient(client)
	defer s.ns.RemoveClient(id)
	defer client.Close()

	go s.writeLoop(conn, client)
	go s.pingLoop(client)

	s.readLoop(conn, client)
}

// writeLoop drains client's outbound queue onto the wire until the
// queue is closed (the client died), mirroring the teacher's
// Client.writeLoop/LocalClient write goroutine.
func (s *Server) writeLoop(conn net.Conn, client *registry.Client) {
	for line := range client.Outbound() {
		if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.DeadTime)); err != nil {
			return
		}
		if _, err := conn.Write(line); err != nil {
			client.Close()
			return
		}
	}
}

// readLoop repeatedly reads chunks off conn into a msgbuf.Buffer,
// extracting and dispatching every complete frame it yields. It
// returns (and triggers teardown via the deferred client.Close in
// serveConn) once the connection can no longer be read from.
func (s *Server) readLoop(conn net.Conn, client *registry.Client) {
	buf := &msgbuf.Buffer{}
	chunk := make([]byte, readChunkSize)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.DeadTime)); err != nil {
			return
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			if appendErr := buf.Append(chunk[:n]); appendErr != nil {
				s.logger.Printf("client %d: %s", client.ID, appendErr)
				return
			}
			s.drainFrames(client, buf)
		}
		if err != nil {
			return
		}
	}
}

// drainFrames extracts and dispatches every complete frame currently
// sitting in buf. A frame that fails to parse is logged and dropped —
// per spec.md, one malformed line never closes the connection.
func (s *Server) drainFrames(client *registry.Client, buf *msgbuf.Buffer) {
	for {
		frame, ok := buf.Extract()
		if !ok {
			return
		}

		msg, err := proto.Parse(frame)
		if err != nil {
			s.logger.Printf("client %d: %s", client.ID, err)
			continue
		}

		s.disp.Command(client, msg)
	}
}

// pingLoop sends a periodic PING to registered clients so dead peers
// get discovered by the read deadline in readLoop instead of lingering
// forever, the same role the teacher's alarm/checkAndPingClients plays.
func (s *Server) pingLoop(client *registry.Client) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for range ticker.C {
		if client.State() == registry.StateDead {
			return
		}
		if client.State() != registry.StateRegistered {
			continue
		}
		_ = client.SendLine(fmt.Sprintf("PING :%s\r\n", s.ns.Hostname()))
	}
}
