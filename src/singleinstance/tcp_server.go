package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"screen-ocr/src/logutil"
)

const (
	residentHost     = "127.0.0.1"
	pingRequest      = "PING\n"
	pongResponse     = "PONG\n"
	stdoutRequest    = "STDOUT\n"
	clipboardRequest = "CLIPBOARD\n"
	successStatus    = "SUCCESS\n"
	errorStatus      = "ERROR\n"
)

// ErrServerClosed is returned by Next after Close.
var ErrServerClosed = errors.New("singleinstance: server closed")

// tcpServer implements Server over TCP loopback.
type tcpServer struct {
	mu       sync.Mutex
	lis      net.Listener
	incoming chan *tcpConn
	closed   chan struct{}
	once     sync.Once
	ports    PortRange
	port     int
}

func newTcpServer(r PortRange) Server {
	return &tcpServer{ports: r.Normalize(), incoming: make(chan *tcpConn, 8), closed: make(chan struct{})}
}

// Start binds only the first port of the range and fails if it is taken.
func (s *tcpServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}
	start := s.ports.Start
	addr := residentAddr(start)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logutil.Logger().Warnf("singleinstance: failed to bind %s: %v", addr, err)
		return err
	}
	s.lis = lis
	s.port = start
	logutil.Logger().Infof("singleinstance: listening on %s", addr)
	go s.acceptLoop(ctx, lis)
	return nil
}

// Port returns the bound port (0 if not started).
func (s *tcpServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *tcpServer) acceptLoop(ctx context.Context, lis net.Listener) {
	log := logutil.Logger()
	for {
		c, err := lis.Accept()
		if err != nil {
			return
		}
		remote := c.RemoteAddr().String()
		_ = c.SetDeadline(time.Now().Add(3 * time.Second))
		br := bufio.NewReader(c)
		line, _ := br.ReadString('\n')
		bw := bufio.NewWriter(c)
		if line == pingRequest {
			log.Debugf("singleinstance: PING from %s -> PONG", remote)
			_, _ = bw.WriteString(pongResponse)
			_ = bw.Flush()
			_ = c.Close()
			continue
		}
		// Non-PING: treat first line as request (STDOUT/CLIPBOARD)
		_ = c.SetDeadline(time.Time{})
		stdout := line == stdoutRequest
		log.Infof("singleinstance: request from %s mode=%s", remote, map[bool]string{true: "STDOUT", false: "CLIPBOARD"}[stdout])
		req := Request{OutputToStdout: stdout}
		select {
		case s.incoming <- &tcpConn{c: c, r: req, w: bw, br: br}:
		case <-ctx.Done():
			_ = c.Close()
			return
		case <-s.closed:
			_ = c.Close()
			return
		}
	}
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, ErrServerClosed
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.once.Do(func() { close(s.closed) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		_ = s.lis.Close()
		s.lis = nil
	}
	return nil
}

type tcpConn struct {
	c  net.Conn
	r  Request
	w  *bufio.Writer
	br *bufio.Reader
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondSuccess(text string) error {
	if _, err := tc.w.WriteString(successStatus); err != nil {
		return err
	}
	if len(text) > 0 {
		if _, err := tc.w.WriteString(text); err != nil {
			return err
		}
	}
	return tc.w.Flush()
}

func (tc *tcpConn) RespondError(msg string) error {
	if _, err := tc.w.WriteString(errorStatus + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
