package server

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"heapcache/pkg/db"
	"heapcache/pkg/logger"
)

const prompt = "heapcache> "

// Server runs one console session per TCP connection against a shared engine.
type Server struct {
	engine *db.Engine
	log    *logrus.Entry

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closing  bool
	wg       sync.WaitGroup
}

func New(engine *db.Engine) *Server {
	return &Server{
		engine: engine,
		log:    logger.WithComponent("server"),
		conns:  make(map[net.Conn]struct{}),
	}
}

// Serve accepts connections until Shutdown closes the listener. It returns
// nil after a shutdown and the accept error otherwise.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.listener = listener
	s.mu.Unlock()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) && s.isClosing() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warnf("accept: %v", err)
				continue
			}
			return errors.Wrap(err, "accept")
		}

		if !s.track(conn) {
			conn.Close()
			continue
		}
		go s.handleClient(conn)
	}
}

// Shutdown stops accepting, disconnects every client and waits for their
// sessions to release their pins. The engine can be closed afterwards.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closing = true
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// track registers conn unless a shutdown has started. wg.Add happens under
// mu so it cannot race with the Wait in Shutdown.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) handleClient(conn net.Conn) {
	log := s.log.WithField("client", conn.RemoteAddr().String())
	log.Info("connected")
	defer s.untrack(conn)
	defer conn.Close()

	session := s.engine.NewSession()
	defer session.Close()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("client handler panicked: %v", r)
		}
	}()
	console := db.NewConsole(session, conn)

	fmt.Fprint(conn, "Welcome to heapcache!\n"+prompt)

	reader := bufio.NewReader(conn)
	for {
		input, err := reader.ReadString('\n')
		if err != nil {
			log.Info("disconnected")
			return
		}

		line := strings.TrimSpace(input)
		if line == "" {
			fmt.Fprint(conn, prompt)
			continue
		}

		if strings.EqualFold(line, "quit") || strings.EqualFold(line, "exit") {
			return
		}

		log.Debugf("exec: %s", line)
		start := time.Now()
		err = console.Execute(line)
		duration := time.Since(start)

		if err != nil {
			fmt.Fprintf(conn, "Error: %v\n", err)
		} else {
			fmt.Fprintf(conn, "(%.4f sec)\n", duration.Seconds())
		}
		fmt.Fprint(conn, prompt)
	}
}
