package daemon

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrUnknownCommand is returned by handlers for commands they do not serve.
var ErrUnknownCommand = errors.New("unknown command")

// Handler processes one control command and returns a JSON document.
type Handler interface {
	HandleCommand(cmd string, args []string) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(cmd string, args []string) (string, error)

// HandleCommand implements Handler.
func (f HandlerFunc) HandleCommand(cmd string, args []string) (string, error) {
	return f(cmd, args)
}

// Server listens on a Unix domain socket for line-based text commands and
// answers each with one JSON line.
//
// Protocol:
//   - Client sends a single line: COMMAND [arg1] [arg2] ...
//   - Server responds with a JSON line followed by a newline.
//   - Commands are case-insensitive; see Controller for the set the bar serves.
type Server struct {
	socketPath string
	handler    Handler
	logger     *slog.Logger
	listener   net.Listener
	wg         sync.WaitGroup
	done       chan struct{}
	stopOnce   sync.Once
}

// NewServer creates a control server for socketPath.
func NewServer(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger.With("component", "control"),
		done:       make(chan struct{}),
	}
}

// Start begins listening. A stale socket file at the path is removed and
// the new socket is created with mode 0600.
func (s *Server) Start() error {
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener, waits for in-flight connections and removes
// the socket file. It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		os.Remove(s.socketPath)
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.logger.Warn("accept failed", "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn serves a single command per connection.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	cmd, args := parseCommand(scanner.Text())
	if cmd == "" {
		return
	}

	response, err := s.handler.HandleCommand(cmd, args)
	if err != nil {
		s.logger.Debug("command failed", "command", cmd, "error", err)
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintf(conn, "%s\n", data)
		return
	}
	fmt.Fprintf(conn, "%s\n", compactJSON(response))
}

// parseCommand splits a line into an upper-cased command and its arguments.
func parseCommand(line string) (string, []string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil
	}
	return strings.ToUpper(parts[0]), parts[1:]
}

// Client sends commands to a running bar.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the bar listening on socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 5 * time.Second}
}

// Send opens a connection, writes cmd and returns the single response line.
func (c *Client) Send(cmd string) (string, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return "", fmt.Errorf("connect to hydebar: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := fmt.Fprintf(conn, "%s\n", cmd); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}
		return "", errors.New("empty response from hydebar")
	}
	return scanner.Text(), nil
}

// compactJSON removes whitespace so the response fits on one line. Text
// that is not JSON is returned unchanged.
func compactJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}
