package hyprland

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RAprogramm/hydebar-sub001/pkg/bridge"
)

const (
	commandSocket = ".socket.sock"
	eventSocket   = ".socket2.sock"
)

// ErrNoInstance is returned when HYPRLAND_INSTANCE_SIGNATURE is unset,
// which means no compositor is reachable from this session.
var ErrNoInstance = fmt.Errorf("hyprland instance signature not set: %w", bridge.ErrUnsupported)

// SocketDir resolves the directory holding the compositor's sockets:
// $XDG_RUNTIME_DIR/hypr/<signature>, falling back to /tmp/hypr/<signature>
// for older releases.
func SocketDir() (string, error) {
	sig := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	if sig == "" {
		return "", ErrNoInstance
	}
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		dir := filepath.Join(runtime, "hypr", sig)
		if _, err := os.Stat(filepath.Join(dir, commandSocket)); err == nil {
			return dir, nil
		}
	}
	return filepath.Join("/tmp", "hypr", sig), nil
}

// request sends one command on the command socket and returns the whole
// reply. The compositor closes the connection after replying, so the
// reply is read to EOF. deadline bounds the exchange so that a request
// abandoned by the bridge still releases its connection.
func request(dir, cmd string, deadline time.Duration) ([]byte, error) {
	conn, err := net.Dial("unix", filepath.Join(dir, commandSocket))
	if err != nil {
		return nil, fmt.Errorf("connect to compositor: %w", err)
	}
	defer conn.Close()

	if deadline > 0 {
		_ = conn.SetDeadline(time.Now().Add(deadline))
	}
	if _, err := io.WriteString(conn, cmd); err != nil {
		return nil, fmt.Errorf("send %q: %w", cmd, err)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("read reply to %q: %w", cmd, err)
	}
	return reply, nil
}

// errNotOK is wrapped when a dispatcher replies with anything but "ok".
var errNotOK = errors.New("compositor rejected command")

// expectOK checks a dispatcher reply.
func expectOK(reply []byte) error {
	text := strings.TrimSpace(string(reply))
	if text == "ok" {
		return nil
	}
	if text == "" {
		text = "empty reply"
	}
	return fmt.Errorf("%w: %s", errNotOK, text)
}

// isEmptyObject reports whether a JSON reply is "{}", which the compositor
// returns for queries with no subject (e.g. no focused window).
func isEmptyObject(reply []byte) bool {
	return bytes.Equal(bytes.TrimSpace(reply), []byte("{}"))
}
