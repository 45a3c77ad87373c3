//go:build linux

package privacy

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/RAprogramm/hydebar-sub001/pkg/listener"
)

const accessMask = unix.IN_OPEN | unix.IN_CLOSE_WRITE | unix.IN_CLOSE_NOWRITE

// inotifyStream reads batches of inotify records. The descriptor is
// non-blocking so the runtime poller can interrupt reads on cancel.
type inotifyStream struct {
	f   *os.File
	buf []byte
}

func watchDevice(path string) (listener.Stream[uint32], error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, watchError(path, err)
	}
	if _, err := unix.InotifyAddWatch(fd, path, accessMask); err != nil {
		_ = unix.Close(fd)
		return nil, watchError(path, err)
	}
	return &inotifyStream{
		f:   os.NewFile(uintptr(fd), "inotify"),
		buf: make([]byte, 64*(unix.SizeofInotifyEvent+unix.NAME_MAX+1)),
	}, nil
}

// Next returns the union of the masks in the next batch. IN_IGNORED means
// the watch is gone (device removed) and ends the stream.
func (s *inotifyStream) Next(ctx context.Context) (uint32, error) {
	stop := context.AfterFunc(ctx, func() { _ = s.f.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		n, err := s.f.Read(s.buf)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			if errors.Is(err, os.ErrClosed) {
				return 0, io.EOF
			}
			return 0, err
		}
		mask := parseMasks(s.buf[:n])
		if mask&unix.IN_IGNORED != 0 {
			return 0, io.EOF
		}
		if mask&accessMask != 0 {
			return mask, nil
		}
	}
}

func (s *inotifyStream) Close() error { return s.f.Close() }

func parseMasks(b []byte) uint32 {
	var mask uint32
	for len(b) >= unix.SizeofInotifyEvent {
		// wd int32, mask uint32, cookie uint32, len uint32, name [len]byte
		mask |= binary.NativeEndian.Uint32(b[4:8])
		nameLen := int(binary.NativeEndian.Uint32(b[12:16]))
		next := unix.SizeofInotifyEvent + nameLen
		if next > len(b) {
			break
		}
		b = b[next:]
	}
	return mask
}
