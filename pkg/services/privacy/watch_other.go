//go:build !linux

package privacy

import (
	"github.com/RAprogramm/hydebar-sub001/pkg/bridge"
	"github.com/RAprogramm/hydebar-sub001/pkg/listener"
)

func watchDevice(path string) (listener.Stream[uint32], error) {
	return nil, watchError(path, bridge.ErrUnsupported)
}
