package tailnet

import (
	"context"

	"tailscale.com/client/local"
	"tailscale.com/ipn"
	"tailscale.com/ipn/ipnstate"
)

// localClient adapts *local.Client to Client; only WatchIPNBus needs
// wrapping because it returns a concrete watcher type.
type localClient struct {
	lc *local.Client
}

// NewLocalClient returns a Client talking to tailscaled. An empty
// socketPath uses the platform default.
func NewLocalClient(socketPath string) Client {
	lc := &local.Client{}
	if socketPath != "" {
		lc.Socket = socketPath
	}
	return &localClient{lc: lc}
}

func (c *localClient) Status(ctx context.Context) (*ipnstate.Status, error) {
	return c.lc.Status(ctx)
}

func (c *localClient) WatchIPNBus(ctx context.Context, mask ipn.NotifyWatchOpt) (Watcher, error) {
	w, err := c.lc.WatchIPNBus(ctx, mask)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (c *localClient) EditPrefs(ctx context.Context, mp *ipn.MaskedPrefs) (*ipn.Prefs, error) {
	return c.lc.EditPrefs(ctx, mp)
}
