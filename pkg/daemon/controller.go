package daemon

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/RAprogramm/hydebar-sub001/pkg/eventbus"
	"github.com/RAprogramm/hydebar-sub001/pkg/modctx"
	"github.com/RAprogramm/hydebar-sub001/pkg/modules"
)

// Controller serves the bar's control commands:
//
//	PING                 -> {"ok":true}
//	REDRAW               -> publishes a redraw request on the bus
//	POPUP                -> publishes a popup toggle on the bus
//	STATUS [module]      -> registry status for one or all modules
//	WORKSPACE {id}       -> switches the compositor workspace
//	LAYOUT               -> cycles the keyboard layout
//	QUIT                 -> asks the UI loop to exit
//
// Commands run on the socket goroutine and never touch module state:
// WORKSPACE and LAYOUT are published as module messages and carried out
// when the UI loop dispatches them. Bus requests go through modctx, so a
// full queue is reported back to the caller instead of blocking the socket.
type Controller struct {
	Context  *modctx.Context
	Registry *modules.Registry
	Quit     func()
}

type okResponse struct {
	OK bool `json:"ok"`
}

// HandleCommand implements Handler.
func (c *Controller) HandleCommand(cmd string, args []string) (string, error) {
	switch cmd {
	case "PING":
		return marshal(okResponse{OK: true})

	case "REDRAW":
		if err := c.Context.RequestRedraw(); err != nil {
			return "", fmt.Errorf("redraw: %w", err)
		}
		return marshal(okResponse{OK: true})

	case "POPUP":
		if err := c.Context.TogglePopup(); err != nil {
			return "", fmt.Errorf("popup: %w", err)
		}
		return marshal(okResponse{OK: true})

	case "STATUS":
		if len(args) > 0 {
			st, ok := c.Registry.Status(args[0])
			if !ok {
				return "", fmt.Errorf("no module %q", args[0])
			}
			return marshal(st)
		}
		return marshal(c.Registry.AllStatus())

	case "WORKSPACE":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: WORKSPACE <id>")
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return "", fmt.Errorf("workspace id: %w", err)
		}
		if id <= 0 {
			return "", fmt.Errorf("workspace id must be positive, got %d", id)
		}
		if err := sendTo(c, eventbus.Workspaces, modules.SwitchWorkspace{ID: id}); err != nil {
			return "", fmt.Errorf("workspace: %w", err)
		}
		return marshal(okResponse{OK: true})

	case "LAYOUT":
		if err := sendTo(c, eventbus.KeyboardLayout, modules.CycleLayout{}); err != nil {
			return "", fmt.Errorf("layout: %w", err)
		}
		return marshal(okResponse{OK: true})

	case "QUIT":
		if c.Quit != nil {
			c.Quit()
		}
		return marshal(okResponse{OK: true})
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
}

// sendTo publishes msg for the module id. The module only has to exist;
// it acts on the message when the UI loop hands it over.
func sendTo[T any](c *Controller, id eventbus.ModuleID, msg T) error {
	if _, ok := c.Registry.Get(string(id)); !ok {
		return fmt.Errorf("%s module disabled", id)
	}
	return modctx.ModuleSender(c.Context, eventbus.Wrap[T](id)).TrySend(msg)
}

func marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
