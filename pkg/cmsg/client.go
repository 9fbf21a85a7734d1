// Package cmsg is the public entry point: a Client handle plus the
// fifteen operations of the capability vector, each validated and
// dispatched through the domain registry (spec §4.3).
package cmsg

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgdomain"
	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
	"github.com/JeffersonLab/cmsg-go/internal/domain"
	"github.com/JeffersonLab/cmsg-go/internal/locator"
	"github.com/JeffersonLab/cmsg-go/internal/message"
	"github.com/JeffersonLab/cmsg-go/internal/monitor"
	"github.com/JeffersonLab/cmsg-go/internal/rcdomain"
	"github.com/hashicorp/go-uuid"
	"github.com/sirupsen/logrus"
)

var (
	registryOnce sync.Once
	logger       = logrus.New()
)

func registerBuiltins() {
	registryOnce.Do(func() {
		log := logger.WithField("component", "cmsg")
		cmsgdomain.New(domain.Global(), log)
		rcdomain.New(domain.Global(), log)
	})
}

// SetDebugLevel sets the package logger's level (SPEC_FULL §12, mirrors
// the original cMsgSetDebugLevel).
func SetDebugLevel(level logrus.Level) { logger.SetLevel(level) }

// Client is a connection handle returned by Connect. Every method
// validates non-nil and connected before dispatching, per spec §4.3.
type Client struct {
	cap       domain.Capability
	handle    domain.Handle
	connected atomic.Bool
}

// Connect parses the locator, resolves its domain from the registry, and
// opens a connection (spec §4.4.1 for cMsg, §4.5 for RC).
func Connect(locatorString, name, description string) (*Client, error) {
	registerBuiltins()

	entries, err := locator.ParseList(locatorString)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, cmsgerr.New(cmsgerr.BadArgument)
	}

	if description == "" {
		if token, err := uuid.GenerateUUID(); err == nil {
			description = token
		}
	}
	instance, _ := uuid.GenerateUUID()
	logger.WithField("client", name).WithField("instance", instance).Debug("connecting")

	cap, err := domain.Global().Lookup(entries[0].Domain, nil)
	if err != nil {
		return nil, err
	}

	h, err := cap.Connect(locatorString, domain.ConnectOptions{
		Name:        name,
		Description: description,
		UDL:         locatorString,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{cap: cap, handle: h}
	c.connected.Store(true)
	return c, nil
}

func (c *Client) precheck() error {
	if c == nil || c.handle == nil {
		return cmsgerr.New(cmsgerr.BadArgument)
	}
	if !c.connected.Load() || !c.handle.Connected() {
		return cmsgerr.New(cmsgerr.LostConnection)
	}
	return nil
}

// Connected reports whether this client handle is still live (SPEC_FULL
// §12, mirrors the original cMsgGetConnectState).
func (c *Client) Connected() bool {
	return c != nil && c.connected.Load() && c.handle != nil && c.handle.Connected()
}

// Send publishes a message (spec §4.4.5).
func (c *Client) Send(msg *message.Message) error {
	if err := c.precheck(); err != nil {
		return err
	}
	return c.cap.Send(c.handle, msg)
}

// SyncSend publishes a message and waits for the server's acknowledgement.
func (c *Client) SyncSend(msg *message.Message, timeout time.Duration) (int32, error) {
	if err := c.precheck(); err != nil {
		return 0, err
	}
	return c.cap.SyncSend(c.handle, msg, timeout)
}

// Flush is a capability-vector no-op for this transport (see
// internal/cmsgdomain.Capability.Flush).
func (c *Client) Flush() error {
	if err := c.precheck(); err != nil {
		return err
	}
	return c.cap.Flush(c.handle)
}

// Subscribe registers cb for every message matching subject/type.
func (c *Client) Subscribe(subject, msgType string, cb domain.Callback, opts domain.SubscribeOptions) (domain.SubscriptionID, error) {
	if err := c.precheck(); err != nil {
		return 0, err
	}
	return c.cap.Subscribe(c.handle, subject, msgType, cb, opts)
}

// Unsubscribe cancels a prior Subscribe.
func (c *Client) Unsubscribe(id domain.SubscriptionID) error {
	if err := c.precheck(); err != nil {
		return err
	}
	return c.cap.Unsubscribe(c.handle, id)
}

// SubscribeAndGet blocks for the next message matching subject/type.
func (c *Client) SubscribeAndGet(subject, msgType string, timeout time.Duration) (*message.Message, error) {
	if err := c.precheck(); err != nil {
		return nil, err
	}
	return c.cap.SubscribeAndGet(c.handle, subject, msgType, timeout)
}

// SendAndGet sends a request and blocks for its one matching response.
func (c *Client) SendAndGet(msg *message.Message, timeout time.Duration) (*message.Message, error) {
	if err := c.precheck(); err != nil {
		return nil, err
	}
	return c.cap.SendAndGet(c.handle, msg, timeout)
}

// Monitor returns a snapshot of this connection's counters and active
// subscriptions (spec §4.1).
func (c *Client) Monitor(timeout time.Duration) (*monitor.Report, error) {
	if err := c.precheck(); err != nil {
		return nil, err
	}
	return c.cap.Monitor(c.handle, timeout)
}

// Start and Stop are the capability vector's enable/disable hooks.
func (c *Client) Start() error {
	if err := c.precheck(); err != nil {
		return err
	}
	return c.cap.Start(c.handle)
}

func (c *Client) Stop() error {
	if err := c.precheck(); err != nil {
		return err
	}
	return c.cap.Stop(c.handle)
}

// Disconnect atomically clears the connected flag before dispatching, so
// concurrent calls on other goroutines short-circuit with
// LostConnection instead of racing the teardown (spec §4.3).
func (c *Client) Disconnect() error {
	if c == nil || c.handle == nil {
		return cmsgerr.New(cmsgerr.BadArgument)
	}
	if !c.connected.CompareAndSwap(true, false) {
		return cmsgerr.New(cmsgerr.LostConnection)
	}
	return c.cap.Disconnect(c.handle)
}

// SetShutdownHandler installs the callback invoked on a shutdown-clients
// request. No handler is installed by default.
func (c *Client) SetShutdownHandler(fn domain.ShutdownHandler, userArg any) error {
	if err := c.precheck(); err != nil {
		return err
	}
	return c.cap.SetShutdownHandler(c.handle, fn, userArg)
}

// ShutdownClients asks the server to forward a shutdown to every client.
func (c *Client) ShutdownClients(includeMe bool) error {
	if err := c.precheck(); err != nil {
		return err
	}
	return c.cap.ShutdownClients(c.handle, includeMe)
}

// ShutdownServers asks the server itself to shut down.
func (c *Client) ShutdownServers() error {
	if err := c.precheck(); err != nil {
		return err
	}
	return c.cap.ShutdownServers(c.handle)
}
